package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Import is one successful GTFS import recorded by the importer.
type Import struct {
	DBName     string
	ImportedAt time.Time // zero when the importer did not record it
}

const latestImportQuery = `
SELECT db_name, imported_at
FROM public.latest_successful_imports
WHERE db_name ILIKE '%' || $1 || '%'
ORDER BY imported_at DESC
LIMIT 1`

// LatestImport returns the most recent import whose database name contains
// city, case-insensitively.
func LatestImport(ctx context.Context, meta *sql.DB, city string) (Import, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return Import{}, errors.New("city is required")
	}
	var (
		name sql.NullString
		at   sql.NullTime
	)
	err := meta.QueryRowContext(ctx, latestImportQuery, city).Scan(&name, &at)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Import{}, fmt.Errorf("no database found for city like %q", city)
	case err != nil:
		return Import{}, err
	case !name.Valid || name.String == "":
		return Import{}, fmt.Errorf("empty db_name for city like %q", city)
	}
	imp := Import{DBName: name.String}
	if at.Valid {
		imp.ImportedAt = at.Time
	}
	return imp, nil
}
