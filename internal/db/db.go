package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"departure-board/internal/gtfs"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// Store reads timetables from a database created by a GTFS importer.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Timetables returns every trip running on day with its stop times.
func (s *Store) Timetables(ctx context.Context, day time.Time) ([]gtfs.Timetable, error) {
	return FetchTimetables(ctx, s.db, day)
}

// FetchTimetables loads the trips of the services active on day together
// with their stop times, ordered by stop sequence.
func FetchTimetables(ctx context.Context, db *sql.DB, day time.Time) ([]gtfs.Timetable, error) {
	serviceIDs, err := fetchActiveServiceIDs(ctx, db, day)
	if err != nil {
		return nil, err
	}
	if len(serviceIDs) == 0 {
		return nil, nil
	}

	trips, err := fetchTrips(ctx, db, serviceIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]int, len(trips))
	for i, t := range trips {
		byID[t.TripID] = i
	}

	if err := fetchStopTimes(ctx, db, serviceIDs, func(tripID string, st gtfs.StopTime) {
		if i, ok := byID[tripID]; ok {
			trips[i].StopTimes = append(trips[i].StopTimes, st)
		}
	}); err != nil {
		return nil, err
	}

	out := trips[:0]
	for _, t := range trips {
		// Skip trips without stop_times
		if len(t.StopTimes) > 0 {
			out = append(out, t)
		}
	}
	return out, nil
}

func fetchActiveServiceIDs(ctx context.Context, db *sql.DB, now time.Time) ([]string, error) {
	date := now.Format("2006-01-02")
	dow := int(now.Weekday()) // 0=Sunday

	// calendar has booleans (0/1). calendar_dates has exception_type (1 add, 2 remove)
	q := `
WITH base AS (
  SELECT service_id
  FROM calendar
  WHERE start_date <= $1::date AND end_date >= $1::date
    AND (
      ($2 = 0 AND (sunday::text IN ('1','t','true','available'))) OR
      ($2 = 1 AND (monday::text IN ('1','t','true','available'))) OR
      ($2 = 2 AND (tuesday::text IN ('1','t','true','available'))) OR
      ($2 = 3 AND (wednesday::text IN ('1','t','true','available'))) OR
      ($2 = 4 AND (thursday::text IN ('1','t','true','available'))) OR
      ($2 = 5 AND (friday::text IN ('1','t','true','available'))) OR
      ($2 = 6 AND (saturday::text IN ('1','t','true','available')))
    )
), add_exc AS (
  SELECT service_id FROM calendar_dates WHERE date = $1::date AND (exception_type::text IN ('1','added'))
), rm_exc AS (
  SELECT service_id FROM calendar_dates WHERE date = $1::date AND (exception_type::text IN ('2','removed'))
), merged AS (
  SELECT service_id FROM base
  UNION
  SELECT service_id FROM add_exc
)
SELECT DISTINCT service_id FROM merged
WHERE service_id NOT IN (SELECT service_id FROM rm_exc)
`

	rows, err := db.QueryContext(ctx, q, date, dow)
	if err != nil {
		return nil, fmt.Errorf("query active services: %w", err)
	}
	defer rows.Close()
	var svc []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		svc = append(svc, s)
	}
	return svc, rows.Err()
}

func fetchTrips(ctx context.Context, db *sql.DB, serviceIDs []string) ([]gtfs.Timetable, error) {
	// block_id is optional in GTFS and some importers drop the column.
	cols, err := hasColumns(ctx, db, "public", "trips", "block_id")
	if err != nil {
		return nil, fmt.Errorf("introspect trips columns: %w", err)
	}
	block := "''"
	if cols["block_id"] {
		block = "COALESCE(t.block_id::text, '')"
	}
	q := `SELECT t.trip_id, t.route_id, t.service_id, ` + block + `,
                 COALESCE(r.route_type::text, ''),
                 COALESCE(NULLIF(r.route_short_name, ''), NULLIF(r.route_long_name, ''), r.route_id),
                 COALESCE(t.trip_headsign, '')
          FROM trips t
          JOIN routes r ON r.route_id = t.route_id
          WHERE t.service_id = ANY($1)
          ORDER BY t.trip_id`
	rows, err := db.QueryContext(ctx, q, pqArray(serviceIDs))
	if err != nil {
		return nil, fmt.Errorf("query trips: %w", err)
	}
	defer rows.Close()

	var trips []gtfs.Timetable
	for rows.Next() {
		var t gtfs.Timetable
		var routeType string
		if err := rows.Scan(&t.TripID, &t.RouteID, &t.ServiceID, &t.BlockID, &routeType, &t.RouteName, &t.Headsign); err != nil {
			return nil, err
		}
		t.RouteType = parseRouteType(routeType)
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func fetchStopTimes(ctx context.Context, db *sql.DB, serviceIDs []string, emit func(tripID string, st gtfs.StopTime)) error {
	cols, err := hasColumns(ctx, db, "public", "stop_times", "pickup_type", "drop_off_type")
	if err != nil {
		return fmt.Errorf("introspect stop_times columns: %w", err)
	}
	pickup, dropOff := "''", "''"
	if cols["pickup_type"] {
		pickup = "COALESCE(st.pickup_type::text, '')"
	}
	if cols["drop_off_type"] {
		dropOff = "COALESCE(st.drop_off_type::text, '')"
	}
	q := `SELECT st.trip_id,
                 st.stop_sequence,
                 COALESCE(st.arrival_time::text, ''),
                 COALESCE(st.departure_time::text, ''),
                 st.stop_id,
                 COALESCE(s.stop_name, ''),
                 ` + pickup + `,
                 ` + dropOff + `
          FROM stop_times st
          JOIN trips t ON t.trip_id = st.trip_id
          JOIN stops s ON s.stop_id = st.stop_id
          WHERE t.service_id = ANY($1)
          ORDER BY st.trip_id, st.stop_sequence`
	rows, err := db.QueryContext(ctx, q, pqArray(serviceIDs))
	if err != nil {
		return fmt.Errorf("query stop_times: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tripID, arr, dep, pu, do string
		var st gtfs.StopTime
		if err := rows.Scan(&tripID, &st.StopSequence, &arr, &dep, &st.StopID, &st.StopName, &pu, &do); err != nil {
			return err
		}
		st.ArrivalSec = parseDaySeconds(arr)
		st.DepartureSec = parseDaySeconds(dep)
		// GTFS allows one of the two times to be empty at timepoints.
		if arr == "" {
			st.ArrivalSec = st.DepartureSec
		}
		if dep == "" {
			st.DepartureSec = st.ArrivalSec
		}
		st.PickupType = parsePickupDropOff(pu)
		st.DropOffType = parsePickupDropOff(do)
		emit(tripID, st)
	}
	return rows.Err()
}

// parseDaySeconds parses HH:MM:SS possibly with hours >= 24.
func parseDaySeconds(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	sec := 0
	if len(parts) > 2 {
		sec, _ = strconv.Atoi(parts[2])
	}
	total := h*3600 + m*60 + sec
	if total < 0 {
		total = 0
	}
	return total
}

// parseRouteType accepts the numeric code or the enum labels some importers
// use. Unknown values are treated as buses.
func parseRouteType(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	switch s {
	case "tram", "light_rail":
		return gtfs.RouteTypeTram
	case "subway", "metro":
		return gtfs.RouteTypeSubway
	case "rail":
		return gtfs.RouteTypeRail
	case "ferry":
		return gtfs.RouteTypeFerry
	case "cable_tram", "cable_car":
		return gtfs.RouteTypeCableTram
	case "aerial_lift", "gondola":
		return gtfs.RouteTypeAerialLift
	case "funicular":
		return gtfs.RouteTypeFunicular
	case "trolleybus":
		return gtfs.RouteTypeTrolleybus
	case "monorail":
		return gtfs.RouteTypeMonorail
	}
	return gtfs.RouteTypeBus
}

func parsePickupDropOff(s string) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "not_available", "none":
		return gtfs.NoPickupDropOff
	case "2", "call":
		return 2
	case "3", "driver", "coordinate_with_driver":
		return 3
	}
	return 0
}

func pqArray(a []string) any { return a }

// hasColumns returns a map of requested column names to existence for the given table.
func hasColumns(ctx context.Context, db *sql.DB, schema, table string, cols ...string) (map[string]bool, error) {
	res := make(map[string]bool, len(cols))
	if len(cols) == 0 {
		return res, nil
	}
	for _, c := range cols {
		res[c] = false
	}
	q := `SELECT column_name FROM information_schema.columns
          WHERE table_schema = $1 AND table_name = $2 AND column_name = ANY($3)`
	rows, err := db.QueryContext(ctx, q, schema, table, cols)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		res[name] = true
	}
	return res, rows.Err()
}
