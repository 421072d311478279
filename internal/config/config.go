package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"departure-board/internal/departures"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	DatabaseURL          string
	City                 string
	GTFSPath             string
	NATSURL              string
	NATSSubjectPrefix    string
	PublishInterval      time.Duration
	TripsRefreshInterval time.Duration
	MinDwell             time.Duration
	Departures           departures.Settings
	Location             *time.Location
	LogLevel             logrus.Level
	LogNATSSubjects      bool
	MetricsAddr          string
	HTTPAddr             string
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.GTFSPath = os.Getenv("GTFS_PATH")
	cfg.City = firstNonEmpty(os.Getenv("CITY"), os.Getenv("CITY_NAME"))

	// Database URL (cluster DSN): prefer DATABASE_URL / PG_DSN, else build from PG* vars.
	// A static feed makes the database optional.
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := os.Getenv("PGDATABASE")
		// If CITY is provided, default base DB to 'postgres' when PGDATABASE is not set.
		if db == "" && cfg.City != "" {
			db = "postgres"
		}
		if db == "" && cfg.GTFSPath == "" {
			return nil, errors.New("GTFS_PATH, PGDATABASE or DATABASE_URL must be set (set PGDATABASE=postgres when using CITY)")
		}
		if db != "" {
			sslmode := getenvDefault("PGSSLMODE", "disable")
			if pass != "" {
				cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
			} else {
				cfg.DatabaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
			}
		}
	} else {
		cfg.DatabaseURL = dsn
	}

	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", "boards")

	var err error
	if cfg.PublishInterval, err = positiveDuration("PUBLISH_INTERVAL_MS", time.Millisecond, 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.TripsRefreshInterval, err = positiveDuration("TRIPS_REFRESH_INTERVAL_SEC", time.Second, 10*time.Minute); err != nil {
		return nil, err
	}

	// Minimum dwell (seconds) given to stops without one. Zero disables it.
	cfg.MinDwell = 30 * time.Second
	if v := os.Getenv("MIN_DWELL_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec < 0 {
			return nil, fmt.Errorf("invalid MIN_DWELL_SEC: %q", v)
		}
		cfg.MinDwell = time.Duration(sec) * time.Second
	}

	cfg.Departures = departures.DefaultSettings()
	if cfg.Departures.Horizon, err = positiveDuration("DEPARTURE_HORIZON_MINUTES", time.Minute, cfg.Departures.Horizon); err != nil {
		return nil, err
	}
	if v := os.Getenv("MAX_DEPARTURES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid MAX_DEPARTURES: %q", v)
		}
		cfg.Departures.MaxResults = n
	}
	if v := os.Getenv("DEPARTURE_CONDITIONALS"); v != "" {
		p, err := departures.ParseConditionalPolicy(v)
		if err != nil {
			return nil, fmt.Errorf("invalid DEPARTURE_CONDITIONALS: %w", err)
		}
		cfg.Departures.Conditionals = p
	}
	cfg.Departures.ShowAllStops = getenvBool("DEPARTURE_SHOW_ALL_STOPS", cfg.Departures.ShowAllStops)
	cfg.Departures.MergeIdentical = getenvBool("DEPARTURE_MERGE_IDENTICAL", cfg.Departures.MergeIdentical)
	cfg.Departures.SmartTerminus = getenvBool("DEPARTURE_SMART_TERMINUS", cfg.Departures.SmartTerminus)

	cfg.LogLevel = logrus.InfoLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		lvl, err := logrus.ParseLevel(v)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %q", v)
		}
		cfg.LogLevel = lvl
	}

	// Debug logging for NATS publish subjects
	cfg.LogNATSSubjects = getenvBool("LOG_NATS_SUBJECTS", false)

	// Listen addresses (e.g., ":9102"). Empty disables the server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")
	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", ":8080")

	// Time zone
	tzName := getenvDefault("TZ", "")
	if tzName == "" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ: %v", err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

// positiveDuration reads a strictly positive integer count of unit from key.
func positiveDuration(key string, unit, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(n) * unit, nil
}

func getenvBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
