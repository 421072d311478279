package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"departure-board/internal/gtfs"

	"github.com/sirupsen/logrus"
)

// SwitchMetrics counts database switches by reason ("update", "ping_failure").
type SwitchMetrics interface {
	DBSwitchInc(reason string)
}

// CityStore serves timetables from the latest successful import of a city
// and follows newer imports as they land.
type CityStore struct {
	clusterDSN string
	city       string
	metrics    SwitchMetrics
	logger     *logrus.Logger

	mu   sync.RWMutex
	db   *sql.DB
	name string

	stopWatch context.CancelFunc
	wg        sync.WaitGroup
}

// OpenCity resolves the latest import of city on the cluster behind
// clusterDSN and connects to it.
func OpenCity(ctx context.Context, clusterDSN, city string, m SwitchMetrics, logger *logrus.Logger) (*CityStore, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &CityStore{clusterDSN: clusterDSN, city: city, metrics: m, logger: logger}
	name, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	sqlDB, err := s.connect(ctx, name)
	if err != nil {
		return nil, err
	}
	s.db, s.name = sqlDB, name
	logger.WithFields(logrus.Fields{"db": name, "city": city}).Info("using city database")
	return s, nil
}

// Name is the database currently in use.
func (s *CityStore) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *CityStore) Timetables(ctx context.Context, day time.Time) ([]gtfs.Timetable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return FetchTimetables(ctx, s.db, day)
}

// Start runs Watch in the background until ctx is done or Close is called.
func (s *CityStore) Start(ctx context.Context, every time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	s.stopWatch = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Watch(ctx, every)
	}()
}

// Watch runs Check every interval until ctx is done.
func (s *CityStore) Watch(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, err := s.Check(ctx); err != nil {
			s.logger.WithError(err).Warn("city database check failed")
		}
	}
}

// Check pings the current database and re-resolves the latest import. It
// switches connections when the ping fails or a newer import exists, and
// reports whether it did.
func (s *CityStore) Check(ctx context.Context) (bool, error) {
	s.mu.RLock()
	current, currentName := s.db, s.name
	s.mu.RUnlock()

	needSwitch := false
	if err := Ping(ctx, current); err != nil {
		s.logger.WithError(err).Warn("db ping failed, re-resolving city database")
		s.switchInc("ping_failure")
		needSwitch = true
	}

	newName, err := s.resolve(ctx)
	if err != nil {
		return false, err
	}
	if newName != currentName {
		s.logger.WithFields(logrus.Fields{"city": s.city, "from": currentName, "to": newName}).Info("detected updated city database")
		s.switchInc("update")
		needSwitch = true
	}
	if !needSwitch {
		return false, nil
	}

	newDB, err := s.connect(ctx, newName)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	old := s.db
	s.db, s.name = newDB, newName
	s.mu.Unlock()
	_ = old.Close()
	s.logger.WithFields(logrus.Fields{"db": newName, "city": s.city}).Info("switched city database")
	return true, nil
}

// Close stops the watcher, waits for a switch in progress and closes the
// current connection.
func (s *CityStore) Close() error {
	if s.stopWatch != nil {
		s.stopWatch()
	}
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *CityStore) switchInc(reason string) {
	if s.metrics != nil {
		s.metrics.DBSwitchInc(reason)
	}
}

// resolve uses a short-lived connection to the cluster's "postgres" database.
func (s *CityStore) resolve(ctx context.Context) (string, error) {
	rootDSN, err := WithDBName(s.clusterDSN, "postgres")
	if err != nil {
		return "", fmt.Errorf("invalid cluster DSN: %w", err)
	}
	meta, err := Open(rootDSN)
	if err != nil {
		return "", fmt.Errorf("open meta db: %w", err)
	}
	defer meta.Close()
	if err := Ping(ctx, meta); err != nil {
		return "", fmt.Errorf("ping meta db: %w", err)
	}
	imp, err := LatestImport(ctx, meta, s.city)
	if err != nil {
		return "", fmt.Errorf("resolve latest import for city %q: %w", s.city, err)
	}
	s.logger.WithFields(logrus.Fields{
		"city":        s.city,
		"db":          imp.DBName,
		"imported_at": imp.ImportedAt,
	}).Debug("latest import resolved")
	return imp.DBName, nil
}

func (s *CityStore) connect(ctx context.Context, name string) (*sql.DB, error) {
	if name == "" {
		return nil, errors.New("empty database name")
	}
	dsn, err := WithDBName(s.clusterDSN, name)
	if err != nil {
		return nil, err
	}
	sqlDB, err := Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", name, err)
	}
	if err := Ping(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping %q: %w", name, err)
	}
	return sqlDB, nil
}
