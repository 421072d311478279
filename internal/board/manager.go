package board

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"departure-board/internal/config"
	"departure-board/internal/departures"
	"departure-board/internal/fleet"
	"departure-board/internal/gtfs"

	"github.com/sirupsen/logrus"
)

// ErrNotLoaded is returned while no timetable has been loaded yet.
var ErrNotLoaded = errors.New("timetables not loaded")

type TimetableSource interface {
	Timetables(ctx context.Context, day time.Time) ([]gtfs.Timetable, error)
}

type Publisher interface {
	PublishBoard(b *Board) error
}

type Metrics interface {
	departures.Metrics
	RefreshObserve(d time.Duration, trips, vehicles int, err error)
}

// Query selects what a board shows.
type Query struct {
	Name       string
	Station    departures.StationID
	Mode       departures.Mode
	Types      departures.VehicleTypeMask
	Via        bool
	Passengers bool
	Freight    bool
}

// QueryFor converts a validated board definition.
func QueryFor(b config.Board) (Query, error) {
	mode, err := b.BoardMode()
	if err != nil {
		return Query{}, err
	}
	types, err := b.VehicleTypes()
	if err != nil {
		return Query{}, err
	}
	return Query{
		Name:       b.Name,
		Station:    departures.StationID(b.Station),
		Mode:       mode,
		Types:      types,
		Via:        b.Via,
		Passengers: b.IncludePassengers(),
		Freight:    b.IncludeFreight(),
	}, nil
}

type Options struct {
	Source          TimetableSource
	Settings        departures.Settings
	Build           fleet.BuildOptions
	Boards          []config.Board
	Publisher       Publisher // optional
	PublishInterval time.Duration
	RefreshInterval time.Duration
	Metrics         Metrics // optional
	Logger          *logrus.Logger
	Now             func() time.Time
}

// Summary describes a configured board.
type Summary struct {
	Name       string     `json:"name"`
	Station    string     `json:"station"`
	Mode       string     `json:"mode"`
	ComputedAt *time.Time `json:"computedAt,omitempty"`
}

type Manager struct {
	source          TimetableSource
	settings        departures.Settings
	build           fleet.BuildOptions
	queries         []Query
	pub             Publisher
	publishInterval time.Duration
	refreshInterval time.Duration
	metrics         Metrics
	logger          *logrus.Logger
	now             func() time.Time

	mu         sync.RWMutex
	timetables []gtfs.Timetable
	loaded     bool
	latest     map[string]*Board

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(opts Options) (*Manager, error) {
	m := &Manager{
		source:          opts.Source,
		settings:        opts.Settings,
		build:           opts.Build,
		pub:             opts.Publisher,
		publishInterval: opts.PublishInterval,
		refreshInterval: opts.RefreshInterval,
		metrics:         opts.Metrics,
		logger:          opts.Logger,
		now:             opts.Now,
		latest:          make(map[string]*Board),
	}
	if m.logger == nil {
		m.logger = logrus.StandardLogger()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.build.Location == nil {
		m.build.Location = time.Local
	}
	for _, b := range opts.Boards {
		q, err := QueryFor(b)
		if err != nil {
			return nil, fmt.Errorf("board %q: %w", b.Name, err)
		}
		m.queries = append(m.queries, q)
	}
	return m, nil
}

// Refresh reloads the timetables of the current service day.
func (m *Manager) Refresh(ctx context.Context) error {
	start := time.Now()
	day := m.now().In(m.build.Location)
	tts, err := m.source.Timetables(ctx, day)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RefreshObserve(time.Since(start), 0, 0, err)
		}
		return fmt.Errorf("load timetables: %w", err)
	}

	m.mu.Lock()
	m.timetables = tts
	m.loaded = true
	m.mu.Unlock()

	vehicles := len(fleet.Build(tts, day, m.build).Vehicles)
	if m.metrics != nil {
		m.metrics.RefreshObserve(time.Since(start), len(tts), vehicles, nil)
	}
	m.logger.WithFields(logrus.Fields{
		"day":      day.Format("2006-01-02"),
		"trips":    len(tts),
		"vehicles": vehicles,
		"took":     time.Since(start).String(),
	}).Info("timetables loaded")
	return nil
}

// Snapshot positions every vehicle at the current time.
func (m *Manager) Snapshot() (*fleet.Snapshot, error) {
	m.mu.RLock()
	tts, loaded := m.timetables, m.loaded
	m.mu.RUnlock()
	if !loaded {
		return nil, ErrNotLoaded
	}
	return fleet.Build(tts, m.now(), m.build), nil
}

// Compute runs an ad-hoc query against a fresh snapshot.
func (m *Manager) Compute(q Query) (*Board, error) {
	snap, err := m.Snapshot()
	if err != nil {
		return nil, err
	}
	return m.compute(snap, q), nil
}

func (m *Manager) compute(snap *fleet.Snapshot, q Query) *Board {
	at := snap.BuiltAt
	s := departures.NewScheduler(snap, m.settings, func() time.Time { return at }, m.logger, m.metrics)
	records := s.ComputeSchedule(q.Station, q.Types, q.Mode, q.Via, q.Passengers, q.Freight)
	return Render(q, at.In(m.build.Location), records, snap)
}

// ComputeBoards recomputes every configured board from one snapshot, caches
// the results and publishes them.
func (m *Manager) ComputeBoards() error {
	snap, err := m.Snapshot()
	if err != nil {
		return err
	}
	for _, q := range m.queries {
		b := m.compute(snap, q)

		m.mu.Lock()
		m.latest[q.Name] = b
		m.mu.Unlock()

		if m.pub == nil {
			continue
		}
		if err := m.pub.PublishBoard(b); err != nil {
			m.logger.WithError(err).WithField("board", q.Name).Warn("publish board failed")
		}
	}
	return nil
}

// Board returns the latest computation of a configured board.
func (m *Manager) Board(name string) (*Board, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.latest[name]
	return b, ok
}

// Boards lists the configured boards sorted by name.
func (m *Manager) Boards() []Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Summary, 0, len(m.queries))
	for _, q := range m.queries {
		s := Summary{Name: q.Name, Station: string(q.Station), Mode: ModeName(q.Mode)}
		if b, ok := m.latest[q.Name]; ok {
			at := b.ComputedAt
			s.ComputedAt = &at
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start launches the refresh and publish loops. The first refresh runs
// before Start returns so boards are available right away.
func (m *Manager) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	m.cancel = cancel

	if err := m.Refresh(ctx); err != nil {
		m.logger.WithError(err).Error("initial timetable load failed")
	} else if err := m.ComputeBoards(); err != nil {
		m.logger.WithError(err).Error("compute boards failed")
	}

	if m.refreshInterval > 0 {
		m.loop(ctx, m.refreshInterval, func() {
			if err := m.Refresh(ctx); err != nil {
				m.logger.WithError(err).Error("refresh timetables error")
			}
		})
	}
	if m.publishInterval > 0 && len(m.queries) > 0 {
		m.loop(ctx, m.publishInterval, func() {
			if err := m.ComputeBoards(); err != nil {
				m.logger.WithError(err).Warn("compute boards failed")
			}
		})
	}
}

func (m *Manager) loop(ctx context.Context, every time.Duration, fn func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// Stop cancels the loops and waits for them to exit.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
