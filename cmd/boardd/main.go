package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"departure-board/internal/board"
	"departure-board/internal/config"
	"departure-board/internal/db"
	"departure-board/internal/departures"
	"departure-board/internal/fleet"
	"departure-board/internal/gtfs"
	"departure-board/internal/httpapi"
	"departure-board/internal/metrics"
	"departure-board/internal/publisher"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"
)

var CLI struct {
	Serve ServeCmd `cmd:"" default:"1" help:"Run the board service."`
	Show  ShowCmd  `cmd:"" help:"Print the board of one station and exit."`
}

type ServeCmd struct {
	Boards        string        `help:"Path to the boards file." type:"path" env:"BOARDS_FILE"`
	WatchInterval time.Duration `help:"How often to look for a newer city import." default:"30m"`
}

type ShowCmd struct {
	Station  string   `arg:"" help:"Station (stop) ID."`
	Arrivals bool     `help:"Show arrivals instead of departures."`
	Via      bool     `help:"Show the via station."`
	Types    []string `help:"Vehicle types to include (train, road, tram, ship, aircraft)."`
	JSON     bool     `help:"Print the board as JSON."`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kctx := kong.Parse(&CLI,
		kong.Name("boardd"),
		kong.Description("Departure and arrival boards computed from GTFS timetables."),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("config error")
	}
	logger.SetLevel(cfg.LogLevel)

	kctx.FatalIfErrorf(kctx.Run(cfg, logger))
}

// Run serves boards until interrupted.
func (c *ServeCmd) Run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	var boards []config.Board
	if c.Boards != "" {
		bs, err := config.LoadBoards(c.Boards)
		if err != nil {
			return err
		}
		boards = bs.Boards
	}

	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.PublishInterval, cfg.TripsRefreshInterval, cfg.Departures.Horizon)
		mcol.Boards.Set(float64(len(boards)))
		srv := mcol.Serve(cfg.MetricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	src, closeSrc, err := openSource(ctx, cfg, mcol, logger)
	if err != nil {
		return err
	}
	defer closeSrc()
	if cs, ok := src.(*db.CityStore); ok && c.WatchInterval > 0 {
		cs.Start(ctx, c.WatchInterval)
	}

	opts := board.Options{
		Source:          src,
		Settings:        cfg.Departures,
		Build:           fleet.BuildOptions{Location: cfg.Location, MinDwell: cfg.MinDwell},
		Boards:          boards,
		PublishInterval: cfg.PublishInterval,
		RefreshInterval: cfg.TripsRefreshInterval,
		Logger:          logger,
	}
	if mcol != nil {
		opts.Metrics = mcol
	}

	if cfg.NATSURL != "" {
		var pm publisher.PublisherMetrics
		if mcol != nil {
			pm = mcol
		}
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.LogNATSSubjects, pm, logger)
		if err != nil {
			return fmt.Errorf("nats error: %w", err)
		}
		defer pub.Close()
		opts.Publisher = pub
	} else {
		logger.Info("NATS_URL not set, boards will not be published")
	}

	mgr, err := board.NewManager(opts)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"boards":   len(boards),
		"horizon":  cfg.Departures.Horizon.String(),
		"http":     cfg.HTTPAddr,
		"timezone": cfg.Location.String(),
	}).Info("starting boardd")
	mgr.Start(ctx)
	defer mgr.Stop()

	if cfg.HTTPAddr == "" {
		<-ctx.Done()
	} else {
		var mh http.Handler
		if mcol != nil {
			mh = mcol.Handler()
		}
		router := httpapi.NewRouter(mgr, mh, logger)
		if err := httpapi.Serve(ctx, cfg.HTTPAddr, router, logger); err != nil {
			return err
		}
	}
	logger.Info("shutdown complete")
	return nil
}

// Run computes one board and prints it.
func (c *ShowCmd) Run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	// Keep stdout for the board.
	logger.SetOutput(os.Stderr)

	types, err := departures.ParseVehicleTypes(c.Types)
	if err != nil {
		return err
	}
	src, closeSrc, err := openSource(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer closeSrc()

	mgr, err := board.NewManager(board.Options{
		Source:   src,
		Settings: cfg.Departures,
		Build:    fleet.BuildOptions{Location: cfg.Location, MinDwell: cfg.MinDwell},
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	if err := mgr.Refresh(ctx); err != nil {
		return err
	}

	q := board.Query{
		Station:    departures.StationID(c.Station),
		Mode:       departures.ModeDeparture,
		Types:      types,
		Via:        c.Via,
		Passengers: true,
		Freight:    true,
	}
	if c.Arrivals {
		q.Mode = departures.ModeArrival
	}
	b, err := mgr.Compute(q)
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(b)
	}
	return printBoard(b)
}

// openSource prefers a static feed and falls back to the importer database,
// following the latest import when CITY is set.
func openSource(ctx context.Context, cfg *config.Config, mcol *metrics.Collector, logger *logrus.Logger) (board.TimetableSource, func(), error) {
	if cfg.GTFSPath != "" {
		logger.WithField("path", cfg.GTFSPath).Info("using static GTFS feed")
		return gtfs.NewFeedSource(cfg.GTFSPath), func() {}, nil
	}
	if cfg.City != "" {
		var sm db.SwitchMetrics
		if mcol != nil {
			sm = mcol
		}
		cs, err := db.OpenCity(ctx, cfg.DatabaseURL, cfg.City, sm, logger)
		if err != nil {
			return nil, nil, err
		}
		return cs, func() { _ = cs.Close() }, nil
	}
	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.Ping(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}
	return db.NewStore(sqlDB), func() { _ = sqlDB.Close() }, nil
}

func printBoard(b *board.Board) error {
	fmt.Printf("%s %s (%s) at %s\n", strings.ToUpper(b.Mode), b.StationName, b.Station, b.ComputedAt.Format("15:04"))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	label := "TO"
	if b.Mode == board.ModeName(departures.ModeArrival) {
		label = "FROM"
	}
	fmt.Fprintf(w, "TIME\tVEHICLE\t%s\tVIA\tSTATUS\tCALLING AT\n", label)
	for _, e := range b.Entries {
		via := ""
		if e.Via != nil {
			via = e.Via.Name
		}
		status := e.Status
		if e.LatenessSec > 0 {
			status = fmt.Sprintf("%s +%dm", status, e.LatenessSec/60)
		}
		names := make([]string, 0, len(e.CallingAt))
		for _, c := range e.CallingAt {
			names = append(names, c.Name)
		}
		vehicle := e.VehicleName
		if vehicle == "" {
			vehicle = e.VehicleID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Scheduled.Format("15:04"), vehicle, e.Terminus.Name, via, status, strings.Join(names, ", "))
	}
	return w.Flush()
}
