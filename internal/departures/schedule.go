package departures

import (
	"time"

	"github.com/sirupsen/logrus"
)

// maxIterations bounds the scheduling loop independently of its natural
// termination.
const maxIterations = 10000

// VehicleSource enumerates the vehicles whose orders touch a station.
type VehicleSource interface {
	VehiclesAt(station StationID, vehicleType VehicleType) ([]*Vehicle, error)
}

// Metrics receives observations about each computation. Implementations may
// be nil.
type Metrics interface {
	ObserveSchedule(mode Mode, d time.Duration, candidates, records int)
	SourceErrorInc()
	IterationCapInc()
}

// Scheduler computes departure and arrival boards from a vehicle source.
type Scheduler struct {
	source   VehicleSource
	settings Settings
	now      func() time.Time
	logger   *logrus.Logger
	metrics  Metrics
}

func NewScheduler(source VehicleSource, settings Settings, now func() time.Time, logger *logrus.Logger, metrics Metrics) *Scheduler {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Scheduler{
		source:   source,
		settings: settings,
		now:      now,
		logger:   logger,
		metrics:  metrics,
	}
}

// Settings returns the configuration the scheduler was built with.
func (s *Scheduler) Settings() Settings { return s.settings }

// query is the state of one ComputeSchedule call.
type query struct {
	station    StationID
	mode       Mode
	includeVia bool
	settings   Settings
	now        time.Time
}

// ComputeSchedule returns the upcoming departures (or arrivals) at station
// in the order they are due. It never fails: problems result in a shorter or
// empty list.
func (s *Scheduler) ComputeSchedule(station StationID, types VehicleTypeMask, mode Mode, includeVia, includePax, includeFreight bool) []Departure {
	start := time.Now()
	q := &query{
		station:    station,
		mode:       mode,
		includeVia: includeVia && mode == ModeDeparture,
		settings:   s.settings,
		now:        s.now(),
	}
	result := []Departure{}
	if !includePax && !includeFreight {
		return result
	}

	var candidates []*candidate
	for i, enabled := range types {
		if !enabled {
			continue
		}
		vt := VehicleType(i)
		vehicles, err := s.source.VehiclesAt(station, vt)
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"station":      station,
				"vehicle_type": vt.String(),
			}).Error("vehicle enumeration failed")
			if s.metrics != nil {
				s.metrics.SourceErrorInc()
			}
			return result
		}
		for _, v := range vehicles {
			if includePax != includeFreight && v.CarriesPassengers() != includePax {
				continue
			}
			if c := q.seed(v); c != nil {
				candidates = append(candidates, c)
			}
		}
	}

	result, iterations := q.run(candidates, result)
	if iterations >= maxIterations {
		s.logger.WithFields(logrus.Fields{
			"station": station,
			"mode":    mode.String(),
		}).Warn("departure loop hit iteration cap")
		if s.metrics != nil {
			s.metrics.IterationCapInc()
		}
	}

	s.logger.WithFields(logrus.Fields{
		"station":    station,
		"mode":       mode.String(),
		"candidates": len(candidates),
		"records":    len(result),
		"iterations": iterations,
	}).Debug("schedule computed")
	if s.metrics != nil {
		s.metrics.ObserveSchedule(mode, time.Since(start), len(candidates), len(result))
	}
	return result
}

// run repeatedly turns the least candidate into a record and advances it.
//
// Every iteration either appends a record or strictly increases the expected
// time of the selected candidate, which is bounded by the horizon. An
// iteration that would do neither exhausts the candidate instead.
func (q *query) run(candidates []*candidate, result []Departure) ([]Departure, int) {
	iterations := 0
	for ; iterations < maxIterations; iterations++ {
		if len(result) >= q.settings.MaxResults {
			break
		}
		least := q.selectLeast(candidates)
		if least == nil {
			break
		}

		before := least.expected
		appended := false
		if d, ok := q.materialize(least); ok {
			n := len(result)
			result = q.accept(result, d)
			appended = len(result) > n
		}

		q.advance(least)
		if !appended && least.expected <= before {
			least.expected = exhausted
		}
	}
	return result, iterations
}

// selectLeast returns the candidate with the smallest key within the
// horizon. Ties go to the candidate seeded first.
func (q *query) selectLeast(candidates []*candidate) *candidate {
	var least *candidate
	var leastKey time.Duration
	for _, c := range candidates {
		k := c.key(q.mode)
		if k == exhausted || k > q.settings.Horizon {
			continue
		}
		if least == nil || leastKey > k {
			least, leastKey = c, k
		}
	}
	return least
}
