package departures

import (
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

var epoch = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func mins(n int) time.Duration { return time.Duration(n) * time.Minute }

func at(n int) time.Time { return epoch.Add(mins(n)) }

// call builds a timetabled station order.
func call(st StationID, travel, wait int) Order {
	return Order{
		Type:             OrderGotoStation,
		Destination:      st,
		TravelTime:       mins(travel),
		WaitTime:         mins(wait),
		TravelTimetabled: true,
	}
}

func noLoad(o Order) Order    { o.Load = NoLoad; return o }
func noUnload(o Order) Order  { o.Unload = NoUnload; return o }
func unloadAll(o Order) Order { o.Unload = UnloadAll; return o }
func nonStop(o Order) Order   { o.Stop = NoStopAtAny; return o }

// terminal is a station where everyone gets off and nobody boards.
func terminal(st StationID, travel, wait int) Order {
	return noLoad(unloadAll(call(st, travel, wait)))
}

func vehicle(id string, orders ...Order) *Vehicle {
	return &Vehicle{
		ID:     id,
		Type:   VehicleTrain,
		Orders: orders,
		Parts:  []Part{{Capacity: 100, Cargo: CargoPassengers}},
	}
}

// lineVehicle runs A -> S -> B and back to A.
func lineVehicle(id string) *Vehicle {
	return vehicle(id,
		noUnload(call("A", 10, 10)),
		call("S", 10, 20),
		terminal("B", 10, 10),
	)
}

type stubSource struct {
	byType map[VehicleType][]*Vehicle
	err    error
}

func (s stubSource) VehiclesAt(_ StationID, vt VehicleType) ([]*Vehicle, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byType[vt], nil
}

func trains(vs ...*Vehicle) stubSource {
	return stubSource{byType: map[VehicleType][]*Vehicle{VehicleTrain: vs}}
}

var errSource = errors.New("enumeration failed")

func testSettings(horizon int) Settings {
	s := DefaultSettings()
	s.Horizon = mins(horizon)
	s.MaxResults = 10
	return s
}

func newTestScheduler(src VehicleSource, settings Settings) *Scheduler {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewScheduler(src, settings, func() time.Time { return epoch }, logger, nil)
}

func departuresAt(s *Scheduler, st StationID) []Departure {
	return s.ComputeSchedule(st, AllVehicleTypes(), ModeDeparture, false, true, true)
}

func arrivalsAt(s *Scheduler, st StationID) []Departure {
	return s.ComputeSchedule(st, AllVehicleTypes(), ModeArrival, false, true, true)
}

func stations(calls []CallAt) []StationID {
	out := make([]StationID, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Station)
	}
	return out
}

func cloneVehicle(v *Vehicle) *Vehicle {
	c := *v
	c.Orders = append([]Order(nil), v.Orders...)
	c.Parts = append([]Part(nil), v.Parts...)
	return &c
}
