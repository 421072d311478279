// Package fleet turns timetables into a snapshot of vehicles running cyclic
// order lists, positioned at a moment in time.
package fleet

import (
	"sort"
	"time"

	"departure-board/internal/departures"
	"departure-board/internal/gtfs"
)

const day = 24 * 3600

type BuildOptions struct {
	// Location is used to derive the time of day. Defaults to time.Local.
	Location *time.Location
	// MinDwell is given to stops whose timetable has no dwell, so that
	// vehicles can be seen departing from them.
	MinDwell time.Duration
}

// VehicleType maps a GTFS route type (basic or extended) to a vehicle type.
func VehicleType(routeType int) departures.VehicleType {
	switch routeType {
	case gtfs.RouteTypeTram, gtfs.RouteTypeCableTram, gtfs.RouteTypeAerialLift:
		return departures.VehicleTram
	case gtfs.RouteTypeSubway, gtfs.RouteTypeRail, gtfs.RouteTypeMonorail, gtfs.RouteTypeFunicular:
		return departures.VehicleTrain
	case gtfs.RouteTypeBus, gtfs.RouteTypeTrolleybus:
		return departures.VehicleRoad
	case gtfs.RouteTypeFerry:
		return departures.VehicleShip
	}
	switch {
	case routeType >= 100 && routeType < 200, routeType >= 400 && routeType < 500, routeType == 1400:
		return departures.VehicleTrain
	case routeType >= 900 && routeType < 1000, routeType == 1300:
		return departures.VehicleTram
	case routeType >= 1000 && routeType < 1100, routeType == 1200:
		return departures.VehicleShip
	case routeType >= 1100 && routeType < 1200:
		return departures.VehicleAircraft
	}
	return departures.VehicleRoad
}

// stop is one stop time laid out on the block's timeline.
type stop struct {
	gtfs.StopTime
	first, last bool
}

// Build creates a snapshot of every block in timetables positioned at now.
func Build(timetables []gtfs.Timetable, now time.Time, opts BuildOptions) *Snapshot {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	local := now.In(opts.Location)
	tod := local.Hour()*3600 + local.Minute()*60 + local.Second()

	blocks := make(map[string][]gtfs.Timetable)
	snap := newSnapshot(now)
	for _, tt := range timetables {
		if len(tt.StopTimes) < 2 {
			continue
		}
		key := tt.BlockID
		if key == "" {
			key = tt.TripID
		}
		blocks[key] = append(blocks[key], tt)
		for _, st := range tt.StopTimes {
			snap.names[departures.StationID(st.StopID)] = st.StopName
		}
	}

	keys := make([]string, 0, len(blocks))
	for k := range blocks {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		trips := blocks[key]
		sort.SliceStable(trips, func(i, j int) bool {
			if trips[i].FirstDeparture() != trips[j].FirstDeparture() {
				return trips[i].FirstDeparture() < trips[j].FirstDeparture()
			}
			return trips[i].TripID < trips[j].TripID
		})
		v := buildVehicle(key, trips, tod, opts.MinDwell)
		snap.add(v)
	}
	return snap
}

func buildVehicle(id string, trips []gtfs.Timetable, tod int, minDwell time.Duration) *departures.Vehicle {
	var stops []stop
	for _, t := range trips {
		for j, st := range t.StopTimes {
			stops = append(stops, stop{StopTime: st, first: j == 0, last: j == len(t.StopTimes)-1})
		}
	}

	// Keep the timeline monotonic in case of overlapping trips.
	prev := stops[0].DepartureSec
	for i := range stops {
		s := &stops[i]
		if i > 0 && s.ArrivalSec < prev {
			s.ArrivalSec = prev
		}
		if s.DepartureSec < s.ArrivalSec {
			s.DepartureSec = s.ArrivalSec
		}
		prev = s.DepartureSec
	}

	n := len(stops)
	span := stops[n-1].DepartureSec - stops[0].ArrivalSec
	cycle := day
	for cycle < span {
		cycle += day
	}
	// The cycle starts right after the last departure of the previous lap.
	lo := stops[n-1].DepartureSec - cycle

	v := &departures.Vehicle{
		ID:    id,
		Name:  trips[0].RouteName,
		Type:  VehicleType(trips[0].RouteType),
		Parts: []departures.Part{{Capacity: 1, Cargo: departures.CargoPassengers}},
	}

	prevDep := lo
	arrivals := make([]int, n)
	for i, s := range stops {
		o := departures.Order{
			Type:             departures.OrderGotoStation,
			Destination:      departures.StationID(s.StopID),
			TravelTimetabled: true,
		}
		travel := s.ArrivalSec - prevDep
		wait := s.DepartureSec - s.ArrivalSec

		if s.PickupType == gtfs.NoPickupDropOff || s.last {
			o.Load = departures.NoLoad
		}
		if s.DropOffType == gtfs.NoPickupDropOff || s.first {
			o.Unload = departures.NoUnload
		}
		if s.last {
			o.Unload = departures.UnloadAll
		}

		serves := o.Load != departures.NoLoad || o.Unload != departures.NoUnload
		if wait == 0 && serves && minDwell > 0 {
			dwell := min(int(minDwell/time.Second), travel)
			travel -= dwell
			wait += dwell
		}
		o.TravelTime = time.Duration(travel) * time.Second
		o.WaitTime = time.Duration(wait) * time.Second
		v.Orders = append(v.Orders, o)

		arrivals[i] = prevDep + travel
		prevDep = s.DepartureSec
	}

	place(v, stops, arrivals, lo, cycle, tod)
	return v
}

// place sets the current order of v for the time of day tod. The order
// current at x is the first one departing after it; x falls in [lo, last
// departure) so one always exists.
func place(v *departures.Vehicle, stops []stop, arrivals []int, lo, cycle, tod int) {
	x := lo + ((tod-lo)%cycle+cycle)%cycle

	prevDep := lo
	for i, s := range stops {
		if x < s.DepartureSec {
			v.CurrentOrder = i
			if x >= arrivals[i] {
				v.Loading = true
				v.CurrentOrderTime = time.Duration(x-arrivals[i]) * time.Second
			} else {
				v.CurrentOrderTime = time.Duration(x-prevDep) * time.Second
			}
			return
		}
		prevDep = s.DepartureSec
	}
}
