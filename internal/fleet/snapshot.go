package fleet

import (
	"time"

	"departure-board/internal/departures"
)

// Snapshot is an immutable set of positioned vehicles indexed by the
// stations their routes visit.
type Snapshot struct {
	BuiltAt  time.Time
	Vehicles []*departures.Vehicle

	byStation map[departures.StationID]*[departures.NumVehicleTypes][]*departures.Vehicle
	names     map[departures.StationID]string
}

func newSnapshot(at time.Time) *Snapshot {
	return &Snapshot{
		BuiltAt:   at,
		byStation: make(map[departures.StationID]*[departures.NumVehicleTypes][]*departures.Vehicle),
		names:     make(map[departures.StationID]string),
	}
}

func (s *Snapshot) add(v *departures.Vehicle) {
	s.Vehicles = append(s.Vehicles, v)
	seen := make(map[departures.StationID]bool)
	for _, o := range v.Orders {
		if o.Destination == departures.NoStation || seen[o.Destination] {
			continue
		}
		seen[o.Destination] = true
		idx := s.byStation[o.Destination]
		if idx == nil {
			idx = new([departures.NumVehicleTypes][]*departures.Vehicle)
			s.byStation[o.Destination] = idx
		}
		idx[v.Type] = append(idx[v.Type], v)
	}
}

// VehiclesAt implements departures.VehicleSource. Unknown stations have no
// vehicles.
func (s *Snapshot) VehiclesAt(station departures.StationID, vt departures.VehicleType) ([]*departures.Vehicle, error) {
	idx := s.byStation[station]
	if idx == nil || vt < 0 || int(vt) >= departures.NumVehicleTypes {
		return nil, nil
	}
	return idx[vt], nil
}

// StationName returns the stop name from the timetable, or the ID itself.
func (s *Snapshot) StationName(id departures.StationID) string {
	if name := s.names[id]; name != "" {
		return name
	}
	return string(id)
}

// HasStation reports whether any vehicle visits id.
func (s *Snapshot) HasStation(id departures.StationID) bool {
	_, ok := s.byStation[id]
	return ok
}
