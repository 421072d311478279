// Package board computes, caches and publishes station boards.
package board

import (
	"time"

	"departure-board/internal/departures"
)

// Call is a station shown on a board entry. Scheduled is omitted when the
// time is unknown.
type Call struct {
	Station   string     `json:"station"`
	Name      string     `json:"name"`
	Scheduled *time.Time `json:"scheduled,omitempty"`
}

type Entry struct {
	Scheduled   time.Time `json:"scheduled"`
	LatenessSec int       `json:"latenessSec"`
	Status      string    `json:"status"`
	VehicleID   string    `json:"vehicleId"`
	VehicleName string    `json:"vehicleName,omitempty"`
	VehicleType string    `json:"vehicleType"`
	Via         *Call     `json:"via,omitempty"`
	// Terminus is the origin on arrival boards.
	Terminus  Call   `json:"terminus"`
	CallingAt []Call `json:"callingAt"`
}

type Board struct {
	Name        string    `json:"name,omitempty"`
	Station     string    `json:"station"`
	StationName string    `json:"stationName"`
	Mode        string    `json:"mode"`
	ComputedAt  time.Time `json:"computedAt"`
	Entries     []Entry   `json:"entries"`
}

// StationNamer resolves display names for stations.
type StationNamer interface {
	StationName(id departures.StationID) string
}

// ModeName is the plural used in subjects and URLs.
func ModeName(m departures.Mode) string {
	if m == departures.ModeArrival {
		return "arrivals"
	}
	return "departures"
}

// Render converts computed records into a board.
func Render(q Query, at time.Time, records []departures.Departure, names StationNamer) *Board {
	b := &Board{
		Name:        q.Name,
		Station:     string(q.Station),
		StationName: names.StationName(q.Station),
		Mode:        ModeName(q.Mode),
		ComputedAt:  at,
		Entries:     make([]Entry, 0, len(records)),
	}
	for _, d := range records {
		e := Entry{
			Scheduled:   d.Scheduled,
			LatenessSec: int(d.Lateness / time.Second),
			Status:      d.Status.String(),
			Terminus:    call(d.Terminus, names),
			CallingAt:   make([]Call, 0, len(d.CallingAt)),
		}
		if d.Vehicle != nil {
			e.VehicleID = d.Vehicle.ID
			e.VehicleName = d.Vehicle.Name
			e.VehicleType = d.Vehicle.Type.String()
		}
		if d.Via != departures.NoStation {
			e.Via = &Call{Station: string(d.Via), Name: names.StationName(d.Via)}
		}
		for _, c := range d.CallingAt {
			e.CallingAt = append(e.CallingAt, call(c, names))
		}
		b.Entries = append(b.Entries, e)
	}
	return b
}

func call(c departures.CallAt, names StationNamer) Call {
	out := Call{Station: string(c.Station), Name: names.StationName(c.Station)}
	if !c.Scheduled.IsZero() {
		t := c.Scheduled
		out.Scheduled = &t
	}
	return out
}
