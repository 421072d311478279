package gtfs

import (
	"fmt"
	"os"
	"sort"
	"time"

	gtfsstatic "github.com/jamespfennell/gtfs"
)

// LoadStatic reads and parses a static GTFS zip archive.
func LoadStatic(path string) (*gtfsstatic.Static, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading GTFS data: %w", err)
	}
	static, err := gtfsstatic.ParseStatic(b, gtfsstatic.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("error parsing GTFS data: %w", err)
	}
	return static, nil
}

// ServiceRunsOn reports whether svc runs on day. Added and removed dates
// from calendar_dates take precedence over the weekly calendar.
func ServiceRunsOn(svc *gtfsstatic.Service, day time.Time) bool {
	if svc == nil {
		return false
	}
	date := day.Format("20060102")
	if containsDate(svc.RemovedDates, date) {
		return false
	}
	if containsDate(svc.AddedDates, date) {
		return true
	}
	if !svc.StartDate.IsZero() && date < svc.StartDate.Format("20060102") {
		return false
	}
	if !svc.EndDate.IsZero() && date > svc.EndDate.Format("20060102") {
		return false
	}
	switch day.Weekday() {
	case time.Monday:
		return svc.Monday
	case time.Tuesday:
		return svc.Tuesday
	case time.Wednesday:
		return svc.Wednesday
	case time.Thursday:
		return svc.Thursday
	case time.Friday:
		return svc.Friday
	case time.Saturday:
		return svc.Saturday
	default:
		return svc.Sunday
	}
}

func containsDate(dates []time.Time, date string) bool {
	for _, d := range dates {
		if d.Format("20060102") == date {
			return true
		}
	}
	return false
}

// FromStatic converts the trips of a parsed feed that run on day into
// timetables. Trips without stop times are dropped.
func FromStatic(static *gtfsstatic.Static, day time.Time) []Timetable {
	var out []Timetable
	for i := range static.Trips {
		t := &static.Trips[i]
		if len(t.StopTimes) == 0 || !ServiceRunsOn(t.Service, day) {
			continue
		}
		tt := Timetable{Trip: Trip{
			TripID:   t.ID,
			BlockID:  t.BlockID,
			Headsign: t.Headsign,
		}}
		if t.Service != nil {
			tt.ServiceID = t.Service.Id
		}
		if t.Route != nil {
			tt.RouteID = t.Route.Id
			tt.RouteType = int(t.Route.Type)
			tt.RouteName = firstNonEmpty(t.Route.ShortName, t.Route.LongName, t.Route.Id)
		}
		for _, st := range t.StopTimes {
			s := StopTime{
				StopSequence: st.StopSequence,
				ArrivalSec:   int(st.ArrivalTime / time.Second),
				DepartureSec: int(st.DepartureTime / time.Second),
				PickupType:   int(st.PickupType),
				DropOffType:  int(st.DropOffType),
			}
			if st.Stop != nil {
				s.StopID = st.Stop.Id
				s.StopName = st.Stop.Name
			}
			tt.StopTimes = append(tt.StopTimes, s)
		}
		sort.SliceStable(tt.StopTimes, func(a, b int) bool {
			return tt.StopTimes[a].StopSequence < tt.StopTimes[b].StopSequence
		})
		out = append(out, tt)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
