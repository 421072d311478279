package gtfs

// GTFS route_type codes used to pick a vehicle type.
const (
	RouteTypeTram       = 0
	RouteTypeSubway     = 1
	RouteTypeRail       = 2
	RouteTypeBus        = 3
	RouteTypeFerry      = 4
	RouteTypeCableTram  = 5
	RouteTypeAerialLift = 6
	RouteTypeFunicular  = 7
	RouteTypeTrolleybus = 11
	RouteTypeMonorail   = 12
	// Extended route types (hierarchical vehicle descriptions).
	RouteTypeAirService = 1100
)

// Pickup and drop-off type that means nobody boards or alights.
const NoPickupDropOff = 1

type Trip struct {
	TripID    string
	RouteID   string
	ServiceID string
	BlockID   string // empty if the feed has no blocks
	RouteType int
	RouteName string
	Headsign  string
}

type StopTime struct {
	StopSequence int
	ArrivalSec   int // seconds since midnight (can exceed 24h)
	DepartureSec int // seconds since midnight (can exceed 24h)
	StopID       string
	StopName     string
	PickupType   int
	DropOffType  int
}

// Timetable is one trip together with its stop times in sequence order.
type Timetable struct {
	Trip
	StopTimes []StopTime
}

// FirstDeparture returns the departure of the first stop, or -1 if the trip
// has no stops.
func (t Timetable) FirstDeparture() int {
	if len(t.StopTimes) == 0 {
		return -1
	}
	return t.StopTimes[0].DepartureSec
}
