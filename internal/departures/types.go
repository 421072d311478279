package departures

import (
	"fmt"
	"strings"
	"time"
)

// StationID identifies a station (GTFS stop_id in the service).
type StationID string

// NoStation marks an absent via station.
const NoStation StationID = ""

type OrderType int

const (
	OrderGotoStation OrderType = iota
	OrderGotoWaypoint
	OrderGotoDepot
	OrderConditional
	OrderImplicit
)

type LoadPolicy int

const (
	LoadIfPossible LoadPolicy = iota
	FullLoad
	FullLoadAny
	NoLoad
)

type UnloadPolicy int

const (
	UnloadIfAccepted UnloadPolicy = iota
	UnloadAll
	Transfer
	NoUnload
)

type StopPolicy int

const (
	StopEverywhere StopPolicy = iota
	NoStopAtIntermediate
	NoStopAtDestination
	NoStopAtAny
)

// Order is one step of a vehicle's cyclic route.
type Order struct {
	Type        OrderType
	Destination StationID
	Load        LoadPolicy
	Unload      UnloadPolicy
	Stop        StopPolicy

	WaitTime         time.Duration
	TravelTime       time.Duration
	TravelTimetabled bool

	// SkipTo is the branch target of a conditional order.
	SkipTo int
	// DepotHalt is set on depot orders that stop the vehicle there.
	DepotHalt bool
}

func (o Order) nonStop() bool {
	return o.Stop == NoStopAtAny || o.Stop == NoStopAtDestination
}

// callsAtStation reports whether the order is a station or implicit stop.
func (o Order) callsAtStation() bool {
	return o.Type == OrderGotoStation || o.Type == OrderImplicit
}

type VehicleType int

const (
	VehicleTrain VehicleType = iota
	VehicleRoad
	VehicleTram
	VehicleShip
	VehicleAircraft
)

// NumVehicleTypes is the width of a VehicleTypeMask.
const NumVehicleTypes = 5

// VehicleTypeMask selects the vehicle types a board shows.
type VehicleTypeMask [NumVehicleTypes]bool

// AllVehicleTypes returns a mask with every type enabled.
func AllVehicleTypes() VehicleTypeMask {
	var m VehicleTypeMask
	for i := range m {
		m[i] = true
	}
	return m
}

var vehicleTypeNames = [NumVehicleTypes]string{"train", "road", "tram", "ship", "aircraft"}

func (t VehicleType) String() string {
	if t < 0 || int(t) >= NumVehicleTypes {
		return "unknown"
	}
	return vehicleTypeNames[t]
}

// ParseVehicleType maps a name as produced by String back to its type.
func ParseVehicleType(s string) (VehicleType, bool) {
	for i, name := range vehicleTypeNames {
		if name == s {
			return VehicleType(i), true
		}
	}
	return 0, false
}

// ParseVehicleTypes builds a mask from type names. An empty list selects
// every type.
func ParseVehicleTypes(names []string) (VehicleTypeMask, error) {
	var m VehicleTypeMask
	empty := true
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		vt, ok := ParseVehicleType(name)
		if !ok {
			return m, fmt.Errorf("unknown vehicle type %q", name)
		}
		m[vt] = true
		empty = false
	}
	if empty {
		return AllVehicleTypes(), nil
	}
	return m, nil
}

type CargoClass int

const (
	CargoPassengers CargoClass = iota
	CargoFreight
)

// Part is one unit of a vehicle's composition.
type Part struct {
	Capacity int
	Cargo    CargoClass
}

// Vehicle is a read-only view of a vehicle for one computation.
type Vehicle struct {
	ID   string
	Name string
	Type VehicleType

	Orders       []Order
	CurrentOrder int
	// CurrentOrderTime is the time spent in the current order so far. While
	// loading it counts from arrival.
	CurrentOrderTime time.Duration
	// Lateness is negative when the vehicle runs early.
	Lateness       time.Duration
	Loading        bool
	StoppedInDepot bool

	Parts []Part
}

// NumOrders returns the length of the route.
func (v *Vehicle) NumOrders() int { return len(v.Orders) }

// next returns the index after i, wrapping to the first order.
func (v *Vehicle) next(i int) int {
	return (i + 1) % len(v.Orders)
}

// CarriesPassengers reports whether any part with capacity carries passengers.
func (v *Vehicle) CarriesPassengers() bool {
	for _, p := range v.Parts {
		if p.Capacity > 0 && p.Cargo == CargoPassengers {
			return true
		}
	}
	return false
}

type Status int

const (
	StatusTravelling Status = iota
	StatusArrived
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusArrived:
		return "arrived"
	case StatusCancelled:
		return "cancelled"
	default:
		return "travelling"
	}
}

type Mode int

const (
	ModeDeparture Mode = iota
	ModeArrival
)

func (m Mode) String() string {
	if m == ModeArrival {
		return "arrival"
	}
	return "departure"
}

// CallAt is a station on a record together with its scheduled time. A zero
// time means the time is not known.
type CallAt struct {
	Station   StationID
	Scheduled time.Time
}

// Equal compares stations only.
func (c CallAt) Equal(o CallAt) bool { return c.Station == o.Station }

// covers reports whether c is the same station as o and is scheduled no
// earlier than o, both times being known.
func (c CallAt) covers(o CallAt) bool {
	return c.Station == o.Station &&
		!c.Scheduled.IsZero() && !o.Scheduled.IsZero() &&
		!c.Scheduled.Before(o.Scheduled)
}

// Departure is one entry of a departure or arrival board.
type Departure struct {
	Scheduled time.Time
	Lateness  time.Duration
	Status    Status
	Vehicle   *Vehicle
	Mode      Mode
	// Order is the index of the triggering order in Vehicle.Orders.
	Order     int
	Via       StationID
	Terminus  CallAt
	CallingAt []CallAt
}

// Equal is the merge-identical equality.
func (d *Departure) Equal(o *Departure) bool {
	if len(d.CallingAt) != len(o.CallingAt) {
		return false
	}
	for i := range d.CallingAt {
		if !d.CallingAt[i].Equal(o.CallingAt[i]) {
			return false
		}
	}
	return d.Scheduled.Equal(o.Scheduled) &&
		d.Status == o.Status &&
		d.Mode == o.Mode &&
		d.Via == o.Via &&
		d.Terminus.Equal(o.Terminus)
}

func containsStation(calls []CallAt, c CallAt) bool {
	for _, x := range calls {
		if x.Equal(c) {
			return true
		}
	}
	return false
}
