package fleet

import (
	"fmt"
	"io"
	"testing"
	"time"

	"departure-board/internal/departures"
	"departure-board/internal/gtfs"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hm(s string) int {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		panic(err)
	}
	return h*3600 + m*60
}

func stopAt(id, arr, dep string) gtfs.StopTime {
	return gtfs.StopTime{StopID: id, StopName: "Stop " + id, ArrivalSec: hm(arr), DepartureSec: hm(dep)}
}

func trip(id, block string, stops ...gtfs.StopTime) gtfs.Timetable {
	for i := range stops {
		stops[i].StopSequence = i + 1
	}
	return gtfs.Timetable{
		Trip:      gtfs.Trip{TripID: id, BlockID: block, RouteType: gtfs.RouteTypeBus, RouteName: "42"},
		StopTimes: stops,
	}
}

// shuttle runs A -> B -> C and back within one block.
func shuttle() []gtfs.Timetable {
	return []gtfs.Timetable{
		trip("back", "b1",
			stopAt("C", "08:25", "08:30"),
			stopAt("B", "08:40", "08:41"),
			stopAt("A", "08:50", "08:50"),
		),
		trip("out", "b1",
			stopAt("A", "08:00", "08:00"),
			stopAt("B", "08:10", "08:12"),
			stopAt("C", "08:20", "08:20"),
		),
	}
}

func clock(h, m int) time.Time {
	return time.Date(2026, 10, 19, h, m, 0, 0, time.UTC)
}

func buildAt(t *testing.T, tts []gtfs.Timetable, now time.Time) *Snapshot {
	t.Helper()
	return Build(tts, now, BuildOptions{Location: time.UTC, MinDwell: 30 * time.Second})
}

func TestBuild_Orders(t *testing.T) {
	snap := buildAt(t, shuttle(), clock(8, 5))

	require.Len(t, snap.Vehicles, 1)
	v := snap.Vehicles[0]
	assert.Equal(t, "b1", v.ID)
	assert.Equal(t, "42", v.Name)
	assert.Equal(t, departures.VehicleRoad, v.Type)
	assert.True(t, v.CarriesPassengers())

	require.Len(t, v.Orders, 6)
	var dests []departures.StationID
	var total time.Duration
	for _, o := range v.Orders {
		dests = append(dests, o.Destination)
		total += o.TravelTime + o.WaitTime
		assert.True(t, o.TravelTimetabled)
	}
	assert.Equal(t, []departures.StationID{"A", "B", "C", "C", "B", "A"}, dests)
	assert.Equal(t, 24*time.Hour, total)

	// First stop of a trip: boarding only, with the minimum dwell.
	assert.Equal(t, departures.NoUnload, v.Orders[0].Unload)
	assert.Equal(t, departures.LoadIfPossible, v.Orders[0].Load)
	assert.Equal(t, 30*time.Second, v.Orders[0].WaitTime)

	assert.Equal(t, 10*time.Minute, v.Orders[1].TravelTime)
	assert.Equal(t, 2*time.Minute, v.Orders[1].WaitTime)

	// Last stop of a trip: everyone alights.
	assert.Equal(t, departures.UnloadAll, v.Orders[2].Unload)
	assert.Equal(t, departures.NoLoad, v.Orders[2].Load)
	assert.Equal(t, 7*time.Minute+30*time.Second, v.Orders[2].TravelTime)
	assert.Equal(t, 30*time.Second, v.Orders[2].WaitTime)

	assert.Equal(t, 5*time.Minute, v.Orders[3].TravelTime)
	assert.Equal(t, 5*time.Minute, v.Orders[3].WaitTime)
}

func TestBuild_PickupAndDropOff(t *testing.T) {
	noPickup := stopAt("B", "08:10", "08:12")
	noPickup.PickupType = gtfs.NoPickupDropOff
	noDropOff := stopAt("C", "08:20", "08:22")
	noDropOff.DropOffType = gtfs.NoPickupDropOff

	snap := buildAt(t, []gtfs.Timetable{
		trip("t", "", stopAt("A", "08:00", "08:00"), noPickup, noDropOff, stopAt("D", "08:30", "08:30")),
	}, clock(8, 5))

	require.Len(t, snap.Vehicles, 1)
	v := snap.Vehicles[0]
	assert.Equal(t, "t", v.ID)
	assert.Equal(t, departures.NoLoad, v.Orders[1].Load)
	assert.Equal(t, departures.UnloadIfAccepted, v.Orders[1].Unload)
	assert.Equal(t, departures.LoadIfPossible, v.Orders[2].Load)
	assert.Equal(t, departures.NoUnload, v.Orders[2].Unload)
}

func TestBuild_Placement(t *testing.T) {
	tests := []struct {
		name    string
		now     time.Time
		order   int
		loading bool
		elapsed time.Duration
	}{
		{"between A and B", clock(8, 5), 1, false, 5 * time.Minute},
		{"dwelling at B", clock(8, 11), 1, true, time.Minute},
		{"before service", clock(3, 0), 0, false, 65400 * time.Second},
		{"late evening", clock(23, 0), 0, false, 51000 * time.Second},
		{"layover at C", clock(8, 27), 3, true, 2 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := buildAt(t, shuttle(), tt.now).Vehicles[0]
			assert.Equal(t, tt.order, v.CurrentOrder)
			assert.Equal(t, tt.loading, v.Loading)
			assert.Equal(t, tt.elapsed, v.CurrentOrderTime)
		})
	}
}

func TestBuild_Blocks(t *testing.T) {
	tts := []gtfs.Timetable{
		trip("x", "", stopAt("A", "09:00", "09:00"), stopAt("B", "09:10", "09:10")),
		trip("y", "", stopAt("B", "09:00", "09:00"), stopAt("A", "09:10", "09:10")),
		trip("lonely", "", stopAt("A", "09:00", "09:00")),
	}
	tts[1].RouteType = gtfs.RouteTypeRail

	snap := buildAt(t, tts, clock(8, 0))

	require.Len(t, snap.Vehicles, 2)
	assert.Equal(t, "x", snap.Vehicles[0].ID)
	assert.Equal(t, "y", snap.Vehicles[1].ID)
	assert.Equal(t, departures.VehicleTrain, snap.Vehicles[1].Type)
}

func TestBuild_LongBlockWraps(t *testing.T) {
	tts := []gtfs.Timetable{
		trip("a", "night", stopAt("A", "05:00", "05:00"), stopAt("B", "20:00", "20:00")),
		trip("b", "night", stopAt("B", "21:00", "21:00"), stopAt("A", "30:00", "30:00")),
	}

	v := buildAt(t, tts, clock(12, 0)).Vehicles[0]

	var total time.Duration
	for _, o := range v.Orders {
		assert.GreaterOrEqual(t, o.TravelTime, time.Duration(0))
		total += o.TravelTime + o.WaitTime
	}
	assert.Equal(t, 48*time.Hour, total)
	assert.Equal(t, 1, v.CurrentOrder)
}

func TestSnapshot_VehiclesAt(t *testing.T) {
	snap := buildAt(t, shuttle(), clock(8, 5))

	vs, err := snap.VehiclesAt("B", departures.VehicleRoad)
	require.NoError(t, err)
	assert.Len(t, vs, 1)

	vs, err = snap.VehiclesAt("B", departures.VehicleTrain)
	require.NoError(t, err)
	assert.Empty(t, vs)

	vs, err = snap.VehiclesAt("nowhere", departures.VehicleRoad)
	require.NoError(t, err)
	assert.Empty(t, vs)

	assert.True(t, snap.HasStation("C"))
	assert.False(t, snap.HasStation("nowhere"))
	assert.Equal(t, "Stop A", snap.StationName("A"))
	assert.Equal(t, "nowhere", snap.StationName("nowhere"))
}

func TestVehicleType(t *testing.T) {
	tests := map[int]departures.VehicleType{
		gtfs.RouteTypeTram:       departures.VehicleTram,
		gtfs.RouteTypeCableTram:  departures.VehicleTram,
		gtfs.RouteTypeSubway:     departures.VehicleTrain,
		gtfs.RouteTypeRail:       departures.VehicleTrain,
		gtfs.RouteTypeMonorail:   departures.VehicleTrain,
		gtfs.RouteTypeBus:        departures.VehicleRoad,
		gtfs.RouteTypeTrolleybus: departures.VehicleRoad,
		gtfs.RouteTypeFerry:      departures.VehicleShip,
		gtfs.RouteTypeAirService: departures.VehicleAircraft,
		109:                      departures.VehicleTrain,
		700:                      departures.VehicleRoad,
		900:                      departures.VehicleTram,
		1000:                     departures.VehicleShip,
	}
	for rt, want := range tests {
		assert.Equal(t, want, VehicleType(rt), "route type %d", rt)
	}
}

func TestSnapshot_Schedule(t *testing.T) {
	now := clock(8, 5)
	snap := buildAt(t, shuttle(), now)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	settings := departures.DefaultSettings()
	s := departures.NewScheduler(snap, settings, func() time.Time { return now }, logger, nil)

	deps := s.ComputeSchedule("B", departures.AllVehicleTypes(), departures.ModeDeparture, false, true, true)
	require.Len(t, deps, 2)
	assert.Equal(t, clock(8, 12), deps[0].Scheduled)
	assert.Equal(t, departures.StationID("C"), deps[0].Terminus.Station)
	assert.Equal(t, clock(8, 41), deps[1].Scheduled)
	assert.Equal(t, departures.StationID("A"), deps[1].Terminus.Station)

	arrs := s.ComputeSchedule("C", departures.AllVehicleTypes(), departures.ModeArrival, false, true, true)
	require.Len(t, arrs, 1)
	assert.Equal(t, clock(8, 19).Add(30*time.Second), arrs[0].Scheduled)
	assert.Equal(t, departures.StationID("A"), arrs[0].Terminus.Station)
	assert.Equal(t, []departures.CallAt{{Station: "B"}}, arrs[0].CallingAt)
}
