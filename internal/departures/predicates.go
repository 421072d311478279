package departures

// IsDeparture reports whether the vehicle stops at station and loads there.
func IsDeparture(o Order, station StationID, showAllStops bool) bool {
	return o.Type == OrderGotoStation &&
		o.Destination == station &&
		(o.Load != NoLoad || showAllStops) &&
		o.WaitTime != 0
}

// IsVia reports whether the vehicle passes station without stopping.
func IsVia(o Order, station StationID) bool {
	return (o.Type == OrderGotoStation || o.Type == OrderGotoWaypoint) &&
		o.Destination == station &&
		o.nonStop()
}

// IsArrival reports whether the vehicle stops at station and unloads there.
func IsArrival(o Order, station StationID, showAllStops bool) bool {
	return o.Type == OrderGotoStation &&
		o.Destination == station &&
		(o.Unload != NoUnload || showAllStops) &&
		o.WaitTime != 0
}

// matches is the per-mode test used by the forward scanner.
func (q *query) matches(o Order) bool {
	if q.mode == ModeArrival {
		return IsArrival(o, q.station, q.settings.ShowAllStops)
	}
	return IsDeparture(o, q.station, q.settings.ShowAllStops) ||
		(q.includeVia && IsVia(o, q.station))
}
