package departures

import "time"

// addKnown adds d to t unless t is unknown.
func addKnown(t time.Time, d time.Duration) time.Time {
	if t.IsZero() {
		return t
	}
	return t.Add(d)
}

// walkTerminus fills the calling-at sequence, terminus and via station of a
// departure. It reports whether a terminus was found.
//
// Stations count as called at only when the vehicle unloads there. The
// terminus is the last distinct station called at before the route repeats,
// reaches the queried station again or unloads everything.
func (q *query) walkTerminus(d *Departure) bool {
	v := d.Vehicle
	trigger := d.Order
	showAll := q.settings.ShowAllStops
	candidateVia := NoStation

	order := v.next(trigger)
	c := CallAt{Station: v.Orders[order].Destination, Scheduled: d.Scheduled}
	for i := v.NumOrders(); i > 0; i-- {
		if order == trigger {
			return len(d.CallingAt) > 0
		}
		o := v.Orders[order]

		if o.Type == OrderConditional {
			switch q.settings.Conditionals {
			case ConditionalTake:
				if o.SkipTo < 0 || o.SkipTo >= v.NumOrders() {
					return false
				}
				order = o.SkipTo
			case ConditionalSkip:
				order = v.next(order)
			default:
				return false
			}
			continue
		}

		// Back at the queried station.
		if o.Type == OrderGotoStation && o.Destination == q.station &&
			(o.Unload != NoUnload || showAll) && !o.nonStop() {
			return len(d.CallingAt) > 0
		}

		if o.nonStop() && o.Type == OrderGotoStation && d.Via == NoStation {
			candidateVia = o.Destination
		}

		if o.TravelTime != 0 || o.TravelTimetabled {
			c.Scheduled = addKnown(c.Scheduled, o.TravelTime)
		} else {
			c.Scheduled = time.Time{}
		}
		c.Station = o.Destination

		if (o.Unload == NoUnload && !showAll) || !o.callsAtStation() || o.nonStop() {
			c.Scheduled = addKnown(c.Scheduled, o.WaitTime)
			order = v.next(order)
			continue
		}

		// Repeating a station: the previous call is the terminus.
		if containsStation(d.CallingAt, c) {
			return true
		}

		if d.Via == NoStation && candidateVia == o.Destination {
			d.Via = o.Destination
		}
		d.Terminus = c
		d.CallingAt = append(d.CallingAt, c)

		if o.Type == OrderGotoStation && o.Unload == UnloadAll {
			return true
		}

		c.Scheduled = addKnown(c.Scheduled, o.WaitTime)
		order = v.next(order)
	}
	return false
}

// walkOrigin fills the origin and calling-at sequence of an arrival. It
// reports whether an origin was found.
//
// The origin is the first station after the trigger (going round the route)
// that loads and is not followed, before the trigger, by a full unload or by
// another visit to itself or to the queried station.
func (q *query) walkOrigin(d *Departure) bool {
	v := d.Vehicle
	n := v.NumOrders()
	trigger := d.Order
	showAll := q.settings.ShowAllStops

	// Arrivals are shown when unloading starts.
	d.Scheduled = d.Scheduled.Add(-v.Orders[trigger].WaitTime)

	origin := v.next(trigger)
	found := false
	for i := 0; i < n && origin != trigger; i++ {
		o := v.Orders[origin]
		if (o.Load != NoLoad || showAll) && o.callsAtStation() && o.Destination != q.station &&
			!q.collides(v, origin, trigger) {
			found = true
			break
		}
		origin = v.next(origin)
	}
	if !found {
		return false
	}

	for order, i := v.next(origin), 0; order != trigger && i < n; order, i = v.next(order), i+1 {
		o := v.Orders[order]
		if o.Type == OrderGotoStation && (o.Load != NoLoad || showAll) {
			d.CallingAt = append(d.CallingAt, CallAt{Station: o.Destination})
		}
	}
	d.Terminus = CallAt{Station: v.Orders[origin].Destination}
	return true
}

// collides reports whether the journey from candidate origin to trigger
// passes a full unload or visits the origin or the queried station again.
func (q *query) collides(v *Vehicle, origin, trigger int) bool {
	dest := v.Orders[origin].Destination
	for o, i := v.next(origin), 0; o != trigger && i < v.NumOrders(); o, i = v.next(o), i+1 {
		step := v.Orders[o]
		if step.Unload == UnloadAll {
			return true
		}
		if step.callsAtStation() && (step.Destination == dest || step.Destination == q.station) {
			return true
		}
	}
	return false
}
