package departures

// materialize builds the record for the selected candidate. It reports false
// when no terminus (or origin) exists, in which case nothing is shown for
// this round.
func (q *query) materialize(c *candidate) (Departure, bool) {
	d := Departure{
		Scheduled: q.now.Add(c.expected - c.lateness),
		Lateness:  c.lateness,
		Status:    c.status,
		Vehicle:   c.vehicle,
		Mode:      q.mode,
		Order:     c.order,
		Via:       NoStation,
	}
	if q.mode == ModeArrival {
		return d, q.walkOrigin(&d)
	}
	return d, q.walkTerminus(&d)
}

// accept appends d to result unless it merges with an earlier record.
func (q *query) accept(result []Departure, d Departure) []Departure {
	if q.settings.MergeIdentical {
		for i := range result {
			if result[i].Equal(&d) {
				return result
			}
		}
	}

	if q.mode == ModeDeparture && d.Status != StatusArrived && d.Lateness > 0 {
		// Show a late vehicle by when it arrives rather than when it leaves.
		d.Lateness -= d.Vehicle.Orders[d.Order].WaitTime
	}

	result = append(result, d)
	if q.mode == ModeDeparture && q.settings.SmartTerminus {
		shortenTermini(result)
	}
	return result
}

// shortenTermini pulls the terminus of earlier records back along their own
// calling-at sequence wherever the newest record reaches that terminus no
// later. Only Terminus fields of earlier records change.
func shortenTermini(result []Departure) {
	last := result[len(result)-1]
	for i := 0; i < len(result)-1; i++ {
		e := &result[i]
		if len(e.CallingAt) < 2 {
			continue
		}
		k := len(e.CallingAt) - 2
		for j := len(last.CallingAt) - 1; j >= 0; j-- {
			if !e.Terminus.covers(last.CallingAt[j]) {
				continue
			}
			e.Terminus = e.CallingAt[k]
			if k == 0 {
				break
			}
			k--
		}
	}
}
