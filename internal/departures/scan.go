package departures

import (
	"math"
	"time"
)

// exhausted parks a candidate that has no further matching order.
const exhausted = time.Duration(math.MaxInt64)

// candidate is the next matching order of one vehicle.
type candidate struct {
	vehicle *Vehicle
	order   int
	// expected is the offset from now at which the order completes.
	expected time.Duration
	lateness time.Duration
	status   Status
}

// key is the ranking used to pick the next record.
func (c *candidate) key(mode Mode) time.Duration {
	if c.expected == exhausted {
		return exhausted
	}
	k := c.expected - c.lateness
	if mode == ModeArrival {
		k -= c.vehicle.Orders[c.order].WaitTime
	}
	return k
}

type scanResult int

const (
	scanFound scanResult = iota
	scanNotFound
	scanGaveUp
)

type scanOutcome struct {
	result   scanResult
	order    int
	expected time.Duration
	status   Status
}

func keepCancelled(s Status) Status {
	if s == StatusCancelled {
		return s
	}
	return StatusTravelling
}

// scan walks forward from order from for at most one lap, adding the travel
// and wait time of every visited order to expected, until an order matches
// the query. expected must not yet include the times of from.
func (q *query) scan(v *Vehicle, from int, expected, lateness time.Duration, status Status) scanOutcome {
	n := v.NumOrders()
	order := from
	jumped := false
	for i := n; i > 0; i-- {
		o := v.Orders[order]
		// A taken branch lands on its target without travelling to it.
		if !jumped {
			expected += o.TravelTime
		}
		expected += o.WaitTime
		jumped = false

		if expected-lateness > q.settings.Horizon {
			return scanOutcome{result: scanGaveUp}
		}

		switch o.Type {
		case OrderConditional:
			switch q.settings.Conditionals {
			case ConditionalTake:
				if o.SkipTo < 0 || o.SkipTo >= n {
					return scanOutcome{result: scanGaveUp}
				}
				order = o.SkipTo
				jumped = true
			case ConditionalSkip:
				order = v.next(order)
			default:
				return scanOutcome{result: scanGaveUp}
			}
			status = keepCancelled(status)
			continue
		case OrderImplicit:
			order = v.next(order)
			continue
		}

		// No timetable data, nothing can be scheduled past this order.
		if o.TravelTime == 0 && !o.TravelTimetabled {
			return scanOutcome{result: scanGaveUp}
		}

		if q.matches(o) {
			return scanOutcome{result: scanFound, order: order, expected: expected, status: status}
		}

		status = keepCancelled(status)
		order = v.next(order)
	}
	return scanOutcome{result: scanNotFound}
}

// seed finds the first matching order of v. It returns nil when the vehicle
// contributes nothing to the board.
func (q *query) seed(v *Vehicle) *candidate {
	n := v.NumOrders()
	if n == 0 || v.StoppedInDepot {
		return nil
	}
	cur := v.CurrentOrder % n
	if cur < 0 {
		cur += n
	}

	expected := -v.CurrentOrderTime
	status := StatusTravelling
	if o := v.Orders[cur]; o.Type == OrderGotoDepot && o.DepotHalt {
		status = StatusCancelled
	}
	if v.Loading {
		status = StatusArrived
		expected -= v.Orders[cur].TravelTime + min(v.Lateness, 0)
	}

	out := q.scan(v, cur, expected, v.Lateness, status)
	if out.result != scanFound {
		return nil
	}
	// Cancelled and already due: nothing to show.
	if out.expected < 0 && out.status == StatusCancelled {
		return nil
	}

	c := &candidate{
		vehicle:  v,
		order:    out.order,
		expected: out.expected,
		lateness: max(v.Lateness, 0),
		status:   out.status,
	}
	// Early vehicles are shown at their scheduled time.
	if v.Lateness < 0 && !v.Loading {
		c.expected -= v.Lateness
	}
	return c
}

// advance moves c to the next matching order after the one just consumed.
func (q *query) advance(c *candidate) {
	v := c.vehicle
	out := q.scan(v, v.next(c.order), c.expected, c.lateness, c.status)
	if out.result == scanFound {
		c.order = out.order
		c.expected = out.expected
		c.status = out.status
	} else {
		c.expected = exhausted
	}
	// It cannot have arrived at a later stop yet.
	if c.status == StatusArrived {
		c.status = StatusTravelling
	}
}
