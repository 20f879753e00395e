// Package pricing resolves seat prices from a pricing policy. The
// resolution is a pure function of (policy, seat type, session start):
// no I/O, no clock, no ordering dependence. The coordinator calls it
// per seat inside a loop and caches results per seat type, which is
// only sound because repeated calls with equal inputs return equal
// prices.
package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// ErrNoRule is returned when a policy has no rule covering the seat
// type at the session's start time. This is a configuration fault: the
// engine never falls back to a default price.
var ErrNoRule = errors.New("pricing: no matching rule")

// Resolve returns the price in cents for the seat type at the given
// session start. Rules are filtered to the seat type and the start's
// day of week, then by time-window containment (wrap past midnight
// supported). When both windowed and whole-day rules match, the
// windowed one wins; among several windowed matches the narrowest
// window wins, ties broken by lowest rule id so resolution stays
// deterministic.
func Resolve(policy *model.PricingPolicy, seatTypeID uint64, startsAt time.Time) (uint32, error) {
	if policy == nil {
		return 0, fmt.Errorf("%w: nil policy", ErrNoRule)
	}
	weekday := startsAt.Weekday()
	minute := uint16(startsAt.Hour()*60 + startsAt.Minute())

	var best *model.PricingRule
	for i := range policy.Rules {
		r := &policy.Rules[i]
		if r.SeatTypeID != seatTypeID || r.Weekday != weekday {
			continue
		}
		if r.Window != nil && !r.Window.Contains(minute) {
			continue
		}
		if best == nil || morePrecise(r, best) {
			best = r
		}
	}
	if best == nil {
		return 0, fmt.Errorf("%w: policy %d seat type %d at %s %02d:%02d",
			ErrNoRule, policy.ID, seatTypeID, weekday, startsAt.Hour(), startsAt.Minute())
	}
	return best.PriceCents, nil
}

// morePrecise reports whether a should be preferred over b. A windowed
// rule beats an unscoped one; between two windowed rules the smaller
// span wins; equal candidates resolve to the lower id.
func morePrecise(a, b *model.PricingRule) bool {
	if (a.Window != nil) != (b.Window != nil) {
		return a.Window != nil
	}
	if a.Window != nil && b.Window != nil && a.Window.Span() != b.Window.Span() {
		return a.Window.Span() < b.Window.Span()
	}
	return a.ID < b.ID
}
