package model

import "time"

// PricingPolicy is a named set of pricing rules. A session references
// exactly one policy; the policy is loaded once per reservation attempt
// and prices are resolved from its rules in memory.
type PricingPolicy struct {
	ID    uint64        // pricing_policies.id
	Name  string        // pricing_policies.name
	Rules []PricingRule // pricing_rules rows belonging to this policy
}

// PricingRule maps (seat type, day of week, optional time-of-day
// window) to a price. A rule without a window applies to the whole
// day; a rule with a window applies only when the session start time
// falls inside it. Windows may wrap past midnight (StartMin > EndMin).
//
// Fields:
//  ID         – primary key identifier.
//  PolicyID   – owning pricing policy.
//  SeatTypeID – seat class the rule prices.
//  Weekday    – day of week of the session start (time.Weekday).
//  Window     – optional time-of-day scope, nil for whole-day rules.
//  PriceCents – price in cents.
type PricingRule struct {
	ID         uint64       // pricing_rules.id
	PolicyID   uint64       // pricing_rules.policy_id
	SeatTypeID uint64       // pricing_rules.seat_type_id
	Weekday    time.Weekday // pricing_rules.day_of_week
	Window     *TimeWindow  // pricing_rules.starts_min / ends_min (both nullable)
	PriceCents uint32       // pricing_rules.price_cents
}

// TimeWindow is a half-open [StartMin, EndMin) range of minutes since
// midnight. When EndMin < StartMin the window wraps past midnight and
// covers [StartMin, 1440) plus [0, EndMin).
type TimeWindow struct {
	StartMin uint16
	EndMin   uint16
}

// Contains reports whether the given minute of the day falls inside
// the window, honouring midnight wrap.
func (w TimeWindow) Contains(minute uint16) bool {
	if w.StartMin <= w.EndMin {
		return minute >= w.StartMin && minute < w.EndMin
	}
	return minute >= w.StartMin || minute < w.EndMin
}

// Span is the window length in minutes; used to prefer the most
// specific rule when several windowed rules match.
func (w TimeWindow) Span() uint16 {
	if w.StartMin <= w.EndMin {
		return w.EndMin - w.StartMin
	}
	return (1440 - w.StartMin) + w.EndMin
}
