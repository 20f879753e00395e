package model

import "time"

// SessionStatus enumerates the lifecycle of a showtime.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "SCHEDULED"
	SessionCancelled SessionStatus = "CANCELLED"
	SessionEnded     SessionStatus = "ENDED"
)

// Session represents a scheduled screening of a movie in a particular
// hall. The pricing policy referenced here determines per-seat prices
// at reservation time. Once tickets exist a session is immutable except
// for reschedule, which the repository rejects when the new time window
// overlaps another session in the same hall.
//
// Fields:
//  ID              – primary key identifier.
//  HallID          – hall where the session takes place.
//  MovieID         – movie being screened.
//  PricingPolicyID – pricing policy resolved per seat at checkout.
//  StartsAt        – when the session begins (UTC).
//  EndsAt          – when the session ends (must be after StartsAt).
//  Status          – current state of the session.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Session struct {
	ID              uint64        // sessions.id
	HallID          uint64        // sessions.hall_id
	MovieID         uint64        // sessions.movie_id
	PricingPolicyID uint64        // sessions.pricing_policy_id
	StartsAt        time.Time     // sessions.starts_at
	EndsAt          time.Time     // sessions.ends_at
	Status          SessionStatus // sessions.status
	CreatedAt       time.Time     // sessions.created_at
	UpdatedAt       time.Time     // sessions.updated_at
}
