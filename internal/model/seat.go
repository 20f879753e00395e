package model

import "time"

// SeatStatus describes the physical state of a seat, independent of
// any session. Availability for a particular session is always derived
// (active seat, no live ticket, no foreign soft lock) and never stored.
type SeatStatus string

const (
	SeatActive      SeatStatus = "ACTIVE"
	SeatInactive    SeatStatus = "INACTIVE"
	SeatMaintenance SeatStatus = "MAINTENANCE"
)

// Seat describes a physical seat in a hall. Seats are uniquely
// identified by their hall, row label and seat number.
//
// Fields:
//  ID         – primary key identifier.
//  HallID     – hall to which this seat belongs.
//  SeatTypeID – seat class (references seat_types).
//  RowLabel   – letter or string designating the row.
//  SeatNumber – number of the seat within the row.
//  Status     – physical availability of the seat.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Seat struct {
	ID         uint64     // seats.id
	HallID     uint64     // seats.hall_id
	SeatTypeID uint64     // seats.seat_type_id
	RowLabel   string     // seats.row_label
	SeatNumber uint32     // seats.seat_number
	Status     SeatStatus // seats.status
	CreatedAt  time.Time  // seats.created_at
	UpdatedAt  time.Time  // seats.updated_at
}

// SeatType is a seat class (e.g. STANDARD, VIP, ACCESSIBLE) priced
// independently by pricing rules.
type SeatType struct {
	ID   uint64 // seat_types.id
	Name string // seat_types.name
}

// SeatAvailability is the externally observable state of a seat for a
// session, derived at query time.
type SeatAvailability string

const (
	SeatAvailable SeatAvailability = "AVAILABLE"
	SeatLocked    SeatAvailability = "LOCKED"
	SeatSold      SeatAvailability = "SOLD"
)
