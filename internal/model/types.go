package model

import "time"

type StopKind string

const (
	KindPickup  StopKind = "pickup"
	KindDropoff StopKind = "dropoff"
	KindBoth    StopKind = "both"
)

type TripType string

const (
	TripArrival   TripType = "arrival"
	TripDeparture TripType = "departure"
)

// KindsFor returns the stop kinds a trip of the given type serves.
// Departure trips board passengers, arrival trips drop them off.
func KindsFor(t TripType) []StopKind {
	if t == TripArrival {
		return []StopKind{KindDropoff, KindBoth}
	}
	return []StopKind{KindPickup, KindBoth}
}

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Route struct {
	ID    string
	Name  string
	Start Point
	End   Point
}

type Stop struct {
	ID         string
	RouteID    string
	Name       string
	Lat        float64
	Lng        float64
	Kind       StopKind
	OrderIndex int
	Active     bool
}

type Trip struct {
	ID            string
	RouteID       string
	Date          time.Time // calendar date, midnight local
	Type          TripType
	MeetingTime   string // "HH:MM", empty when not set
	DepartureTime string // "HH:MM"
	Start         Point
	End           Point
	Active        bool
}

type TripStop struct {
	ID         string
	TripID     string
	Name       string
	Lat        float64
	Lng        float64
	OrderIndex int
}

// Waypoint is a resolved stop in render order, independent of whether it
// came from a trip override or the route's registered stops.
type Waypoint struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

type Driver struct {
	ID    string
	Name  string
	Phone string
}

// RouteAssignment links a driver to a corridor; TripAssignment to one run.
// Links are revoked by clearing Active, never deleted.
type RouteAssignment struct {
	ID       string
	DriverID string
	RouteID  string
	Active   bool
}

type TripAssignment struct {
	ID       string
	DriverID string
	TripID   string
	Active   bool
}

// Booking is read-only here except for the selected-stop reference.
type Booking struct {
	ID          string
	TripID      string
	PassengerID string
	StopID      string
	Status      string
}

const BookingRejected = "rejected"

// LivePosition is a current-state record, at most one per driver.
// Available=false means "no live marker" regardless of stored coordinates.
type LivePosition struct {
	DriverID  string    `json:"driver_id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Available bool      `json:"available"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ShareToken struct {
	Token        string
	BookingID    string
	TripID       string
	Revoked      bool
	ViewCount    int
	LastViewedAt *time.Time
	ExpiresAt    *time.Time
	CreatedAt    time.Time
}
