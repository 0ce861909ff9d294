package models

import "time"

// Student is a child on the class roster.
type Student struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Attendance is one presence record per student per day.
type Attendance struct {
	StudentID  string    `json:"student_id"`
	Day        string    `json:"day"` // YYYY-MM-DD
	Present    bool      `json:"present"`
	RecordedBy string    `json:"recorded_by"`
	Role       Role      `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

// OfferingKind distinguishes money coming in from money going out.
type OfferingKind string

const (
	OfferingIn  OfferingKind = "in"
	OfferingOut OfferingKind = "out"
)

// Offering is a ledger entry.
type Offering struct {
	ID         string       `json:"id"`
	Kind       OfferingKind `json:"kind"`
	Amount     float64      `json:"amount"`
	Note       string       `json:"note,omitempty"`
	RecordedBy string       `json:"recorded_by"`
	CreatedAt  time.Time    `json:"created_at"`
}

// LedgerTotals summarises the open ledger.
type LedgerTotals struct {
	In          float64 `json:"in"`
	Out         float64 `json:"out"`
	Balance     float64 `json:"balance"`
	Accumulated float64 `json:"accumulated"`
}

// File is an entry in the shared materials listing.
type File struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url,omitempty"`
	AddedBy   string    `json:"added_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Registration is a family sign-up form.
type Registration struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	BirthDate        string    `json:"birth_date,omitempty"`
	Guardian         string    `json:"guardian,omitempty"`
	Phone            string    `json:"phone"`
	Address          string    `json:"address,omitempty"`
	EmergencyPhone   string    `json:"emergency_phone,omitempty"`
	EmergencyContact string    `json:"emergency_contact,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
