// Package model defines the core domain types for the hall attendance system.
package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// Status is the kind of movement an attendance event records.
type Status string

const (
	StatusEntry     Status = "ENTRY"
	StatusToiletOut Status = "TOILET_OUT"
	StatusToiletIn  Status = "TOILET_IN"
	StatusExit      Status = "EXIT"
)

// Statuses lists every status a Summary keeps a counter for.
var Statuses = []Status{StatusEntry, StatusToiletOut, StatusToiletIn, StatusExit}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusEntry, StatusToiletOut, StatusToiletIn, StatusExit:
		return true
	}
	return false
}

// ProvenanceAdminEdit tags events synthesized from an administrator correction.
const ProvenanceAdminEdit = "ADMIN_EDIT"

// Session is a scheduled attendance-taking window for a subject in a hall.
type Session struct {
	ID          string    `json:"id"`
	SubjectCode string    `json:"subjectCode"`
	SubjectName string    `json:"subjectName"`
	HallID      string    `json:"hallId"`
	StartAt     time.Time `json:"startAt"`
	EndAt       time.Time `json:"endAt"`
	Locked      bool      `json:"locked"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Summary holds the live aggregate counters for one session.
type Summary struct {
	Counts        map[Status]int `json:"counts"`
	UniquePresent int            `json:"uniquePresent"`
	Completed     int            `json:"completed"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// NewSummary returns a summary with every status counter at zero.
func NewSummary(at time.Time) *Summary {
	counts := make(map[Status]int, len(Statuses))
	for _, s := range Statuses {
		counts[s] = 0
	}
	return &Summary{Counts: counts, UpdatedAt: at}
}

// AttendanceEvent is a single movement reported for a student in a session.
// ServerTimestamp is nil until the event has been admitted.
type AttendanceEvent struct {
	SessionID       string     `json:"sessionId"`
	Status          Status     `json:"status"`
	HallID          string     `json:"hallId"`
	StudentID       string     `json:"studentId"`
	ClientTimestamp *time.Time `json:"ts,omitempty"`
	ServerTimestamp *time.Time `json:"serverTimestamp,omitempty"`
	Provenance      string     `json:"provenance,omitempty"`
	EditedBy        string     `json:"editedBy,omitempty"`
}

// OperationType names an administrator operation.
type OperationType string

// OperationAmendAttendance is the only operation type that has an effect.
const OperationAmendAttendance OperationType = "amendAttendance"

// OperationStatus is the lifecycle state of an AdminOperation. The zero value
// means pending.
type OperationStatus string

const (
	OperationPending  OperationStatus = ""
	OperationApplied  OperationStatus = "applied"
	OperationRejected OperationStatus = "rejected"
	OperationIgnored  OperationStatus = "ignored"
	OperationError    OperationStatus = "error"
)

// Terminal reports whether the status is final.
func (s OperationStatus) Terminal() bool {
	return s != OperationPending
}

// AdminOperation is a privileged, audited request to change attendance data.
type AdminOperation struct {
	Type        OperationType   `json:"type"`
	RequestedBy string          `json:"requestedBy"`
	RequesterID string          `json:"requestedByUid"`
	SessionID   string          `json:"sessionId"`
	Payload     AttendanceEvent `json:"payload"`
	Status      OperationStatus `json:"status,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	EventID     string          `json:"eventId,omitempty"`
	ReviewedAt  *time.Time      `json:"reviewedAt,omitempty"`
}

// Resolution is the terminal decision written back onto an AdminOperation.
// EventID is set only when a correction event was inserted.
type Resolution struct {
	Status     OperationStatus
	Reason     string
	EventID    string
	ReviewedAt time.Time
}

// User is the directory entry the audit pipeline re-checks privileges against.
type User struct {
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
}

// SessionRequest is the payload for creating or updating a session.
type SessionRequest struct {
	SessionID   string     `json:"sessionId"`
	SubjectCode string     `json:"subjectCode"`
	SubjectName string     `json:"subjectName"`
	HallID      string     `json:"hallId"`
	StartAt     *time.Time `json:"startAt"`
	EndAt       *time.Time `json:"endAt"`
}

// LockRequest is the payload for locking or unlocking a session.
type LockRequest struct {
	Locked Flag `json:"locked"`
}

// Flag is a boolean that accepts any JSON value and keeps its truthiness:
// false, 0, "", null and a missing value are false, everything else is true.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(bytes.TrimSpace(data), &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*f = false
	case bool:
		*f = Flag(t)
	case float64:
		*f = t != 0
	case string:
		*f = t != ""
	default:
		*f = true
	}
	return nil
}

// SessionResponse reports the effective session id after an upsert.
type SessionResponse struct {
	SessionID string `json:"sessionId"`
}

// SubmissionResponse reports the key and outcome of a submitted record.
type SubmissionResponse struct {
	ID       string `json:"id"`
	Decision string `json:"decision,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Status   string `json:"status,omitempty"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
