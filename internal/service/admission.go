package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/hall-attendance/internal/model"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/repository"
)

// GracePeriod is how long after a session's end events are still admitted.
const GracePeriod = 15 * time.Minute

// Decision is the admission verdict for one event.
type Decision string

const (
	DecisionAdmitted  Decision = "admitted"
	DecisionDiscarded Decision = "discarded"
)

// Reasons an event is discarded.
const (
	ReasonIncomplete     = "incomplete event"
	ReasonUnknownSession = "unknown session"
	ReasonLocked         = "session locked"
	ReasonTooEarly       = "before session start"
	ReasonTooLate        = "after session end"
)

// Outcome reports what admission did with an event. Discarded events are
// removed from the store and never reach the summary; the submitter is not
// told, so the outcome is only visible to in-process callers and the log.
type Outcome struct {
	Decision        Decision
	Reason          string
	ServerTimestamp time.Time
	Summary         *model.Summary
}

// Admitted reports whether the event was accepted.
func (o Outcome) Admitted() bool {
	return o.Decision == DecisionAdmitted
}

// Admission decides whether a freshly inserted attendance event counts.
type Admission struct {
	sessions   *repository.SessionRepository
	events     *repository.AttendanceRepository
	aggregator *Aggregator
	now        Clock
}

// NewAdmission constructs an Admission with its dependencies.
func NewAdmission(
	sessions *repository.SessionRepository,
	events *repository.AttendanceRepository,
	aggregator *Aggregator,
	now Clock,
) *Admission {
	return &Admission{sessions: sessions, events: events, aggregator: aggregator, now: now}
}

// Admit checks the event stored under key and either discards it or stamps it
// with the server time and folds it into the session summary.
//
// Checks, in order: required fields, session existence, lock flag, and the
// window [startAt, endAt+GracePeriod] against the server clock. The event's
// own timestamp is never consulted.
func (a *Admission) Admit(ctx context.Context, key string, ev model.AttendanceEvent) (Outcome, error) {
	if !complete(ev) {
		return a.discard(ctx, key, ev, ReasonIncomplete)
	}

	session, err := a.sessions.Get(ctx, ev.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return a.discard(ctx, key, ev, ReasonUnknownSession)
		}
		return Outcome{}, fmt.Errorf("admit %s: %w", key, err)
	}

	now := a.now()
	switch {
	case session.Locked:
		return a.discard(ctx, key, ev, ReasonLocked)
	case now.Before(session.StartAt):
		return a.discard(ctx, key, ev, ReasonTooEarly)
	case now.After(session.EndAt.Add(GracePeriod)):
		return a.discard(ctx, key, ev, ReasonTooLate)
	}

	if err := a.events.Stamp(ctx, key, now); err != nil {
		return Outcome{}, fmt.Errorf("admit %s: %w", key, err)
	}
	sum, err := a.aggregator.Fold(ctx, ev.SessionID, ev.Status, now)
	if err != nil {
		return Outcome{}, fmt.Errorf("admit %s: %w", key, err)
	}
	return Outcome{Decision: DecisionAdmitted, ServerTimestamp: now, Summary: sum}, nil
}

func (a *Admission) discard(ctx context.Context, key string, ev model.AttendanceEvent, reason string) (Outcome, error) {
	if err := a.events.Delete(ctx, key); err != nil {
		return Outcome{}, fmt.Errorf("discard %s: %w", key, err)
	}
	log.Printf("attendance %s discarded: %s (session=%q status=%q)", key, reason, ev.SessionID, ev.Status)
	return Outcome{Decision: DecisionDiscarded, Reason: reason}, nil
}

// complete reports whether the event names a session, hall, student and one
// of the four statuses.
func complete(ev model.AttendanceEvent) bool {
	for _, field := range []string{ev.SessionID, ev.HallID, ev.StudentID} {
		if strings.TrimSpace(field) == "" {
			return false
		}
	}
	return ev.Status.Valid()
}
