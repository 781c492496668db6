package service

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/hall-attendance/internal/model"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/repository"
)

// AttendanceService is the entry point for attendance events from any caller.
type AttendanceService struct {
	events    *repository.AttendanceRepository
	admission *Admission
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(events *repository.AttendanceRepository, admission *Admission) *AttendanceService {
	return &AttendanceService{events: events, admission: admission}
}

// SubmitAttendanceEvent stores an untrusted event and runs admission on it.
// Fields only the server may set (server time, provenance, editor) are
// dropped before the event is stored.
//
// A discarded event is not an error: the outcome says what happened and the
// event is gone from the store.
func (s *AttendanceService) SubmitAttendanceEvent(ctx context.Context, ev model.AttendanceEvent) (string, Outcome, error) {
	ev.ServerTimestamp = nil
	ev.Provenance = ""
	ev.EditedBy = ""
	return s.submit(ctx, ev)
}

// submit inserts ev as is and hands it to admission. A non-empty key with a
// non-nil error means the event was stored but admission did not finish.
func (s *AttendanceService) submit(ctx context.Context, ev model.AttendanceEvent) (string, Outcome, error) {
	key, err := s.events.Create(ctx, &ev)
	if err != nil {
		return "", Outcome{}, fmt.Errorf("submit attendance event: %w", err)
	}
	outcome, err := s.admission.Admit(ctx, key, ev)
	if err != nil {
		return key, Outcome{}, err
	}
	return key, outcome, nil
}

// GetEvent returns a stored attendance event. Discarded events are not found.
func (s *AttendanceService) GetEvent(ctx context.Context, key string) (*model.AttendanceEvent, error) {
	if key == "" {
		return nil, invalidArgument("event id is required")
	}
	return s.events.Get(ctx, key)
}
