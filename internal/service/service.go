// Package service implements the attendance core: session administration,
// event admission, summary aggregation and the audited admin-operation
// pipeline, all on top of the repository layer.
package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/hall-attendance/internal/identity"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/repository"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/store"
)

// ErrPermissionDenied is returned when the caller lacks administrator privilege.
var ErrPermissionDenied = errors.New("permission denied")

// ErrInvalidArgument is returned for missing or malformed request fields.
var ErrInvalidArgument = errors.New("invalid argument")

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Clock returns the authoritative server time.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// Services bundles the wired core.
type Services struct {
	Admin      *AdminService
	Attendance *AttendanceService
	Audit      *Auditor
}

// New wires every service over a single record store. A nil clock uses the
// system clock; a nil directory reads users from the store.
func New(db *store.Store, clock Clock, directory identity.Directory) *Services {
	if clock == nil {
		clock = systemClock
	}
	if directory == nil {
		directory = repository.NewUserRepository(db)
	}

	sessions := repository.NewSessionRepository(db)
	summaries := repository.NewSummaryRepository(db)
	events := repository.NewAttendanceRepository(db)
	ops := repository.NewOperationRepository(db)

	aggregator := NewAggregator(summaries)
	admission := NewAdmission(sessions, events, aggregator, clock)
	attendance := NewAttendanceService(events, admission)

	return &Services{
		Admin:      NewAdminService(sessions, summaries, clock),
		Attendance: attendance,
		Audit:      NewAuditor(ops, directory, attendance, clock),
	}
}
