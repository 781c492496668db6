package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/Shivanand-hulikatti/hall-attendance/internal/identity"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/model"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/repository"
)

// Reasons recorded on resolved admin operations.
const (
	ReasonNotAdmin       = "not admin"
	ReasonInvalidPayload = "invalid payload"
	ReasonUnknownType    = "unknown type"
	ReasonApplied        = "applied"
)

// unknownEditor is recorded when neither a label nor an email is available.
const unknownEditor = "unknown"

// Auditor runs submitted admin operations to a terminal status.
type Auditor struct {
	ops        *repository.OperationRepository
	users      identity.Directory
	attendance *AttendanceService
	now        Clock
}

// NewAuditor constructs an Auditor with its dependencies.
func NewAuditor(
	ops *repository.OperationRepository,
	users identity.Directory,
	attendance *AttendanceService,
	now Clock,
) *Auditor {
	return &Auditor{ops: ops, users: users, attendance: attendance, now: now}
}

// SubmitAdminOperation stores the operation as pending and processes it.
func (a *Auditor) SubmitAdminOperation(ctx context.Context, op model.AdminOperation) (string, model.OperationStatus, error) {
	op.Status = model.OperationPending
	op.Reason = ""
	op.EventID = ""
	op.ReviewedAt = nil

	key, err := a.ops.Create(ctx, &op)
	if err != nil {
		return "", "", fmt.Errorf("submit admin operation: %w", err)
	}
	status, err := a.Process(ctx, key, op)
	return key, status, err
}

// Process drives the operation stored under key to a terminal status and
// writes that status back with a reason and review time.
//
// Operations that are already terminal are left alone. Failures and panics
// while deciding become the error status; the returned error is non-nil
// only when the terminal status itself could not be written.
func (a *Auditor) Process(ctx context.Context, key string, op model.AdminOperation) (model.OperationStatus, error) {
	if op.Status.Terminal() {
		return op.Status, nil
	}

	res := a.decideSafely(ctx, op)
	res.ReviewedAt = a.now()
	if err := a.ops.Resolve(ctx, key, res); err != nil {
		return res.Status, err
	}
	log.Printf("admin operation %s %s: %s (type=%q requester=%q)", key, res.Status, res.Reason, op.Type, op.RequesterID)
	return res.Status, nil
}

func (a *Auditor) decideSafely(ctx context.Context, op model.AdminOperation) (res model.Resolution) {
	defer func() {
		if r := recover(); r != nil {
			res = model.Resolution{Status: model.OperationError, Reason: fmt.Sprint(r)}
		}
	}()
	res, err := a.decide(ctx, op)
	if err != nil {
		return model.Resolution{Status: model.OperationError, Reason: err.Error()}
	}
	return res
}

func (a *Auditor) decide(ctx context.Context, op model.AdminOperation) (model.Resolution, error) {
	// Claims captured when the operation was issued may be stale, so the
	// requester is looked up again.
	user, err := a.users.LookupUser(ctx, op.RequesterID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return model.Resolution{}, fmt.Errorf("lookup requester: %w", err)
	}
	if user == nil || !user.IsAdmin {
		return model.Resolution{Status: model.OperationRejected, Reason: ReasonNotAdmin}, nil
	}

	switch op.Type {
	case model.OperationAmendAttendance:
		sessionID := strings.TrimSpace(op.SessionID)
		if sessionID == "" || !op.Payload.Status.Valid() {
			return model.Resolution{Status: model.OperationRejected, Reason: ReasonInvalidPayload}, nil
		}

		now := a.now()
		ev := op.Payload
		ev.SessionID = sessionID
		ev.Provenance = model.ProvenanceAdminEdit
		ev.EditedBy = editor(op.RequestedBy, user.Email)
		ev.ClientTimestamp = &now
		ev.ServerTimestamp = nil

		// The correction takes the ordinary admission path and may still be
		// discarded; the operation counts as applied once the event exists.
		eventID, outcome, err := a.attendance.submit(ctx, ev)
		if eventID == "" {
			return model.Resolution{}, err
		}
		if err != nil {
			log.Printf("admin correction %s stored but not admitted: %v", eventID, err)
		} else if !outcome.Admitted() {
			log.Printf("admin correction %s discarded: %s", eventID, outcome.Reason)
		}
		return model.Resolution{Status: model.OperationApplied, Reason: ReasonApplied, EventID: eventID}, nil
	default:
		return model.Resolution{Status: model.OperationIgnored, Reason: ReasonUnknownType}, nil
	}
}

func editor(label, email string) string {
	if s := strings.TrimSpace(label); s != "" {
		return s
	}
	if s := strings.TrimSpace(email); s != "" {
		return s
	}
	return unknownEditor
}

// GetOperation returns a stored admin operation.
func (a *Auditor) GetOperation(ctx context.Context, key string) (*model.AdminOperation, error) {
	if key == "" {
		return nil, invalidArgument("operation id is required")
	}
	return a.ops.Get(ctx, key)
}
