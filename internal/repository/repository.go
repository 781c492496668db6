// Package repository maps the attendance domain onto the keyed record store.
// Each repository owns one top-level path:
//
//	sessions/{sessionId}   model.Session
//	summaries/{sessionId}  model.Summary
//	attendance/{key}       model.AttendanceEvent
//	adminOps/{key}         model.AdminOperation
//	users/{uid}            model.User
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/hall-attendance/internal/model"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/store"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

const (
	sessionsRoot   = "sessions"
	summariesRoot  = "summaries"
	attendanceRoot = "attendance"
	adminOpsRoot   = "adminOps"
	usersRoot      = "users"
)

// get maps store misses, including paths that can never hold a record, to ErrNotFound.
func get(ctx context.Context, s *store.Store, path string, dst any) error {
	err := s.Get(ctx, path, dst)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidPath) {
		return ErrNotFound
	}
	return err
}

// SessionRepository handles persistence for sessions.
type SessionRepository struct {
	db *store.Store
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(db *store.Store) *SessionRepository {
	return &SessionRepository{db: db}
}

// Get returns a single session or ErrNotFound.
func (r *SessionRepository) Get(ctx context.Context, id string) (*model.Session, error) {
	var s model.Session
	if err := get(ctx, r.db, store.Join(sessionsRoot, id), &s); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	s.ID = id
	return &s, nil
}

// Put overwrites the session record.
func (r *SessionRepository) Put(ctx context.Context, s *model.Session) error {
	if err := r.db.Set(ctx, store.Join(sessionsRoot, s.ID), s); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// SetLocked changes only the lock flag of a session.
func (r *SessionRepository) SetLocked(ctx context.Context, id string, locked bool, at time.Time) error {
	err := r.db.Update(ctx, store.Join(sessionsRoot, id), map[string]any{
		"locked":    locked,
		"updatedAt": at,
	})
	if err != nil {
		return fmt.Errorf("set session lock: %w", err)
	}
	return nil
}

// SummaryRepository handles persistence for per-session summaries. Every
// write goes through a store transaction on the session's summary path, so
// folds for one session serialise while different sessions never contend.
type SummaryRepository struct {
	db *store.Store
}

// NewSummaryRepository constructs a SummaryRepository.
func NewSummaryRepository(db *store.Store) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// Get returns the summary for a session or ErrNotFound.
func (r *SummaryRepository) Get(ctx context.Context, sessionID string) (*model.Summary, error) {
	var s model.Summary
	if err := get(ctx, r.db, store.Join(summariesRoot, sessionID), &s); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get summary: %w", err)
	}
	return &s, nil
}

// Bootstrap writes an all-zero summary if the session has none yet. An
// existing summary is left untouched and created is false.
func (r *SummaryRepository) Bootstrap(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	created, err := r.db.Transaction(ctx, store.Join(summariesRoot, sessionID), func(current []byte) ([]byte, error) {
		if current != nil {
			return nil, store.ErrAbort
		}
		return json.Marshal(model.NewSummary(at))
	})
	if err != nil {
		return false, fmt.Errorf("bootstrap summary: %w", err)
	}
	return created, nil
}

// Apply atomically replaces the session's summary with mutate(current). A
// missing summary is handed to mutate as an all-zero one. mutate may be
// called more than once and must only depend on its argument.
func (r *SummaryRepository) Apply(ctx context.Context, sessionID string, mutate func(*model.Summary)) (*model.Summary, error) {
	var result model.Summary
	_, err := r.db.Transaction(ctx, store.Join(summariesRoot, sessionID), func(current []byte) ([]byte, error) {
		sum := model.NewSummary(time.Time{})
		if current != nil {
			if err := json.Unmarshal(current, sum); err != nil {
				return nil, fmt.Errorf("decode summary: %w", err)
			}
		}
		if sum.Counts == nil {
			sum.Counts = model.NewSummary(time.Time{}).Counts
		}
		mutate(sum)
		result = *sum
		return json.Marshal(sum)
	})
	if err != nil {
		return nil, fmt.Errorf("apply summary: %w", err)
	}
	return &result, nil
}

// AttendanceRepository handles persistence for attendance events.
type AttendanceRepository struct {
	db *store.Store
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *store.Store) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Create inserts an event under a generated key and returns the key.
func (r *AttendanceRepository) Create(ctx context.Context, ev *model.AttendanceEvent) (string, error) {
	key, err := r.db.Push(ctx, attendanceRoot, ev)
	if err != nil {
		return "", fmt.Errorf("insert attendance event: %w", err)
	}
	return key, nil
}

// Get returns a single event or ErrNotFound.
func (r *AttendanceRepository) Get(ctx context.Context, key string) (*model.AttendanceEvent, error) {
	var ev model.AttendanceEvent
	if err := get(ctx, r.db, store.Join(attendanceRoot, key), &ev); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get attendance event: %w", err)
	}
	return &ev, nil
}

// Stamp records the authoritative server time on an admitted event.
func (r *AttendanceRepository) Stamp(ctx context.Context, key string, at time.Time) error {
	err := r.db.Update(ctx, store.Join(attendanceRoot, key), map[string]any{"serverTimestamp": at})
	if err != nil {
		return fmt.Errorf("stamp attendance event: %w", err)
	}
	return nil
}

// Delete removes a discarded event.
func (r *AttendanceRepository) Delete(ctx context.Context, key string) error {
	if err := r.db.Delete(ctx, store.Join(attendanceRoot, key)); err != nil {
		return fmt.Errorf("delete attendance event: %w", err)
	}
	return nil
}

// OperationRepository handles persistence for administrator operations.
type OperationRepository struct {
	db *store.Store
}

// NewOperationRepository constructs an OperationRepository.
func NewOperationRepository(db *store.Store) *OperationRepository {
	return &OperationRepository{db: db}
}

// Create inserts an operation under a generated key and returns the key.
func (r *OperationRepository) Create(ctx context.Context, op *model.AdminOperation) (string, error) {
	key, err := r.db.Push(ctx, adminOpsRoot, op)
	if err != nil {
		return "", fmt.Errorf("insert admin operation: %w", err)
	}
	return key, nil
}

// Get returns a single operation or ErrNotFound.
func (r *OperationRepository) Get(ctx context.Context, key string) (*model.AdminOperation, error) {
	var op model.AdminOperation
	if err := get(ctx, r.db, store.Join(adminOpsRoot, key), &op); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get admin operation: %w", err)
	}
	return &op, nil
}

// Resolve writes the terminal status of an operation.
func (r *OperationRepository) Resolve(ctx context.Context, key string, res model.Resolution) error {
	fields := map[string]any{
		"status":     res.Status,
		"reason":     res.Reason,
		"reviewedAt": res.ReviewedAt,
	}
	if res.EventID != "" {
		fields["eventId"] = res.EventID
	}
	err := r.db.Update(ctx, store.Join(adminOpsRoot, key), fields)
	if err != nil {
		return fmt.Errorf("resolve admin operation: %w", err)
	}
	return nil
}

// UserRepository is the user directory the audit pipeline consults.
type UserRepository struct {
	db *store.Store
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *store.Store) *UserRepository {
	return &UserRepository{db: db}
}

// LookupUser returns the directory entry for uid or ErrNotFound.
func (r *UserRepository) LookupUser(ctx context.Context, uid string) (*model.User, error) {
	if uid == "" {
		return nil, ErrNotFound
	}
	var u model.User
	if err := get(ctx, r.db, store.Join(usersRoot, uid), &u); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// Put writes the directory entry for uid.
func (r *UserRepository) Put(ctx context.Context, uid string, u *model.User) error {
	if err := r.db.Set(ctx, store.Join(usersRoot, uid), u); err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}
