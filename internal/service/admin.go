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
	"github.com/google/uuid"
)

// AdminService handles the privileged session operations.
type AdminService struct {
	sessions  *repository.SessionRepository
	summaries *repository.SummaryRepository
	now       Clock
}

// NewAdminService constructs an AdminService with its dependencies.
func NewAdminService(
	sessions *repository.SessionRepository,
	summaries *repository.SummaryRepository,
	now Clock,
) *AdminService {
	return &AdminService{sessions: sessions, summaries: summaries, now: now}
}

func requireAdmin(ctx context.Context) error {
	if !identity.CallerFrom(ctx).IsAdmin {
		return ErrPermissionDenied
	}
	return nil
}

func validID(id string) bool {
	return id != "" && !strings.Contains(id, "/")
}

// CreateOrUpdateSession validates the request, overwrites the session record
// and makes sure the session has a summary. It returns the effective session id.
//
// Every call resets the lock flag to false, including updates of an existing
// session.
func (s *AdminService) CreateOrUpdateSession(ctx context.Context, req model.SessionRequest) (string, error) {
	if err := requireAdmin(ctx); err != nil {
		return "", err
	}

	req.SubjectCode = strings.TrimSpace(req.SubjectCode)
	req.SubjectName = strings.TrimSpace(req.SubjectName)
	req.HallID = strings.TrimSpace(req.HallID)
	req.SessionID = strings.TrimSpace(req.SessionID)

	switch {
	case req.SubjectCode == "":
		return "", invalidArgument("subjectCode is required")
	case req.HallID == "":
		return "", invalidArgument("hallId is required")
	case req.StartAt == nil || req.StartAt.IsZero():
		return "", invalidArgument("startAt is required")
	case req.EndAt == nil || req.EndAt.IsZero():
		return "", invalidArgument("endAt is required")
	case !req.EndAt.After(*req.StartAt):
		return "", invalidArgument("endAt must be after startAt")
	}

	id := req.SessionID
	if id == "" {
		id = uuid.NewString()
	} else if !validID(id) {
		return "", invalidArgument("sessionId %q is not a valid key", id)
	}
	name := req.SubjectName
	if name == "" {
		name = req.SubjectCode
	}

	now := s.now()
	session := &model.Session{
		ID:          id,
		SubjectCode: req.SubjectCode,
		SubjectName: name,
		HallID:      req.HallID,
		StartAt:     req.StartAt.UTC(),
		EndAt:       req.EndAt.UTC(),
		Locked:      false,
		UpdatedAt:   now,
	}
	if err := s.sessions.Put(ctx, session); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	// Not atomic with the upsert above: if this fails the first admitted
	// event bootstraps the summary instead.
	created, err := s.summaries.Bootstrap(ctx, id, now)
	if err != nil {
		return "", fmt.Errorf("bootstrap summary: %w", err)
	}
	if created {
		log.Printf("session %s created (subject=%s hall=%s)", id, session.SubjectCode, session.HallID)
	}
	return id, nil
}

// LockSession sets the session's lock flag. Locked sessions admit no events.
func (s *AdminService) LockSession(ctx context.Context, sessionID string, locked bool) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	sessionID = strings.TrimSpace(sessionID)
	if !validID(sessionID) {
		return invalidArgument("sessionId is required")
	}
	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("lock session: %w", err)
	}
	if err := s.sessions.SetLocked(ctx, sessionID, locked, s.now()); err != nil {
		return err
	}
	log.Printf("session %s locked=%t", sessionID, locked)
	return nil
}

// GetSession returns a single session by id.
func (s *AdminService) GetSession(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, invalidArgument("session id is required")
	}
	return s.sessions.Get(ctx, id)
}

// GetSummary returns the live counters of a session.
func (s *AdminService) GetSummary(ctx context.Context, id string) (*model.Summary, error) {
	if id == "" {
		return nil, invalidArgument("session id is required")
	}
	return s.summaries.Get(ctx, id)
}
