package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/hall-attendance/internal/identity"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/model"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/repository"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/service"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/store"
)

// epoch anchors test times; ms(n) is n milliseconds after it.
var epoch = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func ms(n int64) time.Time {
	return epoch.Add(time.Duration(n) * time.Millisecond)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	db    *store.Store
	clock *fakeClock
	svc   *service.Services
	users *repository.UserRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := store.NewMemory(store.WithMaxRetries(10_000))
	clock := &fakeClock{now: epoch}
	return &fixture{
		db:    db,
		clock: clock,
		svc:   service.New(db, clock.Now, nil),
		users: repository.NewUserRepository(db),
	}
}

func adminCtx() context.Context {
	return identity.WithCaller(context.Background(), identity.Caller{UserID: "admin-1", Email: "admin@example.com", IsAdmin: true})
}

func userCtx() context.Context {
	return identity.WithCaller(context.Background(), identity.Caller{UserID: "user-1", Email: "user@example.com"})
}

func timePtr(t time.Time) *time.Time {
	return &t
}

// createSession creates a CS101 session in hall H1 spanning [start, end].
func (f *fixture) createSession(t *testing.T, start, end time.Time) string {
	t.Helper()
	id, err := f.svc.Admin.CreateOrUpdateSession(adminCtx(), model.SessionRequest{
		SubjectCode: "CS101",
		HallID:      "H1",
		StartAt:     timePtr(start),
		EndAt:       timePtr(end),
	})
	if err != nil {
		t.Fatalf("CreateOrUpdateSession() error = %v", err)
	}
	return id
}

func (f *fixture) summary(t *testing.T, sessionID string) *model.Summary {
	t.Helper()
	sum, err := f.svc.Admin.GetSummary(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("GetSummary() error = %v", err)
	}
	return sum
}

func (f *fixture) submit(t *testing.T, ev model.AttendanceEvent) (string, service.Outcome) {
	t.Helper()
	key, outcome, err := f.svc.Attendance.SubmitAttendanceEvent(context.Background(), ev)
	if err != nil {
		t.Fatalf("SubmitAttendanceEvent() error = %v", err)
	}
	return key, outcome
}

func entry(sessionID, student string) model.AttendanceEvent {
	return model.AttendanceEvent{
		SessionID: sessionID,
		Status:    model.StatusEntry,
		HallID:    "H1",
		StudentID: student,
	}
}

func assertCounts(t *testing.T, sum *model.Summary, want map[model.Status]int, uniquePresent, completed int) {
	t.Helper()
	for _, st := range model.Statuses {
		if sum.Counts[st] != want[st] {
			t.Errorf("counts[%s] = %d, want %d", st, sum.Counts[st], want[st])
		}
	}
	if len(sum.Counts) != len(model.Statuses) {
		t.Errorf("counts has %d keys, want %d", len(sum.Counts), len(model.Statuses))
	}
	if sum.UniquePresent != uniquePresent {
		t.Errorf("uniquePresent = %d, want %d", sum.UniquePresent, uniquePresent)
	}
	if sum.Completed != completed {
		t.Errorf("completed = %d, want %d", sum.Completed, completed)
	}
}
