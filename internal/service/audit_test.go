package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Shivanand-hulikatti/hall-attendance/internal/model"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/repository"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/service"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/store"
)

func (f *fixture) putUser(t *testing.T, uid, email string, admin bool) {
	t.Helper()
	if err := f.users.Put(context.Background(), uid, &model.User{Email: email, IsAdmin: admin}); err != nil {
		t.Fatalf("Put user error = %v", err)
	}
}

func (f *fixture) submitOp(t *testing.T, op model.AdminOperation) (string, *model.AdminOperation) {
	t.Helper()
	key, status, err := f.svc.Audit.SubmitAdminOperation(context.Background(), op)
	if err != nil {
		t.Fatalf("SubmitAdminOperation() error = %v", err)
	}
	stored, err := f.svc.Audit.GetOperation(context.Background(), key)
	if err != nil {
		t.Fatalf("GetOperation() error = %v", err)
	}
	if stored.Status != status {
		t.Errorf("stored status %q differs from returned %q", stored.Status, status)
	}
	if stored.ReviewedAt == nil || !stored.ReviewedAt.Equal(f.clock.Now()) {
		t.Errorf("ReviewedAt = %v, want %v", stored.ReviewedAt, f.clock.Now())
	}
	return key, stored
}

func amend(sessionID string, status model.Status) model.AdminOperation {
	return model.AdminOperation{
		Type:        model.OperationAmendAttendance,
		RequestedBy: "Dr. Registrar",
		RequesterID: "admin-1",
		SessionID:   sessionID,
		Payload: model.AttendanceEvent{
			Status:    status,
			HallID:    "H1",
			StudentID: "S7",
		},
	}
}

func TestAudit_AppliesAmendmentThroughAdmission(t *testing.T) {
	f := newFixture(t)
	f.putUser(t, "admin-1", "admin@example.com", true)
	id := f.createSession(t, ms(1000), ms(5000))
	f.clock.Set(ms(2500))

	op := amend(id, model.StatusEntry)
	op.Payload.SessionID = "some-other-session"
	_, stored := f.submitOp(t, op)

	if stored.Status != model.OperationApplied || stored.Reason != service.ReasonApplied {
		t.Fatalf("operation = %s/%q, want applied", stored.Status, stored.Reason)
	}
	if stored.EventID == "" {
		t.Fatal("applied operation has no event id")
	}

	ev, err := f.svc.Attendance.GetEvent(context.Background(), stored.EventID)
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	if ev.SessionID != id {
		t.Errorf("event session = %q, want the operation's session %q", ev.SessionID, id)
	}
	if ev.Provenance != model.ProvenanceAdminEdit || ev.EditedBy != "Dr. Registrar" {
		t.Errorf("provenance/editedBy = %q/%q", ev.Provenance, ev.EditedBy)
	}
	if ev.ClientTimestamp == nil || !ev.ClientTimestamp.Equal(ms(2500)) {
		t.Errorf("ts = %v, want server time %v", ev.ClientTimestamp, ms(2500))
	}
	if ev.ServerTimestamp == nil {
		t.Error("correction was not admitted")
	}
	assertCounts(t, f.summary(t, id), map[model.Status]int{model.StatusEntry: 1}, 1, 0)
}

func TestAudit_AppliedCorrectionStillObeysLock(t *testing.T) {
	f := newFixture(t)
	f.putUser(t, "admin-1", "admin@example.com", true)
	id := f.createSession(t, ms(1000), ms(5000))
	if err := f.svc.Admin.LockSession(adminCtx(), id, true); err != nil {
		t.Fatalf("LockSession() error = %v", err)
	}
	f.clock.Set(ms(2000))

	_, stored := f.submitOp(t, amend(id, model.StatusExit))
	if stored.Status != model.OperationApplied {
		t.Fatalf("status = %s, want applied", stored.Status)
	}
	if _, err := f.svc.Attendance.GetEvent(context.Background(), stored.EventID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("correction on locked session still stored (err = %v)", err)
	}
	assertCounts(t, f.summary(t, id), map[model.Status]int{}, 0, 0)
}

func TestAudit_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		user       *model.User
		op         func(sessionID string) model.AdminOperation
		wantReason string
	}{
		{
			name:       "unknown requester",
			op:         func(id string) model.AdminOperation { return amend(id, model.StatusEntry) },
			wantReason: service.ReasonNotAdmin,
		},
		{
			name:       "requester no longer admin",
			user:       &model.User{Email: "ex@example.com", IsAdmin: false},
			op:         func(id string) model.AdminOperation { return amend(id, model.StatusEntry) },
			wantReason: service.ReasonNotAdmin,
		},
		{
			name: "missing session id",
			user: &model.User{IsAdmin: true},
			op: func(string) model.AdminOperation {
				op := amend("", model.StatusEntry)
				op.Payload.SessionID = "s1"
				return op
			},
			wantReason: service.ReasonInvalidPayload,
		},
		{
			name:       "unknown status",
			user:       &model.User{IsAdmin: true},
			op:         func(id string) model.AdminOperation { return amend(id, "entry") },
			wantReason: service.ReasonInvalidPayload,
		},
		{
			name:       "missing status",
			user:       &model.User{IsAdmin: true},
			op:         func(id string) model.AdminOperation { return amend(id, "") },
			wantReason: service.ReasonInvalidPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.user != nil {
				if err := f.users.Put(context.Background(), "admin-1", tt.user); err != nil {
					t.Fatalf("Put user error = %v", err)
				}
			}
			id := f.createSession(t, ms(1000), ms(5000))
			f.clock.Set(ms(2000))

			_, stored := f.submitOp(t, tt.op(id))
			if stored.Status != model.OperationRejected || stored.Reason != tt.wantReason {
				t.Fatalf("operation = %s/%q, want rejected/%q", stored.Status, stored.Reason, tt.wantReason)
			}
			if stored.EventID != "" {
				t.Errorf("rejected operation produced event %q", stored.EventID)
			}
			assertCounts(t, f.summary(t, id), map[model.Status]int{}, 0, 0)
		})
	}
}

func TestAudit_UnknownTypeIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.putUser(t, "admin-1", "admin@example.com", true)
	id := f.createSession(t, ms(1000), ms(5000))

	op := amend(id, model.StatusEntry)
	op.Type = "deleteSession"
	_, stored := f.submitOp(t, op)
	if stored.Status != model.OperationIgnored || stored.Reason != service.ReasonUnknownType {
		t.Fatalf("operation = %s/%q, want ignored", stored.Status, stored.Reason)
	}
}

func TestAudit_EditorFallback(t *testing.T) {
	tests := []struct {
		name  string
		label string
		email string
		want  string
	}{
		{"label wins", "Registrar", "admin@example.com", "Registrar"},
		{"email fallback", "", "admin@example.com", "admin@example.com"},
		{"unknown", " ", "", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.putUser(t, "admin-1", tt.email, true)
			id := f.createSession(t, ms(1000), ms(5000))
			f.clock.Set(ms(2000))

			op := amend(id, model.StatusToiletOut)
			op.RequestedBy = tt.label
			_, stored := f.submitOp(t, op)

			ev, err := f.svc.Attendance.GetEvent(context.Background(), stored.EventID)
			if err != nil {
				t.Fatalf("GetEvent() error = %v", err)
			}
			if ev.EditedBy != tt.want {
				t.Errorf("editedBy = %q, want %q", ev.EditedBy, tt.want)
			}
		})
	}
}

type directoryFunc func(ctx context.Context, uid string) (*model.User, error)

func (fn directoryFunc) LookupUser(ctx context.Context, uid string) (*model.User, error) {
	return fn(ctx, uid)
}

func TestAudit_FailuresBecomeErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		dir        directoryFunc
		wantReason string
	}{
		{
			name:       "directory error",
			dir:        func(context.Context, string) (*model.User, error) { return nil, errors.New("directory offline") },
			wantReason: "lookup requester: directory offline",
		},
		{
			name:       "directory panic",
			dir:        func(context.Context, string) (*model.User, error) { panic("claims decoder exploded") },
			wantReason: "claims decoder exploded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := store.NewMemory()
			clock := &fakeClock{now: ms(2000)}
			svc := service.New(db, clock.Now, tt.dir)

			key, status, err := svc.Audit.SubmitAdminOperation(context.Background(), amend("s1", model.StatusEntry))
			if err != nil {
				t.Fatalf("SubmitAdminOperation() error = %v", err)
			}
			if status != model.OperationError {
				t.Errorf("status = %s, want error", status)
			}
			stored, err := svc.Audit.GetOperation(context.Background(), key)
			if err != nil {
				t.Fatalf("GetOperation() error = %v", err)
			}
			if stored.Status != model.OperationError || stored.Reason != tt.wantReason {
				t.Errorf("operation = %s/%q, want error/%q", stored.Status, stored.Reason, tt.wantReason)
			}
		})
	}
}

func TestAudit_TerminalOperationsAreNotRevisited(t *testing.T) {
	f := newFixture(t)
	f.putUser(t, "admin-1", "admin@example.com", true)
	id := f.createSession(t, ms(1000), ms(5000))
	f.clock.Set(ms(2000))

	key, stored := f.submitOp(t, amend(id, model.StatusEntry))

	// Simulate re-delivery of the same operation after it was resolved.
	f.clock.Set(ms(3000))
	status, err := f.svc.Audit.Process(context.Background(), key, *stored)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if status != model.OperationApplied {
		t.Errorf("status = %s, want applied", status)
	}

	again, err := f.svc.Audit.GetOperation(context.Background(), key)
	if err != nil {
		t.Fatalf("GetOperation() error = %v", err)
	}
	if !again.ReviewedAt.Equal(ms(2000)) || again.EventID != stored.EventID {
		t.Errorf("operation rewritten on re-delivery: %+v", again)
	}
	assertCounts(t, f.summary(t, id), map[model.Status]int{model.StatusEntry: 1}, 1, 0)
}

func TestAudit_SubmissionClearsClientStatus(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t, ms(1000), ms(5000))

	op := amend(id, model.StatusEntry)
	op.Status = model.OperationApplied
	op.Reason = "trust me"
	_, stored := f.submitOp(t, op)
	if stored.Status != model.OperationRejected || stored.Reason != service.ReasonNotAdmin {
		t.Errorf("operation = %s/%q, want rejected/%q", stored.Status, stored.Reason, service.ReasonNotAdmin)
	}
}
