package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/stellarc/stellarc/internal/rbac"
	"github.com/stellarc/stellarc/jobs"
)

type stubRoleStore struct {
	assigned map[string]bool
	err      error
}

func key(id uuid.UUID, role string) string { return id.String() + ":" + role }

func (s *stubRoleStore) Assign(ctx context.Context, userID uuid.UUID, role string) error {
	if s.err != nil {
		return s.err
	}
	if s.assigned[key(userID, role)] {
		return rbac.ErrAlreadyAssigned
	}
	s.assigned[key(userID, role)] = true
	return nil
}

func (s *stubRoleStore) Revoke(ctx context.Context, userID uuid.UUID, role string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	removed := s.assigned[key(userID, role)]
	delete(s.assigned, key(userID, role))
	return removed, nil
}

func runRoot(t *testing.T, deps Deps, args ...string) (string, string, error) {
	t.Helper()
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	root := NewRootCommand(deps)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func roleDeps(store *stubRoleStore) Deps {
	return Deps{
		Roles: func(ctx context.Context) (RoleStore, func(), error) {
			return store, func() {}, nil
		},
	}
}

func TestRoleGrantIsIdempotent(t *testing.T) {
	store := &stubRoleStore{assigned: map[string]bool{}}
	id := uuid.New()

	stdout, stderr, err := runRoot(t, roleDeps(store), "role", "grant", id.String(), "Admin", "--json")
	require.NoError(t, err)
	require.Empty(t, stderr)
	var summary RoleSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	require.Equal(t, RoleSummary{UserID: id.String(), Role: "admin", Action: "grant", Changed: true}, summary)

	stdout, _, err = runRoot(t, roleDeps(store), "role", "grant", id.String(), "admin")
	require.NoError(t, err)
	require.Contains(t, stdout, "(no change)")
	require.True(t, store.assigned[key(id, "admin")])
}

func TestRoleRevoke(t *testing.T) {
	id := uuid.New()
	store := &stubRoleStore{assigned: map[string]bool{key(id, "moderator"): true}}

	stdout, _, err := runRoot(t, roleDeps(store), "role", "revoke", id.String(), "moderator")
	require.NoError(t, err)
	require.Equal(t, "revoke: moderator "+id.String()+"\n", stdout)
	require.Empty(t, store.assigned)

	stdout, _, err = runRoot(t, roleDeps(store), "role", "revoke", id.String(), "moderator")
	require.NoError(t, err)
	require.Contains(t, stdout, "(no change)")
}

func TestRoleCommandRejectsBadInput(t *testing.T) {
	store := &stubRoleStore{assigned: map[string]bool{}}

	_, stderr, err := runRoot(t, roleDeps(store), "role", "grant", "not-a-uuid", "admin")
	require.Equal(t, ExitError{Code: 1}, err)
	require.Contains(t, stderr, "invalid user id")

	_, stderr, err = runRoot(t, roleDeps(store), "role", "grant", uuid.NewString(), "owner")
	require.Equal(t, ExitError{Code: 1}, err)
	require.Contains(t, stderr, "unknown role")

	store.err = errors.New("db down")
	_, stderr, err = runRoot(t, roleDeps(store), "role", "grant", uuid.NewString(), "user")
	require.Equal(t, ExitError{Code: 1}, err)
	require.Contains(t, stderr, "db down")

	_, _, err = runRoot(t, roleDeps(store), "role", "grant", uuid.NewString())
	require.Error(t, err)
}

type stubEnqueuer struct {
	task *asynq.Task
	err  error
}

func (s *stubEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.task = task
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (s *stubEnqueuer) Close() error { return nil }

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) { return s.info, s.err }
func (s stubInspector) Close() error                                         { return nil }

func TestJobsScanEnqueuesTask(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	deps := Deps{Jobs: func() *JobsCLI { return &JobsCLI{client: enqueuer} }}

	stdout, _, err := runRoot(t, deps, "jobs", "scan", "--older-than", "45m")
	require.NoError(t, err)
	require.Equal(t, "enqueued automation:stale_scan id=task-1 queue=default\n", stdout)

	var payload jobs.StaleLogScanPayload
	require.NoError(t, json.Unmarshal(enqueuer.task.Payload(), &payload))
	require.Equal(t, 45*time.Minute, payload.OlderThan)

	enqueuer.err = errors.New("redis down")
	_, stderr, err := runRoot(t, deps, "jobs", "scan")
	require.Equal(t, ExitError{Code: 1}, err)
	require.Contains(t, stderr, "redis down")
}

func TestJobsStats(t *testing.T) {
	deps := Deps{Jobs: func() *JobsCLI {
		return &JobsCLI{inspector: stubInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 2, Scheduled: 5}}}
	}}
	stdout, _, err := runRoot(t, deps, "jobs", "stats")
	require.NoError(t, err)
	require.JSONEq(t, `{"queue":"default","pending":2,"active":0,"scheduled":5,"retry":0,"archived":0}`, stdout)

	deps = Deps{Jobs: func() *JobsCLI {
		return &JobsCLI{inspector: stubInspector{err: asynq.ErrQueueNotFound}}
	}}
	stdout, _, err = runRoot(t, deps, "jobs", "stats")
	require.NoError(t, err)
	require.JSONEq(t, `{"queue":"default","pending":0,"active":0,"scheduled":0,"retry":0,"archived":0}`, stdout)
}

func TestRootRunsServe(t *testing.T) {
	called := false
	deps := Deps{Serve: func(ctx context.Context) error {
		called = true
		return nil
	}}
	_, _, err := runRoot(t, deps)
	require.NoError(t, err)
	require.True(t, called)
}
