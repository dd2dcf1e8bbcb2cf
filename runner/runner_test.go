package runner_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stupid-simple/medialib/config"
	"github.com/stupid-simple/medialib/lock"
	"github.com/stupid-simple/medialib/runner"
)

type fakeJob struct {
	executed int
	status   runner.Status
	err      error
	panics   bool
	onRun    func(rc *runner.RunContext)
}

func (j *fakeJob) Kind() string               { return "harvest" }
func (j *fakeJob) DiscriminatorName() string  { return "producer" }
func (j *fakeJob) DiscriminatorValue() string { return "acme" }

func (j *fakeJob) Execute(ctx context.Context, rc *runner.RunContext) (runner.Status, error) {
	j.executed++
	if j.onRun != nil {
		j.onRun(rc)
	}
	if j.panics {
		panic("boom")
	}
	return j.status, j.err
}

func (j *fakeJob) SummaryLine(status runner.Status, err error) string {
	if err != nil {
		return "ERROR"
	}
	return "SUCCESS"
}

type fakeNotifier struct {
	reports []runner.Report
}

func (n *fakeNotifier) Notify(_ context.Context, r runner.Report) error {
	n.reports = append(n.reports, r)
	return nil
}

type fakeRecorder struct {
	reports []runner.Report
}

func (r *fakeRecorder) Record(report runner.Report) error {
	r.reports = append(r.reports, report)
	return nil
}

func setup(t *testing.T) (*config.Config, *runner.Runner, *fakeNotifier, *fakeRecorder) {
	t.Helper()
	cfg := &config.Config{Producer: "acme"}
	cfg.Lock.Directory = t.TempDir()
	n := &fakeNotifier{}
	rec := &fakeRecorder{}
	r := runner.New(cfg, nil, zerolog.New(zerolog.NewTestWriter(t)),
		runner.WithNotifier(n), runner.WithRecorder(rec))
	return cfg, r, n, rec
}

func TestRun_Success(t *testing.T) {
	cfg, r, n, rec := setup(t)
	job := &fakeJob{}
	job.status.Set("indexed", 3)
	job.onRun = func(rc *runner.RunContext) {
		assert.NotNil(t, rc.Lock)
		assert.FileExists(t, lock.MarkerPath(cfg.Lock.Directory, "harvest", "acme"))
		assert.NoError(t, rc.Lock.Check(context.Background()))
	}

	require.NoError(t, r.Run(context.Background(), job))
	assert.Equal(t, 1, job.executed)
	require.Len(t, n.reports, 1)
	assert.True(t, n.reports[0].Succeeded)
	assert.Equal(t, "SUCCESS", n.reports[0].Subject)
	assert.Equal(t, 3, n.reports[0].Status.Count("indexed"))
	assert.NotEmpty(t, n.reports[0].RunID)
	assert.Len(t, rec.reports, 1)

	assert.NoFileExists(t, lock.MarkerPath(cfg.Lock.Directory, "harvest", "acme"))
}

func TestRun_Failure(t *testing.T) {
	_, r, n, _ := setup(t)
	failure := errors.New("remote store down")
	job := &fakeJob{err: failure}

	err := r.Run(context.Background(), job)
	require.ErrorIs(t, err, failure)
	require.Len(t, n.reports, 1)
	assert.False(t, n.reports[0].Succeeded)
	assert.Equal(t, "ERROR", n.reports[0].Subject)
}

func TestRun_Panic(t *testing.T) {
	cfg, r, n, _ := setup(t)
	job := &fakeJob{panics: true}

	require.Error(t, r.Run(context.Background(), job))
	require.Len(t, n.reports, 1)
	assert.False(t, n.reports[0].Succeeded)
	assert.NoFileExists(t, lock.MarkerPath(cfg.Lock.Directory, "harvest", "acme"))
}

func TestRun_NoNotification(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"jobless", runner.ErrJobless},
		{"interrupted", lock.ErrInterrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, r, n, rec := setup(t)
			job := &fakeJob{err: tt.err}
			require.NoError(t, r.Run(context.Background(), job))
			assert.Equal(t, 1, job.executed)
			assert.Empty(t, n.reports)
			assert.Empty(t, rec.reports)
		})
	}
}

func TestRun_Cancelled(t *testing.T) {
	cfg, r, n, rec := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	job := &fakeJob{err: fmt.Errorf("indexing: %w", context.Canceled)}
	job.onRun = func(*runner.RunContext) { cancel() }

	require.NoError(t, r.Run(ctx, job))
	assert.Empty(t, n.reports)
	assert.Empty(t, rec.reports)
	assert.NoFileExists(t, lock.MarkerPath(cfg.Lock.Directory, "harvest", "acme"))

	// a cancellation that did not come from the caller is a failure
	job = &fakeJob{err: context.Canceled}
	require.ErrorIs(t, r.Run(context.Background(), job), context.Canceled)
	require.Len(t, n.reports, 1)
	assert.False(t, n.reports[0].Succeeded)
}

func TestRun_Busy(t *testing.T) {
	cfg, r, n, _ := setup(t)

	foreign, err := json.Marshal(lock.Identity{Host: "elsewhere", PID: 1, RunID: "other"})
	require.NoError(t, err)
	marker := lock.MarkerPath(cfg.Lock.Directory, "harvest", "acme")
	require.NoError(t, os.WriteFile(marker, foreign, 0644))

	job := &fakeJob{}
	err = r.Run(context.Background(), job)
	require.ErrorIs(t, err, lock.ErrBusy)
	assert.Zero(t, job.executed)
	assert.Empty(t, n.reports)
	assert.FileExists(t, marker)
}

func TestRun_LogFile(t *testing.T) {
	cfg, _, _, _ := setup(t)
	cfg.LogDirectory = filepath.Join(t.TempDir(), "logs")
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)
	r := runner.New(cfg, nil, zerolog.New(zerolog.NewTestWriter(t)),
		runner.WithNotifier(&fakeNotifier{}),
		runner.WithClock(func() time.Time { return start }))

	require.NoError(t, r.Run(context.Background(), &fakeJob{}))

	raw, err := os.ReadFile(filepath.Join(cfg.LogDirectory, "20240102030405.harvest.acme.log"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "starting harvest")
}

func TestStatus(t *testing.T) {
	s := runner.Status{}
	s.Set("a", 1)
	s.Set("b", 2)
	s.Set("a", 3)
	assert.Equal(t, []runner.Count{{Name: "a", Value: 3}, {Name: "b", Value: 2}}, s.Counts)
	assert.Equal(t, 0, s.Count("missing"))
}
