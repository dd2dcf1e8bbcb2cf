package scheduler_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/stupid-simple/medialib/scheduler"
)

type MockJob struct {
	mock.Mock
}

func (m *MockJob) Run() {
	m.Called()
}

func newScheduler(t *testing.T) *scheduler.Scheduler {
	return scheduler.NewScheduler(scheduler.SchedulerParams{
		Logger: zerolog.New(zerolog.NewTestWriter(t)),
	})
}

func TestScheduler_AddJob(t *testing.T) {
	s := newScheduler(t)
	mockJob := new(MockJob)

	err := s.AddJob("harvest", "* * * * *", mockJob)
	assert.NoError(t, err, "Should add job without error")

	err = s.AddJob("offload", "invalid-schedule", mockJob)
	assert.Error(t, err, "Should return error with invalid schedule")

	err = s.AddJob("cleanup", "", mockJob)
	assert.NoError(t, err, "Empty schedule disables the job")

	assert.Equal(t, []string{"harvest"}, s.Jobs())
}

func TestScheduler_StartStop(t *testing.T) {
	s := newScheduler(t)
	mockJob := new(MockJob)
	mockJob.On("Run").Return()

	err := s.AddJob("harvest", "* * * * *", mockJob)
	assert.NoError(t, err)

	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()
}

func TestScheduler_RemoveJobs(t *testing.T) {
	s := newScheduler(t)

	assert.NoError(t, s.AddJob("harvest", "* * * * *", new(MockJob)))
	assert.NoError(t, s.AddJob("masters", "*/5 * * * *", new(MockJob)))
	assert.Len(t, s.Jobs(), 2)

	s.RemoveJobs()
	assert.Empty(t, s.Jobs())

	assert.NoError(t, s.AddJob("harvest", "* * * * *", new(MockJob)), "Should be able to add job again after removal")
}
