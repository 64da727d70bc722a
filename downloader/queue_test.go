package downloader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlbunn/musicbox/types"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"track url", "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", false},
		{"album url", "https://open.spotify.com/album/abc123", false},
		{"playlist with whitespace", "  https://open.spotify.com/playlist/xyz  ", false},
		{"http scheme", "http://open.spotify.com/track/abc", true},
		{"wrong host", "https://example.com/track/abc", true},
		{"garbage", "not a url", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidURL)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnqueueRejectsInvalidURL(t *testing.T) {
	q := NewQueue("spotdl", t.TempDir(), nil, nil)
	_, err := q.Enqueue("https://example.com/nope")
	assert.ErrorIs(t, err, ErrInvalidURL)
	assert.Empty(t, q.Jobs())
}

func TestEnqueueCreatesQueuedJob(t *testing.T) {
	q := NewQueue("spotdl", t.TempDir(), nil, nil)

	job, err := q.Enqueue("https://open.spotify.com/track/abc")
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, types.JobStatusQueued, job.Status)

	got, ok := q.Job(job.ID)
	require.True(t, ok)
	assert.Equal(t, job.ID, got.ID)
}

func TestCancelQueuedJob(t *testing.T) {
	// Worker never started, so the job stays queued.
	q := NewQueue("spotdl", t.TempDir(), nil, nil)
	job, err := q.Enqueue("https://open.spotify.com/track/abc")
	require.NoError(t, err)

	assert.True(t, q.Cancel(job.ID))
	got, ok := q.Job(job.ID)
	require.True(t, ok)
	assert.Equal(t, types.JobStatusCancelled, got.Status)
	require.NotNil(t, got.CompletedAt)

	assert.False(t, q.Cancel(job.ID), "cancelling twice")
	assert.False(t, q.Cancel("missing"))
}

func TestFailedDownloadMarksJob(t *testing.T) {
	var rescanned bool
	q := NewQueue("/nonexistent/spotdl", t.TempDir(), nil, func() { rescanned = true })
	q.Start()
	defer q.Stop()

	job, err := q.Enqueue("https://open.spotify.com/track/abc")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, _ := q.Job(job.ID)
		return got.Status == types.JobStatusFailed
	}, 5*time.Second, 20*time.Millisecond)

	got, _ := q.Job(job.ID)
	assert.Contains(t, got.Error, "spotdl")
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)
	assert.False(t, rescanned, "failed job must not trigger a rescan")
}

func TestCompletedDownloadTriggersRescan(t *testing.T) {
	rescanned := make(chan struct{}, 1)
	// /bin/true stands in for a spotdl run that succeeds.
	q := NewQueue("/bin/true", t.TempDir(), nil, func() { rescanned <- struct{}{} })
	q.Start()
	defer q.Stop()

	job, err := q.Enqueue("https://open.spotify.com/track/abc")
	require.NoError(t, err)

	select {
	case <-rescanned:
	case <-time.After(5 * time.Second):
		t.Fatal("rescan hook not called")
	}

	got, _ := q.Job(job.ID)
	assert.Equal(t, types.JobStatusCompleted, got.Status)
}

func TestJobsNewestFirst(t *testing.T) {
	q := NewQueue("spotdl", t.TempDir(), nil, nil)
	first, err := q.Enqueue("https://open.spotify.com/track/first")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := q.Enqueue("https://open.spotify.com/track/second")
	require.NoError(t, err)

	jobs := q.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID)
	assert.Equal(t, first.ID, jobs[1].ID)
}
