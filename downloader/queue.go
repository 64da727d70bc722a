package downloader

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carlbunn/musicbox/logger"
	"github.com/carlbunn/musicbox/types"
	"github.com/carlbunn/musicbox/websocket"
)

// queueCapacity bounds pending jobs; Enqueue fails when full.
const queueCapacity = 100

var ErrInvalidURL = fmt.Errorf("invalid spotify url")
var ErrQueueFull = fmt.Errorf("download queue full")

// Queue runs spotdl downloads one at a time into the music root. Job
// status changes are broadcast on the downloads topic, and a completed
// job triggers a catalog rescan through the onComplete hook.
type Queue struct {
	spotdlPath string
	musicRoot  string
	hub        websocket.Hub
	onComplete func()

	mu    sync.RWMutex
	jobs  map[string]*types.DownloadJob
	queue chan string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewQueue(spotdlPath, musicRoot string, hub websocket.Hub, onComplete func()) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		spotdlPath: spotdlPath,
		musicRoot:  musicRoot,
		hub:        hub,
		onComplete: onComplete,
		jobs:       make(map[string]*types.DownloadJob),
		queue:      make(chan string, queueCapacity),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the single download worker. Downloads are serialized
// so spotdl never competes with itself for bandwidth on the appliance.
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.worker()
}

// ValidateURL accepts only https Spotify track, album and playlist
// links.
func ValidateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidURL, raw)
	}
	if u.Scheme != "https" || u.Host != "open.spotify.com" {
		return fmt.Errorf("%w: %s", ErrInvalidURL, raw)
	}
	return nil
}

// Enqueue validates the url and adds a queued job.
func (q *Queue) Enqueue(rawURL string) (types.DownloadJob, error) {
	if err := ValidateURL(rawURL); err != nil {
		return types.DownloadJob{}, err
	}

	job := &types.DownloadJob{
		ID:        uuid.New().String(),
		URL:       strings.TrimSpace(rawURL),
		Status:    types.JobStatusQueued,
		CreatedAt: time.Now(),
	}

	q.mu.Lock()
	select {
	case q.queue <- job.ID:
		q.jobs[job.ID] = job
	default:
		q.mu.Unlock()
		return types.DownloadJob{}, ErrQueueFull
	}
	snapshot := *job
	q.mu.Unlock()

	logger.Info("download queued", zap.String("job", job.ID), zap.String("url", job.URL))
	q.broadcast(snapshot)
	return snapshot, nil
}

// Job returns a snapshot of one job.
func (q *Queue) Job(id string) (types.DownloadJob, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.jobs[id]
	if !ok {
		return types.DownloadJob{}, false
	}
	return *job, true
}

// Jobs returns snapshots of all known jobs, newest first.
func (q *Queue) Jobs() []types.DownloadJob {
	q.mu.RLock()
	defer q.mu.RUnlock()
	jobs := make([]types.DownloadJob, 0, len(q.jobs))
	for _, job := range q.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// Cancel marks a queued job cancelled. Jobs already processing are not
// interrupted.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status != types.JobStatusQueued {
		q.mu.Unlock()
		return false
	}
	now := time.Now()
	job.Status = types.JobStatusCancelled
	job.CompletedAt = &now
	snapshot := *job
	q.mu.Unlock()

	q.broadcast(snapshot)
	return true
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case id := <-q.queue:
			q.process(id)
		}
	}
}

func (q *Queue) process(id string) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status != types.JobStatusQueued {
		q.mu.Unlock()
		return
	}
	now := time.Now()
	job.Status = types.JobStatusProcessing
	job.StartedAt = &now
	url := job.URL
	snapshot := *job
	q.mu.Unlock()

	q.broadcast(snapshot)
	logger.Info("download started", zap.String("job", id), zap.String("url", url))

	err := q.runSpotdl(url)

	q.mu.Lock()
	done := time.Now()
	job.CompletedAt = &done
	if err != nil {
		job.Status = types.JobStatusFailed
		job.Error = err.Error()
	} else {
		job.Status = types.JobStatusCompleted
	}
	snapshot = *job
	q.mu.Unlock()

	q.broadcast(snapshot)
	if err != nil {
		logger.Error("download failed", zap.String("job", id), zap.Error(err))
		return
	}
	logger.Info("download completed", zap.String("job", id))
	if q.onComplete != nil {
		q.onComplete()
	}
}

func (q *Queue) runSpotdl(url string) error {
	cmd := exec.CommandContext(q.ctx, q.spotdlPath, url, "--output", q.musicRoot)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("spotdl: %v: %s", err, tail(string(out), 500))
	}
	return nil
}

// tail keeps the last n bytes of subprocess output for error messages.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func (q *Queue) broadcast(job types.DownloadJob) {
	if q.hub == nil {
		return
	}
	q.hub.Broadcast(types.Event{
		Topic: types.TopicDownloads,
		Type:  string(job.Status),
		Job:   &job,
	})
}

// Stop cancels the running download, if any, and waits for the worker.
func (q *Queue) Stop() {
	q.cancel()
	joined := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(joined)
	}()
	select {
	case <-joined:
	case <-time.After(5 * time.Second):
		logger.Warn("download worker did not stop in time")
	}
}
