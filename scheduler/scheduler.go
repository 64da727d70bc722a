package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/carlbunn/musicbox/config"
	"github.com/carlbunn/musicbox/logger"
)

// Scheduler polls the tag reader at an adaptive rate. After a tap it
// polls at the fast interval so follow-up taps feel immediate; once no
// activity has been seen for the activity window it falls back to the
// slow interval to save cycles on small boards.
//
// Sensed tags accumulate in an unbounded pending queue drained into the
// events channel, so a consumer stalled inside a playback operation
// never costs a tap.
type Scheduler struct {
	reader         TagReader
	slow           time.Duration
	fast           time.Duration
	activityWindow time.Duration

	events chan string
	done   chan struct{}
	wake   chan struct{}
	wg     sync.WaitGroup

	mu           sync.Mutex
	lastActivity time.Time
	pending      []string
}

func New(reader TagReader, cfg *config.Config) *Scheduler {
	return &Scheduler{
		reader:         reader,
		slow:           cfg.PollSlowInterval,
		fast:           cfg.PollFastInterval,
		activityWindow: cfg.ActivityTimeout,
		events:         make(chan string, 16),
		done:           make(chan struct{}),
		wake:           make(chan struct{}, 1),
	}
}

// Events returns the channel tag ids and control events arrive on.
// Closed when the scheduler stops.
func (s *Scheduler) Events() <-chan string {
	return s.events
}

// Start launches the polling and drain loops.
func (s *Scheduler) Start() {
	s.wg.Add(2)
	go s.run()
	go s.drain()
	logger.Info("tag polling started",
		zap.Duration("slow", s.slow), zap.Duration("fast", s.fast),
		zap.Duration("activityWindow", s.activityWindow))
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	timer := time.NewTimer(s.slow)
	defer timer.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-timer.C:
		}

		tag, err := s.reader.ReadTag()
		now := time.Now()
		if err != nil {
			logger.Warn("tag read failed", zap.Error(err))
		} else if tag != "" {
			s.mu.Lock()
			s.lastActivity = now
			s.pending = append(s.pending, tag)
			s.mu.Unlock()
			select {
			case s.wake <- struct{}{}:
			default:
			}
		}

		timer.Reset(s.intervalAt(now))
	}
}

// drain feeds pending tags to the events channel in order, blocking on
// the consumer rather than dropping.
func (s *Scheduler) drain() {
	defer s.wg.Done()
	defer close(s.events)

	for {
		s.mu.Lock()
		var tag string
		ok := len(s.pending) > 0
		if ok {
			tag = s.pending[0]
			s.pending = s.pending[1:]
		}
		s.mu.Unlock()

		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		select {
		case s.events <- tag:
		case <-s.done:
			return
		}
	}
}

// intervalAt picks the polling interval for the next cycle: fast while
// inside the activity window, slow otherwise.
func (s *Scheduler) intervalAt(now time.Time) time.Duration {
	s.mu.Lock()
	last := s.lastActivity
	s.mu.Unlock()
	if !last.IsZero() && now.Sub(last) < s.activityWindow {
		return s.fast
	}
	return s.slow
}

// Stop halts polling and waits for the loop to exit, bounded so a
// stuck reader cannot hang shutdown.
func (s *Scheduler) Stop() {
	close(s.done)
	joined := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(joined)
	}()
	select {
	case <-joined:
	case <-time.After(2 * time.Second):
		logger.Warn("tag polling did not stop in time")
	}
}
