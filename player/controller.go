package player

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/carlbunn/musicbox/catalog"
	"github.com/carlbunn/musicbox/config"
	"github.com/carlbunn/musicbox/logger"
	"github.com/carlbunn/musicbox/types"
)

// Controller is the playback state machine. It owns at most one engine
// session at a time and serializes every operation behind a single
// mutex, so callers from the dispatch loop and the HTTP surface never
// interleave.
//
// Positions are checkpointed into the catalog on pause, stop, track
// switch and on the periodic tick. A track that was nearly finished
// checkpoints position zero so the next tap starts it from the top.
type Controller struct {
	engine  Engine
	store   *catalog.Store
	nearEnd time.Duration
	settle  time.Duration

	mu       sync.Mutex
	sess     Session
	path     string
	state    types.PlayerState
	volume   int
	onChange func(types.PlayerStatus)
}

func NewController(engine Engine, store *catalog.Store, cfg *config.Config) *Controller {
	return &Controller{
		engine:  engine,
		store:   store,
		nearEnd: cfg.NearEndThreshold,
		settle:  cfg.SettleDelay,
		state:   types.StateStopped,
		volume:  100,
	}
}

// SetOnChange registers a callback invoked with a status snapshot after
// every state transition. Must be set before the controller is shared.
func (c *Controller) SetOnChange(fn func(types.PlayerStatus)) {
	c.onChange = fn
}

// Play loads a track and starts it from its last stored position. Any
// current track is checkpointed and torn down first. Restarting the
// track that is already loaded reloads it.
func (c *Controller) Play(absPath string) error {
	if _, err := os.Stat(absPath); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, absPath)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardownLocked(true)

	sess, err := c.engine.Open(absPath)
	if err != nil {
		c.state = types.StateStopped
		return err
	}
	c.sess = sess
	c.path = absPath
	sess.SetVolume(float64(c.volume) / 100)

	if pos := c.store.LastPosition(absPath); pos > 0 {
		if dur := sess.DurationMs(); pos < dur {
			if err := sess.SeekMs(pos); err != nil {
				logger.Warn("could not restore position, starting from zero",
					zap.String("path", absPath), zap.Int64("positionMs", pos), zap.Error(err))
			} else {
				logger.Debug("restored position",
					zap.String("path", absPath), zap.Int64("positionMs", pos))
			}
		}
	}

	if err := sess.Start(); err != nil {
		c.teardownLocked(false)
		c.state = types.StateStopped
		return fmt.Errorf("%w: starting playback: %v", ErrPlayback, err)
	}
	c.state = types.StatePlaying
	logger.Info("playing", zap.String("file", filepath.Base(absPath)))
	c.notifyLocked()
	return nil
}

// Pause suspends playback and checkpoints the position. Pausing while
// not playing is a no-op.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || c.state != types.StatePlaying {
		return
	}
	c.sess.Pause()
	c.state = types.StatePaused
	c.checkpointLocked()
	c.notifyLocked()
}

// Resume continues a paused track. Resuming while not paused is a
// no-op.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || c.state != types.StatePaused {
		return
	}
	c.sess.Resume()
	c.state = types.StatePlaying
	c.notifyLocked()
}

// TogglePause flips between playing and paused. Returns false when
// nothing is loaded.
func (c *Controller) TogglePause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return false
	}
	switch c.state {
	case types.StatePlaying:
		c.sess.Pause()
		c.state = types.StatePaused
		c.checkpointLocked()
	case types.StatePaused:
		c.sess.Resume()
		c.state = types.StatePlaying
	default:
		return false
	}
	c.notifyLocked()
	return true
}

// Stop checkpoints and tears down the current session.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked(true)
	c.state = types.StateStopped
	c.notifyLocked()
}

// SeekTo moves to an absolute offset, clamped to the track bounds. If
// the live seek fails the session is rebuilt: decode again, settle,
// seek, and restore the paused state. A failed rebuild leaves the
// controller stopped.
func (c *Controller) SeekTo(targetMs int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seekLocked(targetMs)
}

func (c *Controller) seekLocked(targetMs int64) error {
	if c.sess == nil {
		return fmt.Errorf("%w: nothing loaded", ErrPlayback)
	}

	if targetMs < 0 {
		targetMs = 0
	}
	if dur := c.sess.DurationMs(); dur > 0 && targetMs > dur {
		targetMs = dur
	}

	if err := c.sess.SeekMs(targetMs); err == nil {
		c.checkpointLocked()
		c.notifyLocked()
		return nil
	}

	logger.Warn("seek failed, rebuilding session",
		zap.String("file", filepath.Base(c.path)), zap.Int64("targetMs", targetMs))
	if err := c.rebuildLocked(targetMs); err != nil {
		c.state = types.StateStopped
		c.notifyLocked()
		return err
	}
	c.checkpointLocked()
	c.notifyLocked()
	return nil
}

// rebuildLocked recovers from a broken session: tear down, decode the
// same file again, start, wait for the pipeline to settle, re-seek, and
// re-pause if the session was paused.
func (c *Controller) rebuildLocked(targetMs int64) error {
	wasPaused := c.state == types.StatePaused
	path := c.path

	c.sess.Close()
	c.sess = nil

	sess, err := c.engine.Open(path)
	if err != nil {
		return fmt.Errorf("%w: rebuild: %v", ErrPlayback, err)
	}
	sess.SetVolume(float64(c.volume) / 100)
	if err := sess.Start(); err != nil {
		sess.Close()
		return fmt.Errorf("%w: rebuild start: %v", ErrPlayback, err)
	}
	time.Sleep(c.settle)
	if err := sess.SeekMs(targetMs); err != nil {
		sess.Close()
		return fmt.Errorf("%w: rebuild seek: %v", ErrPlayback, err)
	}
	if wasPaused {
		// Let the pipeline settle at the target before freezing it.
		time.Sleep(c.settle)
		sess.Pause()
	}
	c.sess = sess
	logger.Info("session rebuilt", zap.String("file", filepath.Base(path)),
		zap.Int64("positionMs", targetMs), zap.Bool("paused", wasPaused))
	return nil
}

// Skip moves relative to the current position. Negative deltas skip
// backwards. The target is computed and applied under the same lock
// acquisition so a concurrent track switch cannot land the offset on
// the wrong track.
func (c *Controller) Skip(deltaMs int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return fmt.Errorf("%w: nothing loaded", ErrPlayback)
	}
	return c.seekLocked(c.sess.PositionMs() + deltaMs)
}

// SetVolume sets the output level as a percentage, clamped to 0..100.
// The level survives track changes.
func (c *Controller) SetVolume(percent int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	c.volume = percent
	if c.sess != nil {
		c.sess.SetVolume(float64(percent) / 100)
	}
	c.notifyLocked()
}

// Checkpoint stores the current position if a track is loaded. Called
// from the periodic tick.
func (c *Controller) Checkpoint() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return
	}
	c.checkpointLocked()
}

// HasEnded reports whether the loaded track played to completion.
func (c *Controller) HasEnded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess != nil && c.sess.Ended()
}

// CurrentPath returns the absolute path of the loaded track, if any.
func (c *Controller) CurrentPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// Status returns a point-in-time snapshot.
func (c *Controller) Status() types.PlayerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) statusLocked() types.PlayerStatus {
	st := types.PlayerStatus{
		State:  c.state,
		Volume: c.volume,
	}
	if c.sess == nil {
		return st
	}
	st.PositionMs = c.sess.PositionMs()
	st.DurationMs = c.sess.DurationMs()
	st.HasEnded = c.sess.Ended()
	st.IsPlaying = c.state == types.StatePlaying && !st.HasEnded
	if st.DurationMs > 0 {
		st.PositionPercent = int(st.PositionMs * 100 / st.DurationMs)
		if st.PositionPercent > 100 {
			st.PositionPercent = 100
		}
	}
	st.Filename = filepath.Base(c.path)
	if md, ok := c.store.MetadataFor(c.path); ok {
		st.Metadata = md
	}
	return st
}

// checkpointLocked writes the current position to the catalog. A track
// within the near-end threshold of its end checkpoints zero instead, so
// the next play starts it over.
func (c *Controller) checkpointLocked() {
	if c.sess == nil || c.path == "" {
		return
	}
	pos := c.sess.PositionMs()
	dur := c.sess.DurationMs()
	if c.sess.Ended() || (dur > 0 && dur-pos <= c.nearEnd.Milliseconds()) {
		pos = 0
	}
	c.store.CheckpointPosition(c.path, pos)
}

// teardownLocked closes the current session, checkpointing first when
// asked.
func (c *Controller) teardownLocked(checkpoint bool) {
	if c.sess == nil {
		return
	}
	if checkpoint {
		c.checkpointLocked()
	}
	c.sess.Close()
	c.sess = nil
	c.path = ""
}

func (c *Controller) notifyLocked() {
	if c.onChange == nil {
		return
	}
	c.onChange(c.statusLocked())
}

// Close stops playback and releases the session.
func (c *Controller) Close() {
	c.Stop()
}
