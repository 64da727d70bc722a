package jukebox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/carlbunn/musicbox/catalog"
	"github.com/carlbunn/musicbox/config"
	"github.com/carlbunn/musicbox/logger"
	"github.com/carlbunn/musicbox/scheduler"
	"github.com/carlbunn/musicbox/types"
	"github.com/carlbunn/musicbox/websocket"
)

// Player is the slice of the playback controller the dispatch loop
// needs.
type Player interface {
	Play(path string) error
	TogglePause() bool
	Skip(deltaMs int64) error
	Stop()
	Checkpoint()
	HasEnded() bool
	Status() types.PlayerStatus
}

// Jukebox owns the main dispatch loop: tag events in, playback
// decisions out. Single consumer, so the dispatch policy never races
// with itself.
type Jukebox struct {
	store  *catalog.Store
	player Player
	events <-chan string
	rescan <-chan struct{}
	hub    websocket.Hub
	tick   time.Duration
	skipMs int64

	currentTag string
	learning   *learningSession
}

func New(store *catalog.Store, player Player, sched *scheduler.Scheduler, rescan <-chan struct{}, hub websocket.Hub, cfg *config.Config) *Jukebox {
	return &Jukebox{
		store:  store,
		player: player,
		events: sched.Events(),
		rescan: rescan,
		hub:    hub,
		tick:   cfg.DispatchTick,
		skipMs: cfg.DefaultSkipMs,
	}
}

// Run consumes tag events until the context is cancelled or a quit
// event arrives. The caller owns the shutdown of the surrounding
// services.
func (j *Jukebox) Run(ctx context.Context) {
	ticker := time.NewTicker(j.tick)
	defer ticker.Stop()

	logger.Info("jukebox dispatch loop running")
	for {
		select {
		case <-ctx.Done():
			return

		case tag, ok := <-j.events:
			if !ok {
				return
			}
			if tag == scheduler.EventQuit {
				logger.Info("quit requested from reader")
				return
			}
			j.dispatch(tag)

		case <-j.rescan:
			if err := j.store.ScanDirectory(); err != nil {
				logger.Error("rescan failed", zap.Error(err))
			}

		case <-ticker.C:
			j.onTick()
		}
	}
}

// onTick checkpoints the playing position and pushes a status snapshot
// so connected clients see the position advance.
func (j *Jukebox) onTick() {
	j.player.Checkpoint()
	st := j.player.Status()
	if st.State == types.StatePlaying && j.hub != nil {
		j.hub.Broadcast(types.Event{
			Topic:    types.TopicStatus,
			Type:     "tick",
			Playback: &st,
		})
	}
}
