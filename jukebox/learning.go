package jukebox

import (
	"path/filepath"

	"go.uber.org/zap"

	"github.com/carlbunn/musicbox/logger"
	"github.com/carlbunn/musicbox/types"
)

// learningSession walks the unmapped tracks one at a time. The current
// candidate plays so whoever holds the tags can hear what they are
// mapping; tapping a tag binds it to the candidate and advances.
type learningSession struct {
	candidates []string
	index      int
}

func (j *Jukebox) inLearning() bool {
	return j.learning != nil
}

func (j *Jukebox) toggleLearning() {
	if j.learning != nil {
		j.exitLearning()
		return
	}

	candidates := j.store.UnmappedFiles()
	if len(candidates) == 0 {
		logger.Info("no unmapped tracks, learning mode not started")
		return
	}
	j.player.Stop()
	j.currentTag = ""
	j.learning = &learningSession{candidates: candidates}
	logger.Info("learning mode on", zap.Int("unmapped", len(candidates)))
	j.playCandidate()
	j.broadcastLearning("learning_on")
}

func (j *Jukebox) exitLearning() {
	j.learning = nil
	j.player.Stop()
	logger.Info("learning mode off")
	j.broadcastLearning("learning_off")
}

// learningCycle moves to the next or previous candidate, wrapping.
func (j *Jukebox) learningCycle(step int) {
	l := j.learning
	if l == nil || len(l.candidates) == 0 {
		return
	}
	l.index = (l.index + step + len(l.candidates)) % len(l.candidates)
	j.playCandidate()
}

// learnTag maps the tapped tag to the current candidate and advances
// to the next unmapped track. Mapping the last candidate ends the
// session.
func (j *Jukebox) learnTag(tag string) {
	l := j.learning
	if l == nil || len(l.candidates) == 0 {
		return
	}
	candidate := l.candidates[l.index]
	if err := j.store.AddMapping(tag, candidate); err != nil {
		logger.Error("learning mapping failed",
			zap.String("tag", tag), zap.String("path", candidate), zap.Error(err))
		return
	}
	logger.Info("learned mapping", zap.String("tag", tag), zap.String("path", candidate))

	l.candidates = append(l.candidates[:l.index], l.candidates[l.index+1:]...)
	if len(l.candidates) == 0 {
		j.exitLearning()
		return
	}
	if l.index >= len(l.candidates) {
		l.index = 0
	}
	j.playCandidate()
}

func (j *Jukebox) playCandidate() {
	l := j.learning
	if l == nil || len(l.candidates) == 0 {
		return
	}
	rel := l.candidates[l.index]
	abs := filepath.Join(j.store.MusicRoot(), filepath.FromSlash(rel))
	if err := j.player.Play(abs); err != nil {
		logger.Warn("could not preview candidate", zap.String("path", rel), zap.Error(err))
	}
}

func (j *Jukebox) broadcastLearning(kind string) {
	if j.hub == nil {
		return
	}
	st := j.player.Status()
	j.hub.Broadcast(types.Event{
		Topic:    types.TopicStatus,
		Type:     kind,
		Playback: &st,
	})
}
