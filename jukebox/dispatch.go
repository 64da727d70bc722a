package jukebox

import (
	"go.uber.org/zap"

	"github.com/carlbunn/musicbox/logger"
	"github.com/carlbunn/musicbox/scheduler"
)

// dispatch applies the tap policy to one tag event. Same tag toggles
// pause, or restarts the track if it played to the end. A different
// tag switches tracks. Unmapped tags are ignored outside learning
// mode.
func (j *Jukebox) dispatch(tag string) {
	switch tag {
	case scheduler.EventLearn:
		j.toggleLearning()
		return
	case scheduler.EventNext:
		if j.inLearning() {
			j.learningCycle(1)
		} else if err := j.player.Skip(j.skipMs); err != nil {
			logger.Debug("skip forward ignored", zap.Error(err))
		}
		return
	case scheduler.EventPrev:
		if j.inLearning() {
			j.learningCycle(-1)
		} else if err := j.player.Skip(-j.skipMs); err != nil {
			logger.Debug("skip back ignored", zap.Error(err))
		}
		return
	}

	if j.inLearning() {
		j.learnTag(tag)
		return
	}

	path, ok := j.store.ResolveMapping(tag)
	if !ok {
		logger.Info("ignoring unmapped tag", zap.String("tag", tag))
		return
	}

	if tag == j.currentTag {
		if j.player.HasEnded() {
			// Track finished since the last tap, start it over.
			if err := j.player.Play(path); err != nil {
				logger.Error("restart failed", zap.String("tag", tag), zap.Error(err))
				j.currentTag = ""
			}
			return
		}
		j.player.TogglePause()
		return
	}

	if err := j.player.Play(path); err != nil {
		logger.Error("play failed", zap.String("tag", tag), zap.Error(err))
		j.currentTag = ""
		return
	}
	j.currentTag = tag
}
