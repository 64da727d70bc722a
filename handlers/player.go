package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carlbunn/musicbox/catalog"
	"github.com/carlbunn/musicbox/player"
	"github.com/carlbunn/musicbox/types"
)

const (
	// maxSeekMs caps absolute seek targets at 24 hours.
	maxSeekMs = 24 * 60 * 60 * 1000
	// maxSkipMs caps relative skips at 5 minutes either way.
	maxSkipMs = 300000
)

// PlayerHandler exposes playback control over HTTP.
type PlayerHandler struct {
	controller *player.Controller
	store      *catalog.Store
}

func NewPlayerHandler(controller *player.Controller, store *catalog.Store) *PlayerHandler {
	return &PlayerHandler{controller: controller, store: store}
}

// Status returns the current playback snapshot.
func (h *PlayerHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.Status())
}

// Display returns a compact rendering of the status for small screens.
func (h *PlayerHandler) Display(c *gin.Context) {
	c.JSON(http.StatusOK, buildDisplay(h.controller.Status()))
}

type playRequest struct {
	Filename string `json:"filename" binding:"required"`
}

// Play starts the named track.
func (h *PlayerHandler) Play(c *gin.Context) {
	var req playRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filename is required"})
		return
	}
	abs, err := h.store.ResolvePath(req.Filename)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.controller.Play(abs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.controller.Status())
}

// Pause suspends playback.
func (h *PlayerHandler) Pause(c *gin.Context) {
	h.controller.Pause()
	c.JSON(http.StatusOK, h.controller.Status())
}

// Resume continues a paused track.
func (h *PlayerHandler) Resume(c *gin.Context) {
	h.controller.Resume()
	c.JSON(http.StatusOK, h.controller.Status())
}

// Toggle flips between playing and paused.
func (h *PlayerHandler) Toggle(c *gin.Context) {
	h.controller.TogglePause()
	c.JSON(http.StatusOK, h.controller.Status())
}

// Stop tears down the current track.
func (h *PlayerHandler) Stop(c *gin.Context) {
	h.controller.Stop()
	c.JSON(http.StatusOK, h.controller.Status())
}

type seekRequest struct {
	PositionMs *int64 `json:"positionMs" binding:"required"`
}

// Seek moves to an absolute position.
func (h *PlayerHandler) Seek(c *gin.Context) {
	var req seekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "positionMs is required"})
		return
	}
	pos := *req.PositionMs
	if pos < 0 || pos > maxSeekMs {
		c.JSON(http.StatusBadRequest, gin.H{"error": "positionMs out of range"})
		return
	}
	if err := h.controller.SeekTo(pos); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.controller.Status())
}

type skipRequest struct {
	DeltaMs *int64 `json:"deltaMs" binding:"required"`
}

// Skip moves relative to the current position.
func (h *PlayerHandler) Skip(c *gin.Context) {
	var req skipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "deltaMs is required"})
		return
	}
	delta := *req.DeltaMs
	if delta < -maxSkipMs || delta > maxSkipMs {
		c.JSON(http.StatusBadRequest, gin.H{"error": "deltaMs out of range"})
		return
	}
	if err := h.controller.Skip(delta); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.controller.Status())
}

type volumeRequest struct {
	Volume *int `json:"volume" binding:"required"`
}

// Volume sets the output level as a percentage.
func (h *PlayerHandler) Volume(c *gin.Context) {
	var req volumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "volume is required"})
		return
	}
	if *req.Volume < 0 || *req.Volume > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "volume out of range"})
		return
	}
	h.controller.SetVolume(*req.Volume)
	c.JSON(http.StatusOK, h.controller.Status())
}

// buildDisplay formats a status for a two-line character display.
func buildDisplay(st types.PlayerStatus) types.DisplayInfo {
	title := st.Metadata.Title
	if title == "" {
		title = st.Filename
	}
	artist := st.Metadata.Artist

	info := types.DisplayInfo{
		Title:  title,
		Artist: artist,
		State:  string(st.State),
		Volume: fmt.Sprintf("%d%%", st.Volume),
	}
	if st.DurationMs > 0 {
		info.Time = fmt.Sprintf("%s / %s", formatMs(st.PositionMs), formatMs(st.DurationMs))
		info.Progress = progressBar(st.PositionPercent, 10)
	}
	info.Line1 = title
	if artist != "" {
		info.Line2 = artist
	} else {
		info.Line2 = info.Time
	}
	return info
}

func formatMs(ms int64) string {
	secs := ms / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func progressBar(percent, width int) string {
	filled := percent * width / 100
	bar := make([]byte, width)
	for i := range bar {
		if i < filled {
			bar[i] = '#'
		} else {
			bar[i] = '-'
		}
	}
	return string(bar)
}
