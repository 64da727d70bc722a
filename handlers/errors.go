package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carlbunn/musicbox/catalog"
	"github.com/carlbunn/musicbox/downloader"
	"github.com/carlbunn/musicbox/player"
)

// respondError maps domain errors onto HTTP statuses. Anything
// unrecognized is a 500.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, catalog.ErrPathViolation):
		status = http.StatusForbidden
	case errors.Is(err, catalog.ErrInvalidPath),
		errors.Is(err, catalog.ErrInvalidTag),
		errors.Is(err, downloader.ErrInvalidURL):
		status = http.StatusBadRequest
	case errors.Is(err, catalog.ErrUnknownTrack),
		errors.Is(err, player.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, downloader.ErrQueueFull):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
