package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carlbunn/musicbox/downloader"
)

// DownloadHandler manages the spotdl download queue over HTTP.
type DownloadHandler struct {
	queue *downloader.Queue
}

func NewDownloadHandler(queue *downloader.Queue) *DownloadHandler {
	return &DownloadHandler{queue: queue}
}

type downloadRequest struct {
	URL string `json:"url" binding:"required"`
}

// Queue adds a Spotify url to the download queue.
func (h *DownloadHandler) Queue(c *gin.Context) {
	if h.queue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "downloads are disabled"})
		return
	}
	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	job, err := h.queue.Enqueue(req.URL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "download queued",
		"job":     job,
	})
}

// List returns all known jobs, newest first.
func (h *DownloadHandler) List(c *gin.Context) {
	if h.queue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "downloads are disabled"})
		return
	}
	jobs := h.queue.Jobs()
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// Get returns one job by id.
func (h *DownloadHandler) Get(c *gin.Context) {
	if h.queue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "downloads are disabled"})
		return
	}
	job, ok := h.queue.Job(c.Param("jobId"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// Cancel cancels a queued job. Jobs already running are not
// interrupted.
func (h *DownloadHandler) Cancel(c *gin.Context) {
	if h.queue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "downloads are disabled"})
		return
	}
	if !h.queue.Cancel(c.Param("jobId")) {
		c.JSON(http.StatusConflict, gin.H{"error": "job is not queued"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "job cancelled"})
}
