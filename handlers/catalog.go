package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carlbunn/musicbox/catalog"
)

// CatalogHandler exposes the track catalog and tag mappings over HTTP.
type CatalogHandler struct {
	store *catalog.Store
}

func NewCatalogHandler(store *catalog.Store) *CatalogHandler {
	return &CatalogHandler{store: store}
}

// ListTracks returns every known track with its mapped tag, if any.
func (h *CatalogHandler) ListTracks(c *gin.Context) {
	tracks := h.store.Tracks()
	c.JSON(http.StatusOK, gin.H{
		"tracks": tracks,
		"count":  len(tracks),
	})
}

// Unmapped returns tracks with no tag mapping.
func (h *CatalogHandler) Unmapped(c *gin.Context) {
	files := h.store.UnmappedFiles()
	c.JSON(http.StatusOK, gin.H{
		"files": files,
		"count": len(files),
	})
}

// Rescan reconciles the catalog against the music directory.
func (h *CatalogHandler) Rescan(c *gin.Context) {
	if err := h.store.ScanDirectory(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "scan complete",
		"count":   len(h.store.Tracks()),
	})
}

// Validate audits mappings without changing anything.
func (h *CatalogHandler) Validate(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Validate())
}

type mappingRequest struct {
	TagID    string `json:"tagId" binding:"required"`
	Filename string `json:"filename" binding:"required"`
}

// AddMapping binds a tag to a track.
func (h *CatalogHandler) AddMapping(c *gin.Context) {
	var req mappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tagId and filename are required"})
		return
	}
	if err := h.store.AddMapping(req.TagID, req.Filename); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "mapping added",
		"tagId":   req.TagID,
	})
}

// RemoveMapping unbinds a tag. Removing an unknown tag succeeds.
func (h *CatalogHandler) RemoveMapping(c *gin.Context) {
	tagID := c.Param("tagId")
	if err := h.store.RemoveMapping(tagID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "mapping removed",
		"tagId":   tagID,
	})
}
