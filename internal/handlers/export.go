package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"clipforge-backend/internal/export"
	"clipforge-backend/internal/models"
	"clipforge-backend/internal/services"
	"clipforge-backend/internal/youtube"
)

// VideoFinder looks up a video record scoped to its owner. Satisfied by
// supabase.DatabaseClient.
type VideoFinder interface {
	GetVideo(videoID, userID uuid.UUID) (*models.Video, error)
}

type ExportHandler struct {
	service *services.ExportService
	videos  VideoFinder
}

func NewExportHandler(service *services.ExportService, videos VideoFinder) *ExportHandler {
	return &ExportHandler{
		service: service,
		videos:  videos,
	}
}

// Export renders the video's image/audio assets into an MP4 and returns
// the local URL of the artifact. Concurrent requests for the same video
// share one encode.
func (h *ExportHandler) Export(c *gin.Context) {
	if h.videos == nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "database not available"})
		return
	}

	userID, videoID, ok := h.identify(c)
	if !ok {
		return
	}

	var req models.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	videoURL, err := h.service.Export(c.Request.Context(), userID, videoID, req.Force)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingInputs), errors.Is(err, export.ErrInvalidJob):
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "video is not ready to export", Message: err.Error()})
		case errors.Is(err, export.ErrToolUnavailable):
			c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "encoder unavailable", Message: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "export failed", Message: err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, models.ExportResponse{
		Success:  true,
		VideoURL: videoURL,
	})
}

// GetStatus reports the video's pipeline status and progress.
func (h *ExportHandler) GetStatus(c *gin.Context) {
	if h.videos == nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "database not available"})
		return
	}

	userID, videoID, ok := h.identify(c)
	if !ok {
		return
	}

	video, err := h.videos.GetVideo(videoID, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "video not found",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.StatusResponse{
		VideoID:   videoID.String(),
		Status:    video.Status,
		Progress:  video.Progress,
		VideoURL:  video.VideoURL.String,
		WatchURL:  video.WatchURL.String,
		UpdatedAt: video.UpdatedAt,
	})
}

// Publish uploads an exported video to YouTube and returns the watch URL.
func (h *ExportHandler) Publish(c *gin.Context) {
	if h.videos == nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "database not available"})
		return
	}

	userID, videoID, ok := h.identify(c)
	if !ok {
		return
	}

	var req models.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	watchURL, err := h.service.Publish(c.Request.Context(), userID, videoID, req.Description, req.Tags)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotExported):
			c.JSON(http.StatusConflict, models.ErrorResponse{Error: "video has not been exported", Message: err.Error()})
		case errors.Is(err, youtube.ErrNotConfigured):
			c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "publishing not configured", Message: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "publish failed", Message: err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, models.PublishResponse{
		Success:  true,
		WatchURL: watchURL,
	})
}

func (h *ExportHandler) identify(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := requestUserID(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	videoID, err := uuid.Parse(c.Param("video_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid video id"})
		return uuid.Nil, uuid.Nil, false
	}
	return userID, videoID, true
}
