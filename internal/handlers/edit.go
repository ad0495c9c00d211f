package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"clipforge-backend/internal/models"
	"clipforge-backend/internal/preview"
	"clipforge-backend/internal/services"
	"clipforge-backend/internal/timeline"
)

// maxAssetSize caps a single staged image or audio upload (32MB).
const maxAssetSize = 32 << 20

type EditHandler struct {
	manager *preview.Manager
	service *services.ExportService
	videos  VideoFinder
}

func NewEditHandler(manager *preview.Manager, service *services.ExportService, videos VideoFinder) *EditHandler {
	return &EditHandler{
		manager: manager,
		service: service,
		videos:  videos,
	}
}

// Open creates (or replaces) the edit session for a video and probes the
// audio so the timeline is ready for frame queries.
func (h *EditHandler) Open(c *gin.Context) {
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

	session := h.manager.Open(c.Request.Context(), video)
	state := session.Snapshot()

	c.JSON(http.StatusOK, models.EditSessionResponse{
		SessionID:   session.ID.String(),
		VideoID:     videoID.String(),
		TotalFrames: state.TotalFrames,
		FrameRate:   timeline.FrameRate,
		ImageCount:  state.ImageCount,
		Pending:     state.Pending,
	})
}

// StageImage buffers a replacement image at the given slot. The staged
// bytes are visible in frame queries immediately but are not uploaded
// until save.
func (h *EditHandler) StageImage(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid image index"})
		return
	}

	data, mimeType, ok := readUploadedFile(c, "image")
	if !ok {
		return
	}

	if err := session.StageImage(index, data, mimeType); err != nil {
		if errors.Is(err, preview.ErrBadIndex) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "image index out of range"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to stage image", Message: err.Error()})
		return
	}

	h.respondState(c, session)
}

// RemoveImage discards a staged replacement (?staged=true) or marks the
// slot deleted, which stages the built-in placeholder.
func (h *EditHandler) RemoveImage(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid image index"})
		return
	}

	if c.Query("staged") == "true" {
		err = session.DiscardImage(index)
	} else {
		err = session.DeleteImage(index)
	}
	if err != nil {
		if errors.Is(err, preview.ErrBadIndex) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "image index out of range"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to remove image", Message: err.Error()})
		return
	}

	h.respondState(c, session)
}

// StageAudio buffers a replacement audio track and re-probes its
// duration in the background. Frame queries keep the previous timeline
// until the probe settles.
func (h *EditHandler) StageAudio(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	data, mimeType, ok := readUploadedFile(c, "audio")
	if !ok {
		return
	}

	if err := session.StageAudio(data, mimeType); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to stage audio", Message: err.Error()})
		return
	}

	h.respondState(c, session)
}

// GetFrame resolves the render state at a playhead frame: the active
// image slot, its zoom scale and the effective audio source.
func (h *EditHandler) GetFrame(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	frameNum, err := strconv.Atoi(c.Param("frame"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid frame number"})
		return
	}

	frame, err := session.FrameAt(frameNum)
	if err != nil {
		switch {
		case errors.Is(err, preview.ErrNoAssets):
			c.JSON(http.StatusConflict, models.ErrorResponse{Error: "video has no images"})
		case errors.Is(err, preview.ErrFrameOutside):
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "frame outside timeline"})
		default:
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to resolve frame", Message: err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, models.FrameResponse{
		Frame:       frame.Frame,
		AssetIndex:  frame.AssetIndex,
		ImageSource: imageSource(frame),
		Scale:       frame.Scale,
		AudioSource: frame.AudioSource,
		TotalFrames: frame.TotalFrames,
	})
}

// GetStagedImage serves the raw bytes of a staged image so the client
// can render pending slots before save.
func (h *EditHandler) GetStagedImage(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid image index"})
		return
	}

	asset, found := session.StagedImage(index)
	if !found || !asset.IsStaged() {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "no staged image at index"})
		return
	}

	c.Data(http.StatusOK, asset.MimeType(), asset.Bytes())
}

// Save commits all staged edits: images and audio are uploaded
// concurrently, the video record is updated and the session baseline
// reset. On a partial failure the response names the failed slot and
// nothing is persisted to the record.
func (h *EditHandler) Save(c *gin.Context) {
	_, videoID, ok := h.identify(c)
	if !ok {
		return
	}

	session, found := h.manager.Get(videoID)
	if !found {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "no edit session for video"})
		return
	}

	committed, err := h.service.SaveEdits(c.Request.Context(), videoID, session)
	if err != nil {
		var commitErr *preview.CommitError
		if errors.As(err, &commitErr) {
			c.JSON(http.StatusBadGateway, models.ErrorResponse{
				Error:   "failed to upload staged assets",
				Message: commitErr.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to save edits", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.SaveResponse{
		Images:   committed.Images,
		AudioURL: committed.AudioURL,
	})
}

// Close tears the session down and discards all staged edits.
func (h *EditHandler) Close(c *gin.Context) {
	_, videoID, ok := h.identify(c)
	if !ok {
		return
	}

	h.manager.Close(videoID)
	c.Status(http.StatusNoContent)
}

func (h *EditHandler) identify(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
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

func (h *EditHandler) session(c *gin.Context) (*preview.Session, bool) {
	_, videoID, ok := h.identify(c)
	if !ok {
		return nil, false
	}

	session, found := h.manager.Get(videoID)
	if !found {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "no edit session for video"})
		return nil, false
	}
	return session, true
}

func (h *EditHandler) respondState(c *gin.Context, session *preview.Session) {
	state := session.Snapshot()
	c.JSON(http.StatusOK, models.EditSessionResponse{
		SessionID:   session.ID.String(),
		VideoID:     session.VideoID.String(),
		TotalFrames: state.TotalFrames,
		FrameRate:   timeline.FrameRate,
		ImageCount:  state.ImageCount,
		Pending:     state.Pending,
	})
}

// readUploadedFile accepts either a multipart file under the given field
// name or a raw request body. On failure it writes the error response.
func readUploadedFile(c *gin.Context, field string) ([]byte, string, bool) {
	if fileHeader, err := c.FormFile(field); err == nil {
		if fileHeader.Size > maxAssetSize {
			c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{Error: "file too large"})
			return nil, "", false
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to open uploaded file", Message: err.Error()})
			return nil, "", false
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxAssetSize+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to read uploaded file", Message: err.Error()})
			return nil, "", false
		}
		return data, fileHeader.Header.Get("Content-Type"), true
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxAssetSize+1))
	if err != nil || len(data) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "no file provided"})
		return nil, "", false
	}
	if len(data) > maxAssetSize {
		c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{Error: "file too large"})
		return nil, "", false
	}
	return data, c.ContentType(), true
}

func imageSource(frame preview.Frame) string {
	if frame.Image.IsStaged() {
		return "staged://" + strconv.Itoa(frame.AssetIndex)
	}
	return frame.Image.URL()
}
