package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"clipforge-backend/internal/export"
	"clipforge-backend/internal/models"
	"clipforge-backend/internal/preview"
	"clipforge-backend/internal/supabase"
)

// ErrMissingInputs means the video record lacks the audio or images an
// export needs; rejected before any external tool is invoked.
var ErrMissingInputs = errors.New("video is missing export inputs")

// ErrNotExported means publish was requested before a successful export.
var ErrNotExported = errors.New("video has not been exported")

// Exporter is the per-video-id serialized encode entry point.
// Satisfied by export.Coordinator.
type Exporter interface {
	Export(ctx context.Context, job export.Job, force bool) (string, error)
}

// ArtifactLocator maps a video id to its exported file on disk.
// Satisfied by export.Renderer.
type ArtifactLocator interface {
	OutputPath(videoID string) string
}

// VideoStore is the persisted project store consumed by the pipeline.
// Satisfied by supabase.DatabaseClient.
type VideoStore interface {
	GetVideo(videoID, userID uuid.UUID) (*models.Video, error)
	UpdateVideoStatus(videoID uuid.UUID, status string, progress int) error
	UpdateVideoURL(videoID uuid.UUID, videoURL string) error
	UpdateVideoWatchURL(videoID uuid.UUID, watchURL string) error
	UpdateVideoError(videoID uuid.UUID, errorMsg string) error
	UpdateVideoAssets(videoID uuid.UUID, images []string, audioURL string) error
}

// EventPublisher pushes status transitions to listening clients.
// Satisfied by supabase.RealtimeClient.
type EventPublisher interface {
	PublishVideoEvent(videoID uuid.UUID, event string, payload map[string]interface{}) error
}

// HostUploader pushes a finished export to the video host.
// Satisfied by youtube.Uploader.
type HostUploader interface {
	Upload(ctx context.Context, videoFile, title, description string, tags []string) (string, error)
}

// ExportService composes the video pipeline out of discrete stages
// (encode, persist, host upload), each with its own typed result, so a
// caller (or job runner) can retry a stage without replaying the rest.
type ExportService struct {
	exporter Exporter
	locator  ArtifactLocator
	store    VideoStore
	events   EventPublisher
	host     HostUploader
}

func NewExportService(exporter Exporter, locator ArtifactLocator, store VideoStore, events EventPublisher, host HostUploader) *ExportService {
	return &ExportService{
		exporter: exporter,
		locator:  locator,
		store:    store,
		events:   events,
		host:     host,
	}
}

// Export runs the encode stage for a video and persists the result.
// Only committed state feeds the encoder; staged edits in a live
// session are never visible here.
func (s *ExportService) Export(ctx context.Context, userID, videoID uuid.UUID, force bool) (string, error) {
	video, err := s.store.GetVideo(videoID, userID)
	if err != nil {
		return "", fmt.Errorf("load video: %w", err)
	}

	if !video.AudioURL.Valid || video.AudioURL.String == "" {
		return "", fmt.Errorf("%w: no audio", ErrMissingInputs)
	}
	if len(video.Images) == 0 {
		return "", fmt.Errorf("%w: no images", ErrMissingInputs)
	}

	s.store.UpdateVideoStatus(videoID, models.StatusRendering, 0)
	s.events.PublishVideoEvent(videoID, "export_started", supabase.ExportStartedPayload(videoID))

	videoURL, err := s.exporter.Export(ctx, export.Job{
		VideoID:   videoID.String(),
		AudioRef:  video.AudioURL.String,
		ImageRefs: video.Images,
		Title:     video.Title,
	}, force)
	if err != nil {
		s.store.UpdateVideoError(videoID, err.Error())
		s.events.PublishVideoEvent(videoID, "export_failed", supabase.ExportFailedPayload(videoID, err.Error()))
		return "", err
	}

	if err := s.store.UpdateVideoURL(videoID, videoURL); err != nil {
		return "", fmt.Errorf("persist video url: %w", err)
	}
	s.events.PublishVideoEvent(videoID, "export_completed", supabase.ExportCompletedPayload(videoID, videoURL))

	log.Printf("[service] video %s exported to %s", videoID, videoURL)
	return videoURL, nil
}

// Publish uploads an exported video to the host and persists the watch
// URL. It is a separate stage from Export: a failed upload never
// invalidates the local artifact.
func (s *ExportService) Publish(ctx context.Context, userID, videoID uuid.UUID, description string, tags []string) (string, error) {
	video, err := s.store.GetVideo(videoID, userID)
	if err != nil {
		return "", fmt.Errorf("load video: %w", err)
	}
	if !video.VideoURL.Valid || video.VideoURL.String == "" {
		return "", ErrNotExported
	}

	s.store.UpdateVideoStatus(videoID, models.StatusPublishing, 100)

	watchURL, err := s.host.Upload(ctx, s.locator.OutputPath(videoID.String()), video.Title, description, tags)
	if err != nil {
		s.store.UpdateVideoError(videoID, err.Error())
		return "", err
	}

	if err := s.store.UpdateVideoWatchURL(videoID, watchURL); err != nil {
		return "", fmt.Errorf("persist watch url: %w", err)
	}
	s.events.PublishVideoEvent(videoID, "published", supabase.PublishedPayload(videoID, watchURL))

	return watchURL, nil
}

// SaveEdits commits a session's staged edits to durable storage, writes
// the resolved asset list to the project store and resets the session
// baseline. A partial upload failure aborts the save; already-uploaded
// objects stay durable but unreferenced.
func (s *ExportService) SaveEdits(ctx context.Context, videoID uuid.UUID, session *preview.Session) (preview.CommittedState, error) {
	committed, err := session.Commit(ctx)
	if err != nil {
		return preview.CommittedState{}, err
	}

	if err := s.store.UpdateVideoAssets(videoID, committed.Images, committed.AudioURL); err != nil {
		return preview.CommittedState{}, fmt.Errorf("persist assets: %w", err)
	}

	session.ApplyCommitted(committed)
	s.events.PublishVideoEvent(videoID, "assets_saved", supabase.AssetsSavedPayload(videoID, len(committed.Images)))
	return committed, nil
}
