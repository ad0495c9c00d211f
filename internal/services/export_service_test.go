package services_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipforge-backend/internal/export"
	"clipforge-backend/internal/models"
	"clipforge-backend/internal/services"
)

type fakeExporter struct {
	calls []export.Job
	url   string
	err   error
}

func (f *fakeExporter) Export(ctx context.Context, job export.Job, force bool) (string, error) {
	f.calls = append(f.calls, job)
	return f.url, f.err
}

type fakeLocator struct{}

func (fakeLocator) OutputPath(videoID string) string {
	return "/exports/" + videoID + ".mp4"
}

type fakeStore struct {
	video    *models.Video
	statuses []string
	videoURL string
	watchURL string
	errorMsg string
	images   []string
	audioURL string
}

func (f *fakeStore) GetVideo(videoID, userID uuid.UUID) (*models.Video, error) {
	if f.video == nil {
		return nil, errors.New("video not found")
	}
	return f.video, nil
}

func (f *fakeStore) UpdateVideoStatus(videoID uuid.UUID, status string, progress int) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeStore) UpdateVideoURL(videoID uuid.UUID, videoURL string) error {
	f.videoURL = videoURL
	f.statuses = append(f.statuses, models.StatusRendered)
	return nil
}

func (f *fakeStore) UpdateVideoWatchURL(videoID uuid.UUID, watchURL string) error {
	f.watchURL = watchURL
	f.statuses = append(f.statuses, models.StatusPublished)
	return nil
}

func (f *fakeStore) UpdateVideoError(videoID uuid.UUID, errorMsg string) error {
	f.errorMsg = errorMsg
	f.statuses = append(f.statuses, models.StatusFailed)
	return nil
}

func (f *fakeStore) UpdateVideoAssets(videoID uuid.UUID, images []string, audioURL string) error {
	f.images = images
	f.audioURL = audioURL
	return nil
}

type fakeEvents struct {
	events []string
}

func (f *fakeEvents) PublishVideoEvent(videoID uuid.UUID, event string, payload map[string]interface{}) error {
	f.events = append(f.events, event)
	return nil
}

type fakeHost struct {
	watchURL string
	err      error
	files    []string
}

func (f *fakeHost) Upload(ctx context.Context, videoFile, title, description string, tags []string) (string, error) {
	f.files = append(f.files, videoFile)
	return f.watchURL, f.err
}

func readyVideo(id uuid.UUID) *models.Video {
	return &models.Video{
		ID:       id,
		UserID:   uuid.New(),
		Title:    "my short",
		Images:   []string{"https://cdn.test/a.png", "https://cdn.test/b.png"},
		AudioURL: sql.NullString{String: "https://cdn.test/audio.wav", Valid: true},
		Status:   models.StatusReady,
	}
}

func TestExportService_Export(t *testing.T) {
	videoID := uuid.New()
	store := &fakeStore{video: readyVideo(videoID)}
	exporter := &fakeExporter{url: "/exports/" + videoID.String() + ".mp4"}
	events := &fakeEvents{}
	service := services.NewExportService(exporter, fakeLocator{}, store, events, &fakeHost{})

	url, err := service.Export(context.Background(), store.video.UserID, videoID, false)

	require.NoError(t, err)
	assert.Equal(t, "/exports/"+videoID.String()+".mp4", url)
	assert.Equal(t, url, store.videoURL)
	assert.Equal(t, []string{models.StatusRendering, models.StatusRendered}, store.statuses)
	assert.Equal(t, []string{"export_started", "export_completed"}, events.events)

	require.Len(t, exporter.calls, 1)
	assert.Equal(t, videoID.String(), exporter.calls[0].VideoID)
	assert.Equal(t, "https://cdn.test/audio.wav", exporter.calls[0].AudioRef)
	assert.Len(t, exporter.calls[0].ImageRefs, 2)
}

func TestExportService_Export_MissingInputsRejectedEarly(t *testing.T) {
	videoID := uuid.New()
	video := readyVideo(videoID)
	video.AudioURL = sql.NullString{}
	store := &fakeStore{video: video}
	exporter := &fakeExporter{}
	service := services.NewExportService(exporter, fakeLocator{}, store, &fakeEvents{}, &fakeHost{})

	_, err := service.Export(context.Background(), video.UserID, videoID, false)
	assert.ErrorIs(t, err, services.ErrMissingInputs)
	assert.Empty(t, exporter.calls, "no external work before input validation")

	video.AudioURL = sql.NullString{String: "https://cdn.test/audio.wav", Valid: true}
	video.Images = nil
	_, err = service.Export(context.Background(), video.UserID, videoID, false)
	assert.ErrorIs(t, err, services.ErrMissingInputs)
	assert.Empty(t, exporter.calls)
}

func TestExportService_Export_FailureRecordsError(t *testing.T) {
	videoID := uuid.New()
	store := &fakeStore{video: readyVideo(videoID)}
	exporter := &fakeExporter{err: export.ErrToolUnavailable}
	events := &fakeEvents{}
	service := services.NewExportService(exporter, fakeLocator{}, store, events, &fakeHost{})

	_, err := service.Export(context.Background(), store.video.UserID, videoID, false)

	assert.ErrorIs(t, err, export.ErrToolUnavailable)
	assert.Contains(t, store.errorMsg, "unavailable")
	assert.Contains(t, events.events, "export_failed")
}

func TestExportService_Publish(t *testing.T) {
	videoID := uuid.New()
	video := readyVideo(videoID)
	video.VideoURL = sql.NullString{String: "/exports/" + videoID.String() + ".mp4", Valid: true}
	store := &fakeStore{video: video}
	host := &fakeHost{watchURL: "https://www.youtube.com/watch?v=abc123"}
	service := services.NewExportService(&fakeExporter{}, fakeLocator{}, store, &fakeEvents{}, host)

	watchURL, err := service.Publish(context.Background(), video.UserID, videoID, "desc", []string{"shorts"})

	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", watchURL)
	assert.Equal(t, watchURL, store.watchURL)
	require.Len(t, host.files, 1)
	assert.Equal(t, "/exports/"+videoID.String()+".mp4", host.files[0])
}

func TestExportService_Publish_RequiresExport(t *testing.T) {
	videoID := uuid.New()
	store := &fakeStore{video: readyVideo(videoID)}
	host := &fakeHost{}
	service := services.NewExportService(&fakeExporter{}, fakeLocator{}, store, &fakeEvents{}, host)

	_, err := service.Publish(context.Background(), store.video.UserID, videoID, "", nil)

	assert.ErrorIs(t, err, services.ErrNotExported)
	assert.Empty(t, host.files)
}
