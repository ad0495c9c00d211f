package supabase

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"clipforge-backend/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

const videoColumns = `id, user_id, title, script, video_style, caption, images, audio_url,
		video_url, watch_url, status, progress, error_message, created_at, updated_at`

func scanVideo(row interface{ Scan(...any) error }) (*models.Video, error) {
	var video models.Video
	err := row.Scan(
		&video.ID, &video.UserID, &video.Title, &video.Script, &video.VideoStyle,
		&video.Caption, &video.Images, &video.AudioURL, &video.VideoURL, &video.WatchURL,
		&video.Status, &video.Progress, &video.ErrorMessage, &video.CreatedAt, &video.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &video, nil
}

func (d *DatabaseClient) GetVideo(videoID, userID uuid.UUID) (*models.Video, error) {
	video, err := scanVideo(d.db.QueryRow(`
		SELECT `+videoColumns+`
		FROM videos
		WHERE id = $1 AND user_id = $2
	`, videoID, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return video, nil
}

func (d *DatabaseClient) ListVideos(userID uuid.UUID) ([]models.Video, error) {
	rows, err := d.db.Query(`
		SELECT `+videoColumns+`
		FROM videos
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, *video)
	}

	return videos, nil
}

// UpdateVideoAssets persists a committed edit: the resolved image list
// and audio URL replace the prior ones in a single statement.
func (d *DatabaseClient) UpdateVideoAssets(videoID uuid.UUID, images []string, audioURL string) error {
	_, err := d.db.Exec(`
		UPDATE videos
		SET images = $1, audio_url = $2, updated_at = NOW()
		WHERE id = $3
	`, pq.Array(images), audioURL, videoID)
	return err
}

func (d *DatabaseClient) UpdateVideoStatus(videoID uuid.UUID, status string, progress int) error {
	_, err := d.db.Exec(`
		UPDATE videos
		SET status = $1, progress = $2, updated_at = NOW()
		WHERE id = $3
	`, status, progress, videoID)
	return err
}

func (d *DatabaseClient) UpdateVideoURL(videoID uuid.UUID, videoURL string) error {
	_, err := d.db.Exec(`
		UPDATE videos
		SET video_url = $1, status = $2, progress = 100, updated_at = NOW()
		WHERE id = $3
	`, videoURL, models.StatusRendered, videoID)
	return err
}

func (d *DatabaseClient) UpdateVideoWatchURL(videoID uuid.UUID, watchURL string) error {
	_, err := d.db.Exec(`
		UPDATE videos
		SET watch_url = $1, status = $2, updated_at = NOW()
		WHERE id = $3
	`, watchURL, models.StatusPublished, videoID)
	return err
}

func (d *DatabaseClient) UpdateVideoError(videoID uuid.UUID, errorMsg string) error {
	_, err := d.db.Exec(`
		UPDATE videos
		SET status = 'failed', error_message = $1, updated_at = NOW()
		WHERE id = $2
	`, errorMsg, videoID)
	return err
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}
