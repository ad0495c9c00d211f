package supabase

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"
)

type RealtimeClient struct {
	client *supabase.Client
}

func NewRealtimeClient(client *supabase.Client) *RealtimeClient {
	return &RealtimeClient{
		client: client,
	}
}

func (r *RealtimeClient) PublishEvent(channel string, event string, payload map[string]interface{}) error {
	// Status polls on the client ride on database updates, which
	// trigger Realtime automatically; explicit publishing would need the
	// Realtime REST API.
	return nil
}

func (r *RealtimeClient) PublishVideoEvent(videoID uuid.UUID, event string, payload map[string]interface{}) error {
	channel := fmt.Sprintf("video:%s", videoID.String())
	return r.PublishEvent(channel, event, payload)
}

// Event payloads
func ExportStartedPayload(videoID uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"video_id": videoID.String(),
		"status":   "rendering",
	}
}

func ExportCompletedPayload(videoID uuid.UUID, videoURL string) map[string]interface{} {
	return map[string]interface{}{
		"video_id":  videoID.String(),
		"status":    "rendered",
		"progress":  100,
		"video_url": videoURL,
	}
}

func ExportFailedPayload(videoID uuid.UUID, errorMsg string) map[string]interface{} {
	return map[string]interface{}{
		"video_id": videoID.String(),
		"status":   "failed",
		"error":    errorMsg,
	}
}

func AssetsSavedPayload(videoID uuid.UUID, imageCount int) map[string]interface{} {
	return map[string]interface{}{
		"video_id":    videoID.String(),
		"status":      "ready",
		"image_count": imageCount,
	}
}

func PublishedPayload(videoID uuid.UUID, watchURL string) map[string]interface{} {
	return map[string]interface{}{
		"video_id":  videoID.String(),
		"status":    "published",
		"watch_url": watchURL,
	}
}
