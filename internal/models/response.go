package models

import "time"

type ExportResponse struct {
	Success  bool   `json:"success"`
	VideoURL string `json:"videoUrl"`
	Message  string `json:"message,omitempty"`
}

type PublishResponse struct {
	Success  bool   `json:"success"`
	WatchURL string `json:"watchUrl"`
}

type StatusResponse struct {
	VideoID   string    `json:"video_id"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	VideoURL  string    `json:"video_url,omitempty"`
	WatchURL  string    `json:"watch_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type EditSessionResponse struct {
	SessionID   string `json:"session_id"`
	VideoID     string `json:"video_id"`
	TotalFrames int    `json:"total_frames"`
	FrameRate   int    `json:"frame_rate"`
	ImageCount  int    `json:"image_count"`
	Pending     bool   `json:"pending"`
}

type FrameResponse struct {
	Frame       int     `json:"frame"`
	AssetIndex  int     `json:"asset_index"`
	ImageSource string  `json:"image_source"`
	Scale       float64 `json:"scale"`
	AudioSource string  `json:"audio_source"`
	TotalFrames int     `json:"total_frames"`
}

type SaveResponse struct {
	Images   []string `json:"images"`
	AudioURL string   `json:"audio_url"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
