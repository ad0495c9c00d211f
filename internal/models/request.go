package models

type ExportRequest struct {
	// Force bypasses the exported-file cache and re-encodes even when a
	// prior output exists for this video.
	Force bool `json:"force,omitempty"`
}

type PublishRequest struct {
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
