package youtube

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"clipforge-backend/internal/config"
)

// ErrNotConfigured means the publish credentials are absent; publishing
// is an optional stage and its absence is not a server error.
var ErrNotConfigured = errors.New("youtube upload is not configured")

const defaultTitle = "My_AI_Created_Video"

// Uploader pushes a finished export to YouTube via the Data API v3.
type Uploader struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Uploader {
	return &Uploader{cfg: cfg}
}

// Upload publishes the video file and returns its public watch URL.
func (u *Uploader) Upload(ctx context.Context, videoFile, title, description string, tags []string) (string, error) {
	if !u.cfg.YouTubeConfigured() {
		return "", ErrNotConfigured
	}

	finalTitle := strings.TrimSpace(title)
	if finalTitle == "" {
		finalTitle = defaultTitle
	}

	client, err := u.oauthClient(ctx)
	if err != nil {
		return "", fmt.Errorf("youtube auth: %w", err)
	}

	svc, err := youtube.NewService(ctx, option.WithHTTPClient(&http.Client{Transport: client}))
	if err != nil {
		return "", fmt.Errorf("youtube service: %w", err)
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       finalTitle,
			Description: description,
			Tags:        tags,
			CategoryId:  "22",
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: "public",
		},
	}

	f, err := os.Open(videoFile)
	if err != nil {
		return "", fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	log.Printf("[youtube] uploading %q", finalTitle)

	call := svc.Videos.Insert([]string{"snippet", "status"}, video)
	call.Media(f)

	uploaded, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("youtube upload: %w", err)
	}

	watchURL := fmt.Sprintf("https://www.youtube.com/watch?v=%s", uploaded.Id)
	log.Printf("[youtube] uploaded: %s", watchURL)
	return watchURL, nil
}

func (u *Uploader) oauthClient(ctx context.Context) (*oauth2.Transport, error) {
	conf := &oauth2.Config{
		ClientID:     u.cfg.YouTubeClientID,
		ClientSecret: u.cfg.YouTubeClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope, youtube.YoutubeScope},
	}

	token := &oauth2.Token{
		RefreshToken: u.cfg.YouTubeRefreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}

	return &oauth2.Transport{
		Source: conf.TokenSource(ctx, token),
	}, nil
}
