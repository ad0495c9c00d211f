package export

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"clipforge-backend/internal/media"
)

var (
	// ErrToolUnavailable means ffmpeg/ffprobe is missing from the host.
	// Fatal for the attempt; never retried here.
	ErrToolUnavailable = errors.New("encoder tool unavailable")
	// ErrAudioUnavailable means the soundtrack could not be fetched or
	// probed. No video is produced without audio since the whole
	// schedule derives from its duration.
	ErrAudioUnavailable = errors.New("audio source unavailable")
	ErrInvalidJob       = errors.New("invalid export job")
)

//go:embed placeholder.png
var placeholderImage []byte

// Job describes one export: the inputs must already be durable byte
// sources (local paths or fetchable URLs). Staged-but-uncommitted
// buffers are a caller error.
type Job struct {
	VideoID   string
	AudioRef  string
	ImageRefs []string
	Title     string
}

// Renderer is the headless counterpart of the preview: it re-derives
// the same schedule from the same inputs and encodes it once via
// ffmpeg. The output path is a function of the video id alone, so an
// existing output is a cache hit regardless of input content.
type Renderer struct {
	runner     media.CommandRunner
	prober     *media.Prober
	ffmpegPath string
	exportDir  string
	tempDir    string
	httpClient *http.Client
}

func NewRenderer(runner media.CommandRunner, prober *media.Prober, ffmpegPath, exportDir, tempDir string) *Renderer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Renderer{
		runner:     runner,
		prober:     prober,
		ffmpegPath: ffmpegPath,
		exportDir:  exportDir,
		tempDir:    tempDir,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// OutputPath is the deterministic artifact location for a video id.
func (r *Renderer) OutputPath(videoID string) string {
	return filepath.Join(r.exportDir, videoID+".mp4")
}

// VideoURL is the public path the artifact is served from.
func (r *Renderer) VideoURL(videoID string) string {
	return "/exports/" + videoID + ".mp4"
}

// Render produces the encoded file for the job, or returns the cached
// artifact when one already exists. The staging directory is removed
// whether or not the encode succeeds, and the output file appears
// atomically via rename so a concurrent reader never sees a partial
// write.
func (r *Renderer) Render(ctx context.Context, job Job) (string, error) {
	if job.VideoID == "" || job.AudioRef == "" || len(job.ImageRefs) == 0 {
		return "", fmt.Errorf("%w: videoId, audioRef and imageRefs are required", ErrInvalidJob)
	}

	outputPath := r.OutputPath(job.VideoID)
	if fileExists(outputPath) {
		log.Printf("[export] %s already exported, returning cached artifact", job.VideoID)
		return r.VideoURL(job.VideoID), nil
	}

	if _, err := r.runner.LookPath(r.ffmpegPath); err != nil {
		return "", fmt.Errorf("%w: %v", ErrToolUnavailable, err)
	}

	if err := os.MkdirAll(r.exportDir, 0755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	if err := os.MkdirAll(r.tempDir, 0755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	stagingDir, err := os.MkdirTemp(r.tempDir, "export-"+job.VideoID+"-")
	if err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	audioPath, err := r.resolveAudio(ctx, job.AudioRef, stagingDir)
	if err != nil {
		return "", err
	}

	duration, err := r.prober.DurationFromFile(ctx, audioPath)
	if err != nil {
		if media.IsNotFound(err) {
			return "", fmt.Errorf("%w: %v", ErrToolUnavailable, err)
		}
		return "", fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
	}
	if duration <= 0 {
		return "", fmt.Errorf("%w: zero-length audio", ErrAudioUnavailable)
	}

	// The zero-padded filename series IS the timeline: the encoder has
	// no other ordering concept.
	if err := r.materializeImages(ctx, job.ImageRefs, stagingDir); err != nil {
		return "", err
	}

	perImageDuration := duration / float64(len(job.ImageRefs))
	inputFramerate := strconv.FormatFloat(1/perImageDuration, 'f', -1, 64)

	tmpOutput := outputPath + ".partial-" + uuid.NewString()
	args := []string{
		"-y",
		"-framerate", inputFramerate,
		"-i", filepath.Join(stagingDir, "image_%03d.jpg"),
		"-i", audioPath,
		"-c:v", "libx264",
		"-preset", "medium",
		"-c:a", "aac",
		"-b:a", "128k",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-shortest",
		"-r", "30",
		"-s", "1920x1080",
		"-vf", "scale=1920:1080:force_original_aspect_ratio=decrease,pad=1920:1080:(ow-iw)/2:(oh-ih)/2",
		tmpOutput,
	}

	log.Printf("[export] encoding %s: %d images over %.2fs of audio", job.VideoID, len(job.ImageRefs), duration)
	if _, err := r.runner.Run(ctx, r.ffmpegPath, args...); err != nil {
		os.Remove(tmpOutput)
		if media.IsNotFound(err) {
			return "", fmt.Errorf("%w: %v", ErrToolUnavailable, err)
		}
		return "", fmt.Errorf("encode %s: %w", job.VideoID, err)
	}

	// Exit code 0 with a missing or empty file is still a failure.
	info, err := os.Stat(tmpOutput)
	if err != nil {
		return "", fmt.Errorf("encode %s: output file was not created", job.VideoID)
	}
	if info.Size() == 0 {
		os.Remove(tmpOutput)
		return "", fmt.Errorf("encode %s: output file was created but is empty", job.VideoID)
	}

	if err := os.Rename(tmpOutput, outputPath); err != nil {
		os.Remove(tmpOutput)
		return "", fmt.Errorf("publish output for %s: %w", job.VideoID, err)
	}

	log.Printf("[export] %s exported successfully", job.VideoID)
	return r.VideoURL(job.VideoID), nil
}

// resolveAudio makes the audio ref playable from the local filesystem.
// Remote refs are downloaded into the staging dir. Audio failures are
// fatal for the export.
func (r *Renderer) resolveAudio(ctx context.Context, ref, stagingDir string) (string, error) {
	if !isRemote(ref) {
		if !fileExists(ref) {
			return "", fmt.Errorf("%w: audio file not found: %s", ErrAudioUnavailable, ref)
		}
		return ref, nil
	}

	dest := filepath.Join(stagingDir, "audio"+pathExt(ref, ".wav"))
	if err := r.download(ctx, ref, dest); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
	}
	return dest, nil
}

// materializeImages writes the ordered image series into the staging
// dir. A slot whose source cannot be fetched gets the built-in
// placeholder instead of aborting the export.
func (r *Renderer) materializeImages(ctx context.Context, refs []string, stagingDir string) error {
	for i, ref := range refs {
		dest := filepath.Join(stagingDir, fmt.Sprintf("image_%03d.jpg", i))
		if err := r.fetchImage(ctx, ref, dest); err != nil {
			log.Printf("[export] image %d (%s) failed: %v, substituting placeholder", i, ref, err)
			if err := os.WriteFile(dest, placeholderImage, 0644); err != nil {
				return fmt.Errorf("write placeholder for image %d: %w", i, err)
			}
		}
	}
	return nil
}

func (r *Renderer) fetchImage(ctx context.Context, ref, dest string) error {
	if !isRemote(ref) {
		data, err := os.ReadFile(ref)
		if err != nil {
			return err
		}
		return os.WriteFile(dest, data, 0644)
	}
	return r.download(ctx, ref, dest)
}

func (r *Renderer) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func isRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

func pathExt(ref, fallback string) string {
	ext := filepath.Ext(ref)
	if ext == "" || strings.ContainsAny(ext, "?&") {
		return fallback
	}
	return ext
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}
