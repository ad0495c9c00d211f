package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrUnloadable means the source could not be parsed as audio.
var ErrUnloadable = errors.New("audio source is not loadable")

// Prober resolves the playable duration of an audio source by reading
// container metadata through ffprobe. No decoding happens.
type Prober struct {
	runner      CommandRunner
	ffprobePath string
	httpClient  *http.Client
}

func NewProber(runner CommandRunner, ffprobePath string) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{
		runner:      runner,
		ffprobePath: ffprobePath,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
}

// DurationFromFile probes a local audio file and returns its duration
// in seconds.
func (p *Prober) DurationFromFile(ctx context.Context, path string) (float64, error) {
	out, err := p.runner.Run(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path,
	)
	if err != nil {
		if IsNotFound(err) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", ErrUnloadable, err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unparseable ffprobe output %q", ErrUnloadable, strings.TrimSpace(string(out)))
	}
	return duration, nil
}

// DurationFromBytes probes an in-memory audio buffer. The buffer is
// staged to a temporary file for the probe and the file is removed
// before returning, success or not.
func (p *Prober) DurationFromBytes(ctx context.Context, data []byte) (float64, error) {
	tmp, err := os.CreateTemp("", "probe-*.audio")
	if err != nil {
		return 0, fmt.Errorf("create probe temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write probe temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close probe temp file: %w", err)
	}

	return p.DurationFromFile(ctx, tmp.Name())
}

// DurationFromURL probes a remote or local audio source. Remote sources
// are downloaded fresh to a temporary file each time so a replaced
// upload at the same URL is never probed from a stale copy.
func (p *Prober) DurationFromURL(ctx context.Context, url string) (float64, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return p.DurationFromFile(ctx, url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnloadable, err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: fetch %s: %v", ErrUnloadable, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: fetch %s: status %d", ErrUnloadable, url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %v", ErrUnloadable, url, err)
	}
	return p.DurationFromBytes(ctx, data)
}
