package export_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipforge-backend/internal/export"
	"clipforge-backend/internal/media"
)

// encoderFake plays both tools: ffprobe answers with a canned duration,
// ffmpeg writes the output file named by its final argument and records
// what the staging dir contained at encode time.
type encoderFake struct {
	mu            sync.Mutex
	probeOut      string
	encodeOutput  []byte
	missingTools  map[string]bool
	ffmpegCalls   int
	ffmpegArgs    []string
	stagedFiles   []string
	encodeFailErr error
}

func (f *encoderFake) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if name == "ffprobe" {
		return []byte(f.probeOut), nil
	}

	f.ffmpegCalls++
	f.ffmpegArgs = append([]string(nil), args...)
	if f.encodeFailErr != nil {
		return nil, f.encodeFailErr
	}

	// Snapshot the image series the encoder would consume.
	for i, arg := range args {
		if arg == "-i" && strings.Contains(args[i+1], "image_%03d") {
			matches, _ := filepath.Glob(filepath.Join(filepath.Dir(args[i+1]), "image_*.jpg"))
			f.stagedFiles = matches
		}
	}

	output := args[len(args)-1]
	if err := os.WriteFile(output, f.encodeOutput, 0644); err != nil {
		return nil, err
	}
	return nil, nil
}

func (f *encoderFake) LookPath(name string) (string, error) {
	if f.missingTools[name] {
		return "", errors.New("executable file not found in $PATH")
	}
	return "/usr/bin/" + name, nil
}

func newTestRenderer(t *testing.T, fake *encoderFake) *export.Renderer {
	t.Helper()
	prober := media.NewProber(fake, "")
	return export.NewRenderer(fake, prober, "", filepath.Join(t.TempDir(), "exports"), filepath.Join(t.TempDir(), "tmp"))
}

func writeFixture(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestRenderer_Render(t *testing.T) {
	fake := &encoderFake{probeOut: "6.0\n", encodeOutput: []byte("encoded video")}
	renderer := newTestRenderer(t, fake)

	audio := writeFixture(t, "speech.wav", []byte("audio"))
	images := []string{
		writeFixture(t, "a.jpg", []byte("img-a")),
		writeFixture(t, "b.jpg", []byte("img-b")),
		writeFixture(t, "c.jpg", []byte("img-c")),
	}

	url, err := renderer.Render(context.Background(), export.Job{
		VideoID:   "vid-1",
		AudioRef:  audio,
		ImageRefs: images,
		Title:     "test",
	})

	require.NoError(t, err)
	assert.Equal(t, "/exports/vid-1.mp4", url)
	assert.Equal(t, 1, fake.ffmpegCalls)

	// Output landed at the deterministic path, non-empty.
	data, err := os.ReadFile(renderer.OutputPath("vid-1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("encoded video"), data)

	// Zero-padded ordered series, one file per input image.
	require.Len(t, fake.stagedFiles, 3)
	assert.Contains(t, fake.stagedFiles[0], "image_000.jpg")
	assert.Contains(t, fake.stagedFiles[2], "image_002.jpg")

	// Input frame rate derives from audio duration / image count:
	// 6s / 3 images = 2s per image = 0.5 fps in.
	args := strings.Join(fake.ffmpegArgs, " ")
	assert.Contains(t, args, "-framerate 0.5")
	assert.Contains(t, args, "-shortest")
	assert.Contains(t, args, "-r 30")
	assert.Contains(t, args, "scale=1920:1080:force_original_aspect_ratio=decrease")

	// Staging dir cleaned up.
	for _, staged := range fake.stagedFiles {
		_, statErr := os.Stat(staged)
		assert.True(t, os.IsNotExist(statErr))
	}
}

func TestRenderer_CacheIdempotence(t *testing.T) {
	fake := &encoderFake{probeOut: "2.0", encodeOutput: []byte("encoded")}
	renderer := newTestRenderer(t, fake)

	audio := writeFixture(t, "speech.wav", []byte("audio"))
	job := export.Job{VideoID: "vid-2", AudioRef: audio, ImageRefs: []string{writeFixture(t, "a.jpg", []byte("img"))}}

	first, err := renderer.Render(context.Background(), job)
	require.NoError(t, err)

	second, err := renderer.Render(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, fake.ffmpegCalls, "second export must hit the cache, not the encoder")
}

func TestRenderer_PlaceholderSubstitution(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fake := &encoderFake{probeOut: "3.0", encodeOutput: []byte("encoded")}
	renderer := newTestRenderer(t, fake)

	audio := writeFixture(t, "speech.wav", []byte("audio"))
	images := []string{
		writeFixture(t, "a.jpg", []byte("img-a")),
		server.URL + "/unreachable.jpg",
		writeFixture(t, "c.jpg", []byte("img-c")),
	}

	url, err := renderer.Render(context.Background(), export.Job{
		VideoID:   "vid-3",
		AudioRef:  audio,
		ImageRefs: images,
	})

	require.NoError(t, err, "one bad image must not abort the export")
	assert.Equal(t, "/exports/vid-3.mp4", url)
	assert.Len(t, fake.stagedFiles, 3, "no visual slot may be dropped")
}

func TestRenderer_AudioMissingIsFatal(t *testing.T) {
	fake := &encoderFake{probeOut: "3.0", encodeOutput: []byte("encoded")}
	renderer := newTestRenderer(t, fake)

	_, err := renderer.Render(context.Background(), export.Job{
		VideoID:   "vid-4",
		AudioRef:  "/nonexistent/audio.wav",
		ImageRefs: []string{writeFixture(t, "a.jpg", []byte("img"))},
	})

	assert.ErrorIs(t, err, export.ErrAudioUnavailable)
	assert.Equal(t, 0, fake.ffmpegCalls)
}

func TestRenderer_ToolUnavailable(t *testing.T) {
	fake := &encoderFake{probeOut: "3.0", missingTools: map[string]bool{"ffmpeg": true}}
	renderer := newTestRenderer(t, fake)

	_, err := renderer.Render(context.Background(), export.Job{
		VideoID:   "vid-5",
		AudioRef:  writeFixture(t, "speech.wav", []byte("audio")),
		ImageRefs: []string{writeFixture(t, "a.jpg", []byte("img"))},
	})

	assert.ErrorIs(t, err, export.ErrToolUnavailable)
}

func TestRenderer_EmptyOutputIsFailure(t *testing.T) {
	fake := &encoderFake{probeOut: "3.0", encodeOutput: []byte{}}
	renderer := newTestRenderer(t, fake)

	_, err := renderer.Render(context.Background(), export.Job{
		VideoID:   "vid-6",
		AudioRef:  writeFixture(t, "speech.wav", []byte("audio")),
		ImageRefs: []string{writeFixture(t, "a.jpg", []byte("img"))},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
	_, statErr := os.Stat(renderer.OutputPath("vid-6"))
	assert.True(t, os.IsNotExist(statErr), "no artifact may be published for an empty encode")
}

func TestRenderer_RejectsIncompleteJob(t *testing.T) {
	fake := &encoderFake{probeOut: "3.0"}
	renderer := newTestRenderer(t, fake)

	_, err := renderer.Render(context.Background(), export.Job{VideoID: "vid-7"})
	assert.ErrorIs(t, err, export.ErrInvalidJob)

	_, err = renderer.Render(context.Background(), export.Job{VideoID: "vid-7", AudioRef: "a.wav"})
	assert.ErrorIs(t, err, export.ErrInvalidJob)
}
