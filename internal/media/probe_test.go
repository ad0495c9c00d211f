package media_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"clipforge-backend/internal/media"
)

// fakeRunner records invocations and plays back canned output.
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	out   []byte
	err   error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.out, f.err
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	return "/usr/bin/" + name, nil
}

func TestProber_DurationFromFile(t *testing.T) {
	runner := &fakeRunner{out: []byte("12.345600\n")}
	prober := media.NewProber(runner, "")

	duration, err := prober.DurationFromFile(context.Background(), "/tmp/speech.wav")

	assert.NoError(t, err)
	assert.InDelta(t, 12.3456, duration, 1e-9)

	assert.Len(t, runner.calls, 1)
	assert.Equal(t, []string{
		"ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		"/tmp/speech.wav",
	}, runner.calls[0])
}

func TestProber_DurationFromFile_Unparseable(t *testing.T) {
	runner := &fakeRunner{out: []byte("N/A\n")}
	prober := media.NewProber(runner, "")

	_, err := prober.DurationFromFile(context.Background(), "/tmp/speech.wav")

	assert.ErrorIs(t, err, media.ErrUnloadable)
}

func TestProber_DurationFromFile_ProbeFails(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exit status 1")}
	prober := media.NewProber(runner, "")

	_, err := prober.DurationFromFile(context.Background(), "/tmp/not-audio.txt")

	assert.ErrorIs(t, err, media.ErrUnloadable)
}

func TestProber_DurationFromFile_ToolMissing(t *testing.T) {
	runner := &fakeRunner{err: &exec.Error{Name: "ffprobe", Err: exec.ErrNotFound}}
	prober := media.NewProber(runner, "")

	_, err := prober.DurationFromFile(context.Background(), "/tmp/speech.wav")

	assert.True(t, media.IsNotFound(err))
	assert.NotErrorIs(t, err, media.ErrUnloadable)
}

func TestProber_DurationFromBytes_RemovesTempFile(t *testing.T) {
	runner := &fakeRunner{out: []byte("3.0")}
	prober := media.NewProber(runner, "")

	duration, err := prober.DurationFromBytes(context.Background(), []byte("RIFF...."))

	assert.NoError(t, err)
	assert.InDelta(t, 3.0, duration, 1e-9)

	// The probed path was a temp file and must be gone afterwards.
	assert.Len(t, runner.calls, 1)
	probedPath := runner.calls[0][len(runner.calls[0])-1]
	_, statErr := os.Stat(probedPath)
	assert.True(t, os.IsNotExist(statErr), "temp probe file %s should be removed", probedPath)
}

func TestProber_DurationFromURL_LocalPath(t *testing.T) {
	runner := &fakeRunner{out: []byte("7.5")}
	prober := media.NewProber(runner, "")

	duration, err := prober.DurationFromURL(context.Background(), "/exports/speech.wav")

	assert.NoError(t, err)
	assert.InDelta(t, 7.5, duration, 1e-9)
	assert.Equal(t, "/exports/speech.wav", runner.calls[0][len(runner.calls[0])-1])
}

func TestProber_DurationFromURL_Remote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake audio bytes"))
	}))
	defer server.Close()

	runner := &fakeRunner{out: []byte("9.25")}
	prober := media.NewProber(runner, "")

	duration, err := prober.DurationFromURL(context.Background(), server.URL+"/speech.wav")

	assert.NoError(t, err)
	assert.InDelta(t, 9.25, duration, 1e-9)
}

func TestProber_DurationFromURL_RemoteMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	prober := media.NewProber(&fakeRunner{}, "")

	_, err := prober.DurationFromURL(context.Background(), server.URL+"/gone.wav")

	assert.ErrorIs(t, err, media.ErrUnloadable)
}
