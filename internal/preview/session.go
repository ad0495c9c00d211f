package preview

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"clipforge-backend/internal/models"
	"clipforge-backend/internal/timeline"
)

var (
	ErrNoAssets     = errors.New("session has no visual assets")
	ErrFrameOutside = errors.New("frame outside timeline")
	ErrBadIndex     = errors.New("image index out of range")
)

// DurationProber resolves audio durations for the session. Satisfied by
// media.Prober.
type DurationProber interface {
	DurationFromFile(ctx context.Context, path string) (float64, error)
	DurationFromURL(ctx context.Context, url string) (float64, error)
}

// ObjectStore uploads raw bytes to durable storage and returns a public
// URL. Satisfied by supabase.StorageClient.
type ObjectStore interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

// CommittedState is the fully-resolved asset set a successful commit
// produces, ready to persist.
type CommittedState struct {
	Images   []string
	AudioURL string
}

// CommitError reports which staged upload failed. ImageIndex is -1 when
// the staged audio upload failed. Uploads that completed before the
// failure are durable objects not referenced anywhere persisted; they
// are not rolled back.
type CommitError struct {
	ImageIndex int
	Err        error
}

func (e *CommitError) Error() string {
	if e.ImageIndex < 0 {
		return fmt.Sprintf("commit: audio upload failed: %v", e.Err)
	}
	return fmt.Sprintf("commit: image %d upload failed: %v", e.ImageIndex, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// Frame is the resolved render state at one playhead position.
type Frame struct {
	Frame       int
	AssetIndex  int
	Image       Asset
	Scale       float64
	AudioSource string
	TotalFrames int
}

// State is a snapshot of session-level playback state.
type State struct {
	TotalFrames int
	ImageCount  int
	Pending     bool
}

// Session is one video's live edit state: the persisted asset list plus
// staged replacements, and the timeline derived from the effective
// audio. Staged edits are visible only through the session; export
// always reads persisted state.
type Session struct {
	ID      uuid.UUID
	VideoID uuid.UUID

	prober DurationProber
	store  ObjectStore

	mu              sync.Mutex
	persistedImages []string
	persistedAudio  string
	stagedImages    map[int]Asset
	stagedAudio     *Asset
	audioHandle     *tempHandle

	tl             timeline.Timeline
	lastGoodFrames int
	pending        bool
	probeGen       uint64
}

func NewSession(video *models.Video, prober DurationProber, store ObjectStore) *Session {
	return &Session{
		ID:              uuid.New(),
		VideoID:         video.ID,
		prober:          prober,
		store:           store,
		persistedImages: append([]string(nil), video.Images...),
		persistedAudio:  video.AudioURL.String,
		stagedImages:    make(map[int]Asset),
	}
}

// RefreshDuration probes the effective audio source and rebuilds the
// timeline. A failed probe keeps the last-known-good frame count so the
// preview keeps rendering something.
func (s *Session) RefreshDuration(ctx context.Context) error {
	s.mu.Lock()
	s.probeGen++
	gen := s.probeGen
	s.pending = true
	probe := s.probeFuncLocked()
	s.mu.Unlock()

	seconds, err := probe(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyProbeLocked(gen, seconds, err)
	return err
}

// probeFuncLocked snapshots the effective audio source so the probe can
// run without holding the lock.
func (s *Session) probeFuncLocked() func(context.Context) (float64, error) {
	if s.audioHandle != nil {
		path := s.audioHandle.Path()
		return func(ctx context.Context) (float64, error) {
			return s.prober.DurationFromFile(ctx, path)
		}
	}
	url := s.persistedAudio
	return func(ctx context.Context) (float64, error) {
		if url == "" {
			return 0, fmt.Errorf("no audio source")
		}
		return s.prober.DurationFromURL(ctx, url)
	}
}

// applyProbeLocked applies a probe result unless a newer edit has
// superseded it (last write wins by edit, not by completion order).
func (s *Session) applyProbeLocked(gen uint64, seconds float64, err error) {
	if gen != s.probeGen {
		return
	}
	s.pending = false
	if err != nil {
		log.Printf("[preview] duration probe failed for video %s: %v (keeping %d frames)",
			s.VideoID, err, s.lastGoodFrames)
		s.tl = timeline.Build(len(s.persistedImages), s.lastGoodFrames)
		return
	}
	s.lastGoodFrames = timeline.FramesForDuration(seconds)
	s.tl = timeline.Build(len(s.persistedImages), s.lastGoodFrames)
}

// scheduleRefreshLocked starts a background probe for the current
// effective audio. Caller holds the lock.
func (s *Session) scheduleRefreshLocked() {
	s.probeGen++
	gen := s.probeGen
	s.pending = true
	probe := s.probeFuncLocked()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
		defer cancel()
		seconds, err := probe(ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.applyProbeLocked(gen, seconds, err)
	}()
}

// StageImage replaces the image at index for preview purposes only.
func (s *Session) StageImage(index int, data []byte, mimeType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.persistedImages) {
		return ErrBadIndex
	}
	s.stagedImages[index] = Staged(data, mimeType)
	return nil
}

// DeleteImage stages the built-in placeholder at index.
func (s *Session) DeleteImage(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.persistedImages) {
		return ErrBadIndex
	}
	s.stagedImages[index] = Placeholder()
	return nil
}

// DiscardImage reverts index to its persisted asset.
func (s *Session) DiscardImage(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.persistedImages) {
		return ErrBadIndex
	}
	delete(s.stagedImages, index)
	return nil
}

// StagedImage returns the staged replacement at index, if any.
func (s *Session) StagedImage(index int) (Asset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	asset, ok := s.stagedImages[index]
	return asset, ok
}

// StageAudio replaces the audio for preview purposes only. The staged
// bytes get a playable temporary handle; any prior staged handle is
// released, and the duration probe re-runs in the background.
func (s *Session) StageAudio(data []byte, mimeType string) error {
	handle, err := newTempHandle(data, "staged-audio-*.audio")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioHandle.Release()
	s.audioHandle = handle
	asset := Staged(data, mimeType)
	s.stagedAudio = &asset
	s.scheduleRefreshLocked()
	return nil
}

// DiscardAudio reverts to the persisted audio source.
func (s *Session) DiscardAudio() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stagedAudio == nil {
		return
	}
	s.audioHandle.Release()
	s.audioHandle = nil
	s.stagedAudio = nil
	s.scheduleRefreshLocked()
}

// FrameAt resolves the active asset, its zoom scale and the effective
// audio source at the given playhead frame.
func (s *Session) FrameAt(frame int) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.persistedImages) == 0 {
		return Frame{}, ErrNoAssets
	}

	seg, ok := s.tl.SegmentAt(frame)
	if !ok {
		return Frame{}, ErrFrameOutside
	}

	return Frame{
		Frame:       frame,
		AssetIndex:  seg.AssetIndex,
		Image:       s.effectiveImageLocked(seg.AssetIndex),
		Scale:       seg.ScaleAt(frame),
		AudioSource: s.effectiveAudioLocked(),
		TotalFrames: s.tl.TotalFrames,
	}, nil
}

func (s *Session) effectiveImageLocked(index int) Asset {
	if staged, ok := s.stagedImages[index]; ok {
		return staged
	}
	return Persisted(s.persistedImages[index])
}

func (s *Session) effectiveAudioLocked() string {
	if s.audioHandle != nil {
		return s.audioHandle.Path()
	}
	return s.persistedAudio
}

// Snapshot reports playback state for the host so external transport
// controls can rescale while probes are in flight.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		TotalFrames: s.tl.TotalFrames,
		ImageCount:  len(s.persistedImages),
		Pending:     s.pending,
	}
}

// Commit uploads every staged image and the staged audio (if any)
// concurrently and returns the fully-resolved asset set. On failure the
// first error identifies the failed index; uploads that already
// completed are not rolled back. Commit does not mutate the session;
// call ApplyCommitted once the resolved state has been persisted.
func (s *Session) Commit(ctx context.Context) (CommittedState, error) {
	s.mu.Lock()
	images := make([]string, len(s.persistedImages))
	copy(images, s.persistedImages)
	staged := make(map[int]Asset, len(s.stagedImages))
	for i, a := range s.stagedImages {
		staged[i] = a
	}
	var audio *Asset
	if s.stagedAudio != nil {
		a := *s.stagedAudio
		audio = &a
	}
	audioURL := s.persistedAudio
	s.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)

	for index, asset := range staged {
		index, asset := index, asset
		if asset.IsPlaceholder() {
			images[index] = PlaceholderImageURL
			continue
		}
		g.Go(func() error {
			url, err := s.store.Upload(ctx, asset.Bytes(), asset.MimeType())
			if err != nil {
				return &CommitError{ImageIndex: index, Err: err}
			}
			// Indices are distinct per goroutine.
			images[index] = url
			return nil
		})
	}

	if audio != nil {
		g.Go(func() error {
			url, err := s.store.Upload(ctx, audio.Bytes(), audio.MimeType())
			if err != nil {
				return &CommitError{ImageIndex: -1, Err: err}
			}
			audioURL = url
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return CommittedState{}, err
	}

	return CommittedState{Images: images, AudioURL: audioURL}, nil
}

// ApplyCommitted adopts the committed state as the session's persisted
// baseline, discards all staged edits and re-probes the (possibly new)
// audio source.
func (s *Session) ApplyCommitted(committed CommittedState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistedImages = append([]string(nil), committed.Images...)
	s.persistedAudio = committed.AudioURL
	s.stagedImages = make(map[int]Asset)
	s.stagedAudio = nil
	s.audioHandle.Release()
	s.audioHandle = nil
	s.scheduleRefreshLocked()
}

// Close tears the session down and releases any staged handles.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probeGen++ // discard any in-flight probe result
	s.audioHandle.Release()
	s.audioHandle = nil
	s.stagedAudio = nil
	s.stagedImages = make(map[int]Asset)
}
