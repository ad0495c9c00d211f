package export

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	exportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clipforge_export_duration_seconds",
		Help:    "Duration of video exports in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	exportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipforge_exports_total",
		Help: "Total number of video exports",
	}, []string{"status"})
)

// VideoRenderer is the encode backend the coordinator serializes.
type VideoRenderer interface {
	Render(ctx context.Context, job Job) (string, error)
	OutputPath(videoID string) string
}

type inFlight struct {
	done chan struct{}
	url  string
	err  error
}

// Coordinator serializes exports per video id: a second request for an
// id already in flight waits for that run's result instead of invoking
// the encoder again. The in-flight map is inserted on start and removed
// on settle, and lives only as long as the coordinator.
type Coordinator struct {
	renderer VideoRenderer

	mu      sync.Mutex
	running map[string]*inFlight
}

func NewCoordinator(renderer VideoRenderer) *Coordinator {
	return &Coordinator{
		renderer: renderer,
		running:  make(map[string]*inFlight),
	}
}

// Export renders the job, joining an in-flight run for the same video
// id when one exists. force removes a previously cached artifact first,
// since the cache keys on video id alone and would otherwise return a
// stale file after the project's assets changed.
func (c *Coordinator) Export(ctx context.Context, job Job, force bool) (string, error) {
	c.mu.Lock()
	if run, ok := c.running[job.VideoID]; ok {
		c.mu.Unlock()
		select {
		case <-run.done:
			return run.url, run.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	run := &inFlight{done: make(chan struct{})}
	c.running[job.VideoID] = run
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.running, job.VideoID)
		c.mu.Unlock()
	}()

	if force {
		os.Remove(c.renderer.OutputPath(job.VideoID))
	}

	start := time.Now()
	url, err := c.renderer.Render(ctx, job)

	status := "success"
	if err != nil {
		status = "error"
	}
	exportDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	exportsTotal.WithLabelValues(status).Inc()

	run.url, run.err = url, err
	close(run.done)
	return url, err
}
