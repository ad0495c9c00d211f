package timeline

import "math"

// FrameRate is the fixed output frame rate for previews and exports.
const FrameRate = 30

// Phase selects which direction a segment's zoom curve runs.
type Phase int

const (
	// ZoomInOut scales 1.0 -> 1.8 -> 1.0 across the segment.
	ZoomInOut Phase = iota
	// ZoomOutIn scales 1.8 -> 1.0 -> 1.8 across the segment.
	ZoomOutIn
)

const (
	scaleMin = 1.0
	scaleMax = 1.8
)

// Segment is one image's contiguous frame range within the timeline.
type Segment struct {
	AssetIndex int
	StartFrame int
	SpanFrames int
	Phase      Phase
}

// Timeline is the derived frame schedule for one audio track and an
// ordered image list. It is recomputed from its inputs, never persisted.
type Timeline struct {
	TotalFrames int
	Segments    []Segment
}

// FramesForDuration converts an audio duration in seconds to a frame
// count at the fixed frame rate.
func FramesForDuration(seconds float64) int {
	if seconds <= 0 {
		return 0
	}
	return int(math.Round(seconds * FrameRate))
}

// Build computes the schedule for assetCount images over totalFrames
// frames. Each segment's start is floored independently from the exact
// per-index division so rounding never drifts across segments; the last
// segment absorbs the remainder. Consecutive segments alternate zoom
// phase by index parity.
//
// With totalFrames < assetCount some spans round down to zero frames;
// such segments are valid but never active at any playhead position.
func Build(assetCount, totalFrames int) Timeline {
	if assetCount <= 0 || totalFrames < 0 {
		return Timeline{}
	}

	segments := make([]Segment, assetCount)
	for i := 0; i < assetCount; i++ {
		start := frameAt(i, assetCount, totalFrames)
		end := frameAt(i+1, assetCount, totalFrames)

		phase := ZoomInOut
		if i%2 != 0 {
			phase = ZoomOutIn
		}

		segments[i] = Segment{
			AssetIndex: i,
			StartFrame: start,
			SpanFrames: end - start,
			Phase:      phase,
		}
	}

	return Timeline{
		TotalFrames: totalFrames,
		Segments:    segments,
	}
}

func frameAt(index, assetCount, totalFrames int) int {
	return int(math.Floor(float64(index) * float64(totalFrames) / float64(assetCount)))
}

// SegmentAt resolves which segment is active at the given frame.
// Zero-span segments are skipped. Returns false when the timeline is
// empty or the frame is outside [0, TotalFrames).
func (t Timeline) SegmentAt(frame int) (Segment, bool) {
	if frame < 0 || frame >= t.TotalFrames {
		return Segment{}, false
	}
	for i := len(t.Segments) - 1; i >= 0; i-- {
		seg := t.Segments[i]
		if seg.StartFrame <= frame && frame < seg.StartFrame+seg.SpanFrames {
			return seg, true
		}
	}
	return Segment{}, false
}

// ScaleAt returns the zoom factor at the given frame, interpolated
// piecewise-linearly across the segment start, midpoint and end, and
// clamped outside the segment.
func (s Segment) ScaleAt(frame int) float64 {
	start := float64(s.StartFrame)
	mid := start + float64(s.SpanFrames)/2
	end := start + float64(s.SpanFrames)

	var points [3]float64
	if s.Phase == ZoomInOut {
		points = [3]float64{scaleMin, scaleMax, scaleMin}
	} else {
		points = [3]float64{scaleMax, scaleMin, scaleMax}
	}

	f := float64(frame)
	switch {
	case f <= start || s.SpanFrames == 0:
		return points[0]
	case f >= end:
		return points[2]
	case f < mid:
		return lerp(points[0], points[1], (f-start)/(mid-start))
	case f == mid:
		return points[1]
	default:
		return lerp(points[1], points[2], (f-mid)/(end-mid))
	}
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
