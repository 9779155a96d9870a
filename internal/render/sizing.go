package render

import "math"

// Size is a pixel dimension pair.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether either side is non-positive.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Viewport is the GPU viewport rectangle in destination pixels.
type Viewport struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Bucket is one of the canonical recording aspect ratios.
type Bucket int

const (
	Bucket3x4 Bucket = iota
	Bucket3x5
	Bucket9x16
)

func (b Bucket) String() string {
	switch b {
	case Bucket3x4:
		return "3:4"
	case Bucket3x5:
		return "3:5"
	case Bucket9x16:
		return "9:16"
	default:
		return "unknown"
	}
}

// Bucket decision thresholds. Empirical; must stay float32 so comparisons
// land exactly where the recorder has always put them.
const (
	thresholdLow    float32 = 1.44 // 4:3 <-> 5:3
	thresholdCenter float32 = 1.55 // 4:3 <-> 16:9
	thresholdHigh   float32 = 1.72 // 5:3 <-> 16:9
)

// MaxLandscapeRecordingWidth caps landscape recordings.
const MaxLandscapeRecordingWidth = 1280

// Base returns the base resolution of the bucket for the given orientation.
// Recording sizes are always an integer multiple of it.
func (b Bucket) Base(portrait bool) Size {
	switch b {
	case Bucket9x16:
		if portrait {
			return Size{Width: 320, Height: 560}
		}
		return Size{Width: 320, Height: 180}
	case Bucket3x5:
		if portrait {
			return Size{Width: 320, Height: 532}
		}
		return Size{Width: 320, Height: 192}
	default:
		if portrait {
			return Size{Width: 320, Height: 426}
		}
		return Size{Width: 320, Height: 240}
	}
}

// cappedLandscapeHeight is the height paired with MaxLandscapeRecordingWidth.
func (b Bucket) cappedLandscapeHeight() int {
	switch b {
	case Bucket9x16:
		return 720
	case Bucket3x5:
		return 768
	default:
		return 960
	}
}

// diff measures ar against a threshold, mirrored for portrait sources.
func diff(ar float32, threshold float32, portrait bool) float64 {
	if portrait {
		return float64(ar) - 1.0/float64(threshold)
	}
	return float64(ar - threshold)
}

// SelectBucket picks the aspect-ratio bucket for a source resolution.
// Square sources count as landscape.
func SelectBucket(width, height int) (bucket Bucket, portrait bool) {
	ar := float32(width) / float32(height)
	portrait = ar < 1

	center := diff(ar, thresholdCenter, portrait)
	low := diff(ar, thresholdLow, portrait)
	high := diff(ar, thresholdHigh, portrait)

	if portrait {
		switch {
		case center > 0 && low > 0:
			return Bucket3x4, true
		case center > 0:
			return Bucket3x5, true
		case high > 0:
			return Bucket3x5, true
		default:
			return Bucket9x16, true
		}
	}

	switch {
	case center < 0 && low < 0:
		return Bucket3x4, false
	case center < 0:
		return Bucket3x5, false
	case high < 0:
		return Bucket3x5, false
	default:
		return Bucket9x16, false
	}
}

func ceilDiv(n, d int) int {
	return int(math.Ceil(float64(float32(n) / float32(d))))
}

// ComputeRecordingSize maps a source resolution to the encoder resolution.
// The result is the smallest multiple of the bucket base covering the source
// on both axes. Landscape results wider than MaxLandscapeRecordingWidth are
// clamped; portrait results are not.
func ComputeRecordingSize(width, height int) Size {
	if width <= 0 || height <= 0 {
		return Size{}
	}

	bucket, portrait := SelectBucket(width, height)
	base := bucket.Base(portrait)
	k := max(ceilDiv(width, base.Width), ceilDiv(height, base.Height))
	out := Size{Width: base.Width * k, Height: base.Height * k}

	// TODO: portrait clamp (960/768/720 wide at 1280 tall) stays disabled until
	// product confirms recorders accept portrait frames taller than 1280.
	if !portrait && out.Width > MaxLandscapeRecordingWidth {
		out.Width = MaxLandscapeRecordingWidth
		out.Height = bucket.cappedLandscapeHeight()
	}
	return out
}

// FullViewport covers the whole target.
func FullViewport(target Size) Viewport {
	return Viewport{Width: target.Width, Height: target.Height}
}

// LetterboxViewport fits video into target without distortion, splitting the
// unused margin evenly. Odd margins leave a 1px residual on the far side.
func LetterboxViewport(video, target Size) Viewport {
	if video.Empty() || target.Empty() {
		return FullViewport(target)
	}

	videoAR := float32(video.Width) / float32(video.Height)
	targetAR := float32(target.Width) / float32(target.Height)

	if videoAR > targetAR {
		h := int(float32(target.Width) / videoAR)
		return Viewport{
			X:      0,
			Y:      (target.Height - h) / 2,
			Width:  target.Width,
			Height: h,
		}
	}
	w := int(float32(target.Height) * videoAR)
	return Viewport{
		X:      (target.Width - w) / 2,
		Y:      0,
		Width:  w,
		Height: target.Height,
	}
}
