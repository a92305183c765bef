package detection

// Engine tuning constants. The reference alpha and the absolute region
// floor are fixed; everything per-call arrives through Options.
const (
	// referenceAlpha is the EMA weight of the current frame when folding
	// it into the adaptive baseline.
	referenceAlpha = 0.1

	// minRegionExtentArea is the absolute pixel-footprint floor (in px^2 of
	// bounding-box extent) below which a region is discarded. Independent
	// of MinAreaFraction, which gates on the fraction of the whole frame.
	minRegionExtentArea = 100

	// historyCapacity bounds the motion event history.
	historyCapacity = 100

	// recentEventWindow is the trailing window for the recent-events count.
	recentEventWindow = 60 // seconds

	DefaultThreshold       = 25.0
	MinThreshold           = 1.0
	MaxThreshold           = 100.0
	DefaultMinAreaFraction = 0.01
	MinMinAreaFraction     = 0.001
	MaxMinAreaFraction     = 0.5
	DefaultBlurKernelSize  = 5
)

// Options are the per-call analysis parameters. They are ephemeral: the
// detector never stores them. Zero values select the documented defaults;
// out-of-range values are clamped into the recognized ranges. A
// BlurKernelSize of 1 disables blurring.
type Options struct {
	// Threshold is the per-pixel intensity-difference cutoff (1.0-100.0).
	Threshold float32
	// MinAreaFraction is the fraction of total pixels that must differ for
	// motion to count (0.001-0.5).
	MinAreaFraction float32
	// BlurKernelSize is the Gaussian kernel length; values <= 1 skip the
	// blur stage entirely.
	BlurKernelSize uint32
	// ForceRebaseline discards the current reference and adopts this frame
	// as the new baseline.
	ForceRebaseline bool
}

// normalized applies defaults for unset fields and clamps the rest into
// their recognized ranges.
func (o Options) normalized() Options {
	if o.Threshold == 0 {
		o.Threshold = DefaultThreshold
	} else if o.Threshold < MinThreshold {
		o.Threshold = MinThreshold
	} else if o.Threshold > MaxThreshold {
		o.Threshold = MaxThreshold
	}

	if o.MinAreaFraction == 0 {
		o.MinAreaFraction = DefaultMinAreaFraction
	} else if o.MinAreaFraction < MinMinAreaFraction {
		o.MinAreaFraction = MinMinAreaFraction
	} else if o.MinAreaFraction > MaxMinAreaFraction {
		o.MinAreaFraction = MaxMinAreaFraction
	}

	if o.BlurKernelSize == 0 {
		o.BlurKernelSize = DefaultBlurKernelSize
	}

	return o
}
