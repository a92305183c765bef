package models

import "time"

// FrameRequest is a single frame handed to the processor for analysis.
// The option fields mirror detection.Options; zero values mean "use the
// configured default". Unrecognized JSON fields are ignored by decoding.
type FrameRequest struct {
	ImageData       []byte  `json:"image_data"`
	Timestamp       int64   `json:"timestamp"`
	ClientID        string  `json:"client_id"`
	Threshold       float32 `json:"threshold"`
	MinAreaFraction float32 `json:"min_area_fraction"`
	BlurKernelSize  uint32  `json:"blur_kernel_size"`
	ForceRebaseline bool    `json:"force_rebaseline"`
}

// ImageSize is the pixel dimensions of the analyzed frame.
type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// BoundingBox is an axis-aligned rectangle in integer pixel coordinates.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RegionCenter is the center point of a motion region, computed with
// integer (floor) division from the bounding box.
type RegionCenter struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// MotionRegion is the single bounding region covering every changed pixel
// in a frame. Area is always BBox.Width * BBox.Height.
type MotionRegion struct {
	BBox   BoundingBox  `json:"bbox"`
	Area   int64        `json:"area"`
	Center RegionCenter `json:"center"`
}

// MotionEvent records one detected-motion frame. Events are immutable and
// only discarded by eviction from the detector's bounded history.
type MotionEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	FrameNumber uint64    `json:"frame_number"`
}

// AnalysisResult is the per-frame output of the detection engine.
// TimeSinceLastMotion is in seconds and nil until motion has occurred at
// least once; Error is nil unless the frame bytes could not be decoded.
type AnalysisResult struct {
	MotionDetected      bool           `json:"motion_detected"`
	MotionScore         float64        `json:"motion_score"`
	Regions             []MotionRegion `json:"regions"`
	FrameNumber         uint64         `json:"frame_number"`
	ImageSize           ImageSize      `json:"image_size"`
	TimeSinceLastMotion *float64       `json:"time_since_last_motion,omitempty"`
	RecentMotionEvents  int            `json:"recent_motion_events_count"`
	Error               *string        `json:"error,omitempty"`
}
