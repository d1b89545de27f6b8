package pipeline

// Thresholds are the calibration constants of the pipeline. They are passed
// in at construction instead of living in process-wide settings; the
// defaults are compatibility constants shared with existing deployments.
type Thresholds struct {
	// Quality gates.
	BlurMin  float64 // minimum Laplacian variance considered sharp
	GlareMax float64 // maximum tolerated fraction of saturated pixels

	// Geometry.
	RectifyOutputWidth int // width of the rectified output image
	MatchWidth         int // common width for template comparison
}

// DefaultThresholds returns the calibrated defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		BlurMin:            120.0,
		GlareMax:           0.18,
		RectifyOutputWidth: 1200,
		MatchWidth:         800,
	}
}
