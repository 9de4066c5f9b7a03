package facematch

// ScaleBBox multiplies every coordinate of a pixel bounding box by factor.
// Detections on a downsampled frame are mapped back to full-frame pixels with
// factor = 1/downsample. Malformed boxes are returned unchanged.
func ScaleBBox(bbox []float64, factor float64) []float64 {
	if len(bbox) != 4 || factor <= 0 {
		return bbox
	}
	return []float64{
		bbox[0] * factor,
		bbox[1] * factor,
		bbox[2] * factor,
		bbox[3] * factor,
	}
}

// RelativeBBox expresses a pixel bounding box as fractions of a width x height
// frame, clamped to [0, 1]. Malformed boxes and empty frames yield nil.
func RelativeBBox(bbox []float64, width, height int) []float64 {
	if len(bbox) != 4 || width <= 0 || height <= 0 {
		return nil
	}
	w, h := float64(width), float64(height)
	return []float64{
		clamp01(bbox[0] / w),
		clamp01(bbox[1] / h),
		clamp01(bbox[2] / w),
		clamp01(bbox[3] / h),
	}
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
