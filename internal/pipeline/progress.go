package pipeline

// Overall progress bands. Conversion fills [0, conversionEnd], speaker
// identification (when it runs) fills [conversionEnd, diarizationEnd], and
// transcription fills the rest up to maxBeforeResult.
const (
	conversionEnd      = 0.05
	diarizationEnd     = 0.50
	segmentationWeight = 0.3
	embeddingsWeight   = 0.7
	maxBeforeResult    = 0.99
)

// Diarization worker step names.
const (
	stepSegmentation = "segmentation"
	stepEmbeddings   = "embeddings"
)

// diarizationProgress tracks the two weighted sub-steps of speaker
// identification.
type diarizationProgress struct {
	segmentation float64
	embeddings   float64
}

// update records pct (0..100) for step and returns overall progress. Unknown
// steps leave the value unchanged.
func (d *diarizationProgress) update(step string, pct float64) float64 {
	pct = clamp(pct/100, 0, 1)
	switch step {
	case stepSegmentation:
		d.segmentation = max(d.segmentation, pct)
	case stepEmbeddings:
		d.segmentation = 1
		d.embeddings = max(d.embeddings, pct)
	}
	return diarizationOverall(d.segmentation, d.embeddings)
}

func diarizationOverall(segmentation, embeddings float64) float64 {
	part := segmentationWeight*segmentation + embeddingsWeight*embeddings
	return conversionEnd + (diarizationEnd-conversionEnd)*clamp(part, 0, 1)
}

// transcriptionOverall maps transcription pct (0..100) into the final band.
// The result never reaches 1; only a finished job reports completion.
func transcriptionOverall(pct float64, diarized bool) float64 {
	base := conversionEnd
	if diarized {
		base = diarizationEnd
	}
	return min(base+(1-base)*clamp(pct/100, 0, 1), maxBeforeResult)
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
