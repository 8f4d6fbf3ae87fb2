package ports

import "context"

// CombinedAnalyzer checks the capture where the party holds the document
// next to their face. Its coherence score gates a review flag only; it never
// enters the overall confidence mean.
type CombinedAnalyzer interface {
	Coherence(ctx context.Context, image []byte) (*CombinedAnalysis, error)
}

// CombinedAnalysis is the analyzer's raw verdict on a combined capture
// (port model).
type CombinedAnalysis struct {
	CoherenceScore   float64 `json:"coherence_score"`
	FaceDetected     bool    `json:"face_detected"`
	DocumentDetected bool    `json:"document_detected"`
}
