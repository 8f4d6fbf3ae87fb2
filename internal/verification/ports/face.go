package ports

import "context"

// FaceAnalyzer assesses single face captures and compares two captures for
// same-person coherence. The port isolates the core from the HTTP analyzer
// service and from the in-process mock used in dev and tests.
type FaceAnalyzer interface {
	// Assess measures capture quality and liveness for one image.
	Assess(ctx context.Context, image []byte) (*FaceAssessment, error)

	// Compare scores whether two captures show the same person, in [0,1].
	Compare(ctx context.Context, a, b []byte) (float64, error)
}

// FaceAssessment is the analyzer's raw verdict on one face capture (port
// model, persisted verbatim as part of the session's analysis snapshot).
type FaceAssessment struct {
	Quality  float64 `json:"quality"`
	Liveness float64 `json:"liveness"`
}
