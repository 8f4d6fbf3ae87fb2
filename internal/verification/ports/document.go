package ports

import "context"

// DocumentAnalyzer runs OCR and validity checks on an identity-document
// capture.
type DocumentAnalyzer interface {
	// Extract reads the document fields. declaredType is what the party
	// claims the document is; the analyzer reports what it detected.
	Extract(ctx context.Context, image []byte, declaredType string) (*DocumentAnalysis, error)
}

// DocumentAnalysis is the analyzer's raw extraction result (port model).
type DocumentAnalysis struct {
	Number              string  `json:"number"`
	Name                string  `json:"name"`
	Expiry              string  `json:"expiry"`
	DetectedType        string  `json:"detected_type"`
	Confidence          float64 `json:"confidence"`
	ImageQuality        float64 `json:"image_quality"`
	FieldValidationRate float64 `json:"field_validation_rate"`
	TamperSuspected     bool    `json:"tamper_suspected"`
}
