// Package analyzer is the wire contract between firmo and the biometric
// analyzer service. Both the gateway's HTTP adapter and the mock analyzer
// service import these types, so a request/response shape change breaks the
// build on both sides instead of drifting at runtime.
package analyzer

// Paths served by the analyzer service.
const (
	PathFaceAssess       = "/v1/face/assess"
	PathFaceCompare      = "/v1/face/compare"
	PathDocumentExtract  = "/v1/document/extract"
	PathCombinedCoherent = "/v1/combined/coherence"
	PathVoiceTranscribe  = "/v1/voice/transcribe"
)

// FaceAssessRequest carries one face capture, base64-encoded.
type FaceAssessRequest struct {
	ImageBase64 string `json:"image_base64"`
}

// FaceAssessResponse reports capture quality and liveness, both in [0,1].
type FaceAssessResponse struct {
	Quality  float64 `json:"quality"`
	Liveness float64 `json:"liveness"`
}

// FaceCompareRequest carries two captures to compare.
type FaceCompareRequest struct {
	ImageABase64 string `json:"image_a_base64"`
	ImageBBase64 string `json:"image_b_base64"`
}

// FaceCompareResponse reports same-person similarity in [0,1].
type FaceCompareResponse struct {
	Similarity float64 `json:"similarity"`
}

// DocumentExtractRequest carries a document capture and the type the party
// claims it is.
type DocumentExtractRequest struct {
	ImageBase64  string `json:"image_base64"`
	DeclaredType string `json:"declared_type"`
}

// DocumentExtractResponse reports the OCR extraction and validity measures.
type DocumentExtractResponse struct {
	Number              string  `json:"number"`
	Name                string  `json:"name"`
	Expiry              string  `json:"expiry"`
	DetectedType        string  `json:"detected_type"`
	Confidence          float64 `json:"confidence"`
	ImageQuality        float64 `json:"image_quality"`
	FieldValidationRate float64 `json:"field_validation_rate"`
	TamperSuspected     bool    `json:"tamper_suspected"`
}

// CombinedCoherenceRequest carries the capture where the party holds the
// document next to their face.
type CombinedCoherenceRequest struct {
	ImageBase64 string `json:"image_base64"`
}

// CombinedCoherenceResponse reports whether both subjects were found and how
// coherent they are.
type CombinedCoherenceResponse struct {
	CoherenceScore   float64 `json:"coherence_score"`
	FaceDetected     bool    `json:"face_detected"`
	DocumentDetected bool    `json:"document_detected"`
}

// VoiceTranscribeRequest carries a voice recording.
type VoiceTranscribeRequest struct {
	AudioBase64 string `json:"audio_base64"`
}

// VoiceTranscribeResponse reports the transcription and biometric measures.
type VoiceTranscribeResponse struct {
	Text            string  `json:"text"`
	Language        string  `json:"language"`
	Confidence      float64 `json:"confidence"`
	DurationSeconds float64 `json:"duration_seconds"`
	AudioQuality    float64 `json:"audio_quality"`
	BiometricScore  float64 `json:"biometric_score"`
}

// ErrorResponse is the analyzer's error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
