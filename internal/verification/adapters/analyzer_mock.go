package adapters

import (
	"context"
	"time"
	"unicode/utf8"

	"firmo/internal/verification/ports"
)

// MockAnalyzer implements all four analyzer ports with deterministic data
// and a configurable latency to mimic real-world calls. Used for local
// development and end-to-end tests when no analyzer service is deployed.
//
// Voice transcription echoes the audio bytes back as text when they are
// valid UTF-8, so a caller controls the transcript by sending the phrase
// itself as the recording.
type MockAnalyzer struct {
	Latency time.Duration

	FaceQuality float64
	Liveness    float64
	Similarity  float64

	DocumentConfidence  float64
	ImageQuality        float64
	FieldValidationRate float64
	TamperSuspected     bool

	CoherenceScore float64

	VoiceConfidence float64
	AudioQuality    float64
	BiometricScore  float64
	DurationSeconds float64
}

// NewMockAnalyzer returns a mock that passes every check comfortably.
// Override fields to stage weak or failing channels.
func NewMockAnalyzer() *MockAnalyzer {
	return &MockAnalyzer{
		FaceQuality:         0.92,
		Liveness:            0.95,
		Similarity:          0.90,
		DocumentConfidence:  0.90,
		ImageQuality:        0.88,
		FieldValidationRate: 1.0,
		CoherenceScore:      0.90,
		VoiceConfidence:     0.93,
		AudioQuality:        0.90,
		BiometricScore:      0.85,
		DurationSeconds:     8,
	}
}

func (m *MockAnalyzer) Assess(_ context.Context, _ []byte) (*ports.FaceAssessment, error) {
	time.Sleep(m.Latency)
	return &ports.FaceAssessment{Quality: m.FaceQuality, Liveness: m.Liveness}, nil
}

func (m *MockAnalyzer) Compare(_ context.Context, _, _ []byte) (float64, error) {
	time.Sleep(m.Latency)
	return m.Similarity, nil
}

func (m *MockAnalyzer) Extract(_ context.Context, _ []byte, declaredType string) (*ports.DocumentAnalysis, error) {
	time.Sleep(m.Latency)
	return &ports.DocumentAnalysis{
		Number:              "X1234567",
		Name:                "Sample Signatory",
		Expiry:              "2031-04-18",
		DetectedType:        declaredType,
		Confidence:          m.DocumentConfidence,
		ImageQuality:        m.ImageQuality,
		FieldValidationRate: m.FieldValidationRate,
		TamperSuspected:     m.TamperSuspected,
	}, nil
}

func (m *MockAnalyzer) Coherence(_ context.Context, _ []byte) (*ports.CombinedAnalysis, error) {
	time.Sleep(m.Latency)
	return &ports.CombinedAnalysis{
		CoherenceScore:   m.CoherenceScore,
		FaceDetected:     true,
		DocumentDetected: true,
	}, nil
}

func (m *MockAnalyzer) Transcribe(_ context.Context, audio []byte) (*ports.VoiceTranscription, error) {
	time.Sleep(m.Latency)
	text := "sample transcription"
	if utf8.Valid(audio) && len(audio) > 0 {
		text = string(audio)
	}
	return &ports.VoiceTranscription{
		Text:            text,
		Language:        "en",
		Confidence:      m.VoiceConfidence,
		DurationSeconds: m.DurationSeconds,
		AudioQuality:    m.AudioQuality,
		BiometricScore:  m.BiometricScore,
	}, nil
}
