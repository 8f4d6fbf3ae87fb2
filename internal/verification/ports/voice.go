package ports

import "context"

// VoiceAnalyzer transcribes a voice recording and measures its biometric
// signal.
type VoiceAnalyzer interface {
	Transcribe(ctx context.Context, audio []byte) (*VoiceTranscription, error)
}

// VoiceTranscription is the analyzer's raw transcription result (port model).
type VoiceTranscription struct {
	Text            string  `json:"text"`
	Language        string  `json:"language"`
	Confidence      float64 `json:"confidence"`
	DurationSeconds float64 `json:"duration_seconds"`
	AudioQuality    float64 `json:"audio_quality"`
	BiometricScore  float64 `json:"biometric_score"`
}
