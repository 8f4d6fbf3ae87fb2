package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const epsilon = 1e-9

func TestFace(t *testing.T) {
	cases := []struct {
		name                             string
		front, side, liveness, coherence float64
		want                             float64
	}{
		{"all perfect", 1.0, 1.0, 1.0, 1.0, 1.0},
		{"all zero", 0, 0, 0, 0, 0},
		{"weighted mix", 0.8, 0.6, 0.9, 0.5, 0.25*0.8 + 0.25*0.6 + 0.30*0.9 + 0.20*0.5},
		{"liveness carries the largest weight", 0, 0, 1.0, 0, 0.30},
		{"inputs above one are clamped", 2.0, 2.0, 2.0, 2.0, 1.0},
		{"negative inputs are clamped", -1.0, 0.5, 0.5, 0.5, 0.25*0.5 + 0.30*0.5 + 0.20*0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Face(tc.front, tc.side, tc.liveness, tc.coherence), epsilon)
		})
	}
}

func TestDocument(t *testing.T) {
	cases := []struct {
		name                   string
		image, ocr, validation float64
		tamper                 bool
		want                   float64
	}{
		{"clean document", 0.9, 0.95, 1.0, false, 0.30*0.9 + 0.40*0.95 + 0.30*1.0},
		{"tamper halves the score", 0.9, 0.95, 1.0, true, (0.30*0.9 + 0.40*0.95 + 0.30*1.0) / 2},
		{"ocr carries the largest weight", 0, 1.0, 0, false, 0.40},
		{"tampered zero stays zero", 0, 0, 0, true, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Document(tc.image, tc.ocr, tc.validation, tc.tamper), epsilon)
		})
	}
}

func TestVoice(t *testing.T) {
	const phrase = "I agree to the rental terms"

	cases := []struct {
		name       string
		seconds    float64
		audio      float64
		transcript string
		biometric  float64
		want       float64
	}{
		{
			name:    "exact read inside window",
			seconds: 10, audio: 1.0, transcript: phrase, biometric: 1.0,
			want: 1.0,
		},
		{
			name:    "too short halves duration credit",
			seconds: 2, audio: 1.0, transcript: phrase, biometric: 1.0,
			want: 0.20*0.5 + 0.30 + 0.30 + 0.20,
		},
		{
			name:    "too long halves duration credit",
			seconds: 45, audio: 1.0, transcript: phrase, biometric: 1.0,
			want: 0.20*0.5 + 0.30 + 0.30 + 0.20,
		},
		{
			name:    "half the phrase heard",
			seconds: 10, audio: 0.8, transcript: "I agree to the", biometric: 0.9,
			want: 0.20 + 0.30*0.8 + 0.30*(4.0/6.0) + 0.20*0.9,
		},
		{
			name:    "nothing recognized",
			seconds: 10, audio: 0.8, transcript: "completely unrelated words", biometric: 0.9,
			want: 0.20 + 0.30*0.8 + 0 + 0.20*0.9,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Voice(tc.seconds, tc.audio, tc.transcript, phrase, tc.biometric), epsilon)
		})
	}
}

func TestVoiceDurationBoundaries(t *testing.T) {
	const phrase = "hello world"
	full := Voice(3, 1.0, phrase, phrase, 1.0)
	assert.InDelta(t, 1.0, full, epsilon, "3s is inside the window")
	full = Voice(30, 1.0, phrase, phrase, 1.0)
	assert.InDelta(t, 1.0, full, epsilon, "30s is inside the window")
}

func TestWordOverlap(t *testing.T) {
	cases := []struct {
		name       string
		transcript string
		phrase     string
		want       float64
	}{
		{"identical", "the quick brown fox", "the quick brown fox", 1.0},
		{"case insensitive", "The QUICK brown FOX", "the quick brown fox", 1.0},
		{"word order irrelevant", "fox brown quick the", "the quick brown fox", 1.0},
		{"partial", "the quick fox", "the quick brown fox", 0.75},
		{"no overlap", "something else entirely", "the quick brown fox", 0},
		{"empty transcript", "", "the quick brown fox", 0},
		{"empty phrase verifies nothing", "anything at all", "", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, wordOverlap(tc.transcript, tc.phrase), epsilon)
		})
	}
}

func TestOverall(t *testing.T) {
	cases := []struct {
		name                  string
		face, document, voice float64
		want                  float64
	}{
		{"all three channels", 0.90, 0.85, 0.75, (0.90 + 0.85 + 0.75) / 3},
		{"weak channel masked by the mean", 0.90, 0.85, 0.40, (0.90 + 0.85 + 0.40) / 3},
		{"two channels", 0.8, 0.6, 0, 0.7},
		{"single channel", 0, 0.9, 0, 0.9},
		{"none set", 0, 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Overall(tc.face, tc.document, tc.voice), epsilon)
		})
	}
}

func TestAccepted(t *testing.T) {
	assert.True(t, Accepted(0.7), "threshold is inclusive")
	assert.True(t, Accepted(AcceptanceThreshold))
	assert.True(t, Accepted((0.90+0.85+0.40)/3))
	assert.False(t, Accepted(0.699))
}

func TestCoherenceFlagged(t *testing.T) {
	assert.True(t, CoherenceFlagged(0.49))
	assert.False(t, CoherenceFlagged(0.5), "gate is exclusive")
	assert.False(t, CoherenceFlagged(0.9))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-0.3))
	assert.Equal(t, 1.0, clamp01(1.7))
	assert.Equal(t, 0.42, clamp01(0.42))
}
