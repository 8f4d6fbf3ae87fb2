// Package scoring computes per-channel confidence scores and the overall
// session confidence. Pure domain logic - no I/O, no side effects; every
// function receives the measurements it needs and returns a score in [0,1].
package scoring

import "strings"

// AcceptanceThreshold is the overall confidence a session must reach for
// Complete to accept it.
const AcceptanceThreshold = 0.7

// CoherenceGate is the combined-capture score below which the session is
// flagged. The flag is reported with the result; it never blocks acceptance
// and the combined score never enters the overall mean.
const CoherenceGate = 0.5

const (
	faceFrontWeight     = 0.25
	faceSideWeight      = 0.25
	faceLivenessWeight  = 0.30
	faceCoherenceWeight = 0.20

	documentImageWeight      = 0.30
	documentOCRWeight        = 0.40
	documentValidationWeight = 0.30
	documentTamperPenalty    = 0.5

	voiceDurationWeight   = 0.20
	voiceAudioWeight      = 0.30
	voiceTranscriptWeight = 0.30
	voiceBiometricWeight  = 0.20

	voiceMinSeconds = 3.0
	voiceMaxSeconds = 30.0
)

// Face scores the face channel from the front and side capture qualities,
// the liveness measurement, and the front-to-side comparison score.
func Face(frontQuality, sideQuality, liveness, coherence float64) float64 {
	score := faceFrontWeight*clamp01(frontQuality) +
		faceSideWeight*clamp01(sideQuality) +
		faceLivenessWeight*clamp01(liveness) +
		faceCoherenceWeight*clamp01(coherence)
	return clamp01(score)
}

// Document scores the document channel. A suspected tamper halves the score
// rather than zeroing it: the analyzer's suspicion is a signal, not a verdict.
func Document(imageQuality, ocrConfidence, fieldValidationRate float64, tamperSuspected bool) float64 {
	score := documentImageWeight*clamp01(imageQuality) +
		documentOCRWeight*clamp01(ocrConfidence) +
		documentValidationWeight*clamp01(fieldValidationRate)
	if tamperSuspected {
		score *= documentTamperPenalty
	}
	return clamp01(score)
}

// Voice scores the voice channel. Duration contributes a fixed full or half
// credit depending on whether the recording falls inside the accepted window;
// the transcript contributes by word overlap with the phrase the party was
// asked to read.
func Voice(durationSeconds, audioQuality float64, transcript, expectedPhrase string, biometric float64) float64 {
	score := voiceDurationWeight*durationScore(durationSeconds) +
		voiceAudioWeight*clamp01(audioQuality) +
		voiceTranscriptWeight*wordOverlap(transcript, expectedPhrase) +
		voiceBiometricWeight*clamp01(biometric)
	return clamp01(score)
}

// Overall is the arithmetic mean of the sub-scores that have been produced,
// zero when none have. A channel scored exactly zero is indistinguishable
// from an unsubmitted one and is excluded either way.
func Overall(face, document, voice float64) float64 {
	var sum float64
	var n int
	for _, score := range []float64{face, document, voice} {
		if score > 0 {
			sum += clamp01(score)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Accepted reports whether an overall confidence clears the threshold.
func Accepted(overall float64) bool {
	return overall >= AcceptanceThreshold
}

// CoherenceFlagged reports whether a combined-capture score is low enough to
// flag the session for review.
func CoherenceFlagged(combined float64) bool {
	return combined < CoherenceGate
}

func durationScore(seconds float64) float64 {
	if seconds >= voiceMinSeconds && seconds <= voiceMaxSeconds {
		return 1.0
	}
	return 0.5
}

// wordOverlap is the fraction of the expected phrase's words present in the
// transcript, case-insensitive. An empty phrase scores zero: there is nothing
// to verify against.
func wordOverlap(transcript, expectedPhrase string) float64 {
	expected := strings.Fields(strings.ToLower(expectedPhrase))
	if len(expected) == 0 {
		return 0
	}
	heard := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(transcript)) {
		heard[w] = struct{}{}
	}
	matched := 0
	for _, w := range expected {
		if _, ok := heard[w]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(expected))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
