// Command analyzer-service is a deterministic stand-in for the biometric
// analyzer, for local development and end-to-end tests. Scores derive from a
// hash of the submitted bytes, so identical captures always score the same
// and different captures vary slightly. Voice transcription echoes UTF-8
// audio back as the transcript, matching the in-process mock's convention.
package main

import (
	"encoding/base64"
	"encoding/json"
	"hash/fnv"
	"log"
	"net/http"
	"os"
	"unicode/utf8"

	wire "firmo/contracts/analyzer"
)

func main() {
	addr := os.Getenv("ANALYZER_ADDR")
	if addr == "" {
		addr = ":7100"
	}

	mux := http.NewServeMux()
	mux.HandleFunc(wire.PathFaceAssess, handleFaceAssess)
	mux.HandleFunc(wire.PathFaceCompare, handleFaceCompare)
	mux.HandleFunc(wire.PathDocumentExtract, handleDocumentExtract)
	mux.HandleFunc(wire.PathCombinedCoherent, handleCombinedCoherence)
	mux.HandleFunc(wire.PathVoiceTranscribe, handleVoiceTranscribe)

	log.Printf("mock analyzer listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func handleFaceAssess(w http.ResponseWriter, r *http.Request) {
	var req wire.FaceAssessRequest
	image, ok := decode(w, r, &req, func() string { return req.ImageBase64 })
	if !ok {
		return
	}
	writeJSON(w, wire.FaceAssessResponse{
		Quality:  score(image, 0.92),
		Liveness: score(image, 0.95),
	})
}

func handleFaceCompare(w http.ResponseWriter, r *http.Request) {
	var req wire.FaceCompareRequest
	if !readJSON(w, r, &req) {
		return
	}
	imageA, err := base64.StdEncoding.DecodeString(req.ImageABase64)
	if err != nil {
		writeError(w, "invalid_image", "image_a_base64 is not valid base64")
		return
	}
	imageB, err := base64.StdEncoding.DecodeString(req.ImageBBase64)
	if err != nil {
		writeError(w, "invalid_image", "image_b_base64 is not valid base64")
		return
	}
	writeJSON(w, wire.FaceCompareResponse{
		Similarity: score(append(imageA, imageB...), 0.90),
	})
}

func handleDocumentExtract(w http.ResponseWriter, r *http.Request) {
	var req wire.DocumentExtractRequest
	image, ok := decode(w, r, &req, func() string { return req.ImageBase64 })
	if !ok {
		return
	}
	detected := req.DeclaredType
	if detected == "" {
		detected = "passport"
	}
	writeJSON(w, wire.DocumentExtractResponse{
		Number:              documentNumber(image),
		Name:                "SPECIMEN HOLDER",
		Expiry:              "2031-01-31",
		DetectedType:        detected,
		Confidence:          score(image, 0.90),
		ImageQuality:        score(image, 0.88),
		FieldValidationRate: 1.0,
		TamperSuspected:     false,
	})
}

func handleCombinedCoherence(w http.ResponseWriter, r *http.Request) {
	var req wire.CombinedCoherenceRequest
	image, ok := decode(w, r, &req, func() string { return req.ImageBase64 })
	if !ok {
		return
	}
	writeJSON(w, wire.CombinedCoherenceResponse{
		CoherenceScore:   score(image, 0.90),
		FaceDetected:     true,
		DocumentDetected: true,
	})
}

func handleVoiceTranscribe(w http.ResponseWriter, r *http.Request) {
	var req wire.VoiceTranscribeRequest
	audio, ok := decode(w, r, &req, func() string { return req.AudioBase64 })
	if !ok {
		return
	}
	text := ""
	if utf8.Valid(audio) {
		text = string(audio)
	}
	writeJSON(w, wire.VoiceTranscribeResponse{
		Text:            text,
		Language:        "en",
		Confidence:      score(audio, 0.93),
		DurationSeconds: duration(audio),
		AudioQuality:    score(audio, 0.90),
		BiometricScore:  score(audio, 0.85),
	})
}

// decode reads the JSON request and base64-decodes the single media field.
func decode(w http.ResponseWriter, r *http.Request, req any, field func() string) ([]byte, bool) {
	if !readJSON(w, r, req) {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(field())
	if err != nil {
		writeError(w, "invalid_media", "media field is not valid base64")
		return nil, false
	}
	if len(data) == 0 {
		writeError(w, "empty_media", "media field is empty")
		return nil, false
	}
	return data, true
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, "invalid_request", "request body is not valid JSON")
		return false
	}
	return true
}

// score returns base minus a content-derived jitter in [0, 0.05), clamped to
// [0, 1]. Identical bytes always produce identical scores.
func score(data []byte, base float64) float64 {
	h := fnv.New32a()
	_, _ = h.Write(data)
	jitter := float64(h.Sum32()%500) / 10000
	s := base - jitter
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func documentNumber(data []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(data)
	const digits = "0123456789"
	sum := h.Sum64()
	out := make([]byte, 9)
	for i := range out {
		out[i] = digits[sum%10]
		sum /= 10
	}
	return "X" + string(out)
}

// duration scales with the payload so longer recordings read as longer
// audio, with a floor that keeps tiny test payloads plausible.
func duration(audio []byte) float64 {
	d := float64(len(audio)) / 4000
	if d < 4 {
		return 4
	}
	return d
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(wire.ErrorResponse{Error: code, Message: message})
}
