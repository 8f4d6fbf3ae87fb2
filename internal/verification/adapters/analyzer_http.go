package adapters

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	wire "firmo/contracts/analyzer"
	"firmo/internal/verification/ports"
)

var tracer = otel.Tracer("firmo/verification/analyzer")

// HTTPAnalyzer speaks the contracts/analyzer wire format to the analyzer
// service. One client implements all four analyzer ports; the service does
// not care that they share a transport.
type HTTPAnalyzer struct {
	baseURL string
	client  *http.Client
}

// NewHTTPAnalyzer builds a client for the analyzer at baseURL. Pass nil to
// use a default client with a sane timeout.
func NewHTTPAnalyzer(baseURL string, client *http.Client) *HTTPAnalyzer {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPAnalyzer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (a *HTTPAnalyzer) Assess(ctx context.Context, image []byte) (*ports.FaceAssessment, error) {
	ctx, span := tracer.Start(ctx, "analyzer.face.assess",
		trace.WithAttributes(attribute.Int("image.bytes", len(image))))
	defer span.End()

	var resp wire.FaceAssessResponse
	err := a.post(ctx, wire.PathFaceAssess, wire.FaceAssessRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(image),
	}, &resp)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &ports.FaceAssessment{Quality: resp.Quality, Liveness: resp.Liveness}, nil
}

func (a *HTTPAnalyzer) Compare(ctx context.Context, imageA, imageB []byte) (float64, error) {
	ctx, span := tracer.Start(ctx, "analyzer.face.compare")
	defer span.End()

	var resp wire.FaceCompareResponse
	err := a.post(ctx, wire.PathFaceCompare, wire.FaceCompareRequest{
		ImageABase64: base64.StdEncoding.EncodeToString(imageA),
		ImageBBase64: base64.StdEncoding.EncodeToString(imageB),
	}, &resp)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return resp.Similarity, nil
}

func (a *HTTPAnalyzer) Extract(ctx context.Context, image []byte, declaredType string) (*ports.DocumentAnalysis, error) {
	ctx, span := tracer.Start(ctx, "analyzer.document.extract",
		trace.WithAttributes(attribute.String("document.declared_type", declaredType)))
	defer span.End()

	var resp wire.DocumentExtractResponse
	err := a.post(ctx, wire.PathDocumentExtract, wire.DocumentExtractRequest{
		ImageBase64:  base64.StdEncoding.EncodeToString(image),
		DeclaredType: declaredType,
	}, &resp)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &ports.DocumentAnalysis{
		Number:              resp.Number,
		Name:                resp.Name,
		Expiry:              resp.Expiry,
		DetectedType:        resp.DetectedType,
		Confidence:          resp.Confidence,
		ImageQuality:        resp.ImageQuality,
		FieldValidationRate: resp.FieldValidationRate,
		TamperSuspected:     resp.TamperSuspected,
	}, nil
}

func (a *HTTPAnalyzer) Coherence(ctx context.Context, image []byte) (*ports.CombinedAnalysis, error) {
	ctx, span := tracer.Start(ctx, "analyzer.combined.coherence")
	defer span.End()

	var resp wire.CombinedCoherenceResponse
	err := a.post(ctx, wire.PathCombinedCoherent, wire.CombinedCoherenceRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(image),
	}, &resp)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &ports.CombinedAnalysis{
		CoherenceScore:   resp.CoherenceScore,
		FaceDetected:     resp.FaceDetected,
		DocumentDetected: resp.DocumentDetected,
	}, nil
}

func (a *HTTPAnalyzer) Transcribe(ctx context.Context, audio []byte) (*ports.VoiceTranscription, error) {
	ctx, span := tracer.Start(ctx, "analyzer.voice.transcribe",
		trace.WithAttributes(attribute.Int("audio.bytes", len(audio))))
	defer span.End()

	var resp wire.VoiceTranscribeResponse
	err := a.post(ctx, wire.PathVoiceTranscribe, wire.VoiceTranscribeRequest{
		AudioBase64: base64.StdEncoding.EncodeToString(audio),
	}, &resp)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &ports.VoiceTranscription{
		Text:            resp.Text,
		Language:        resp.Language,
		Confidence:      resp.Confidence,
		DurationSeconds: resp.DurationSeconds,
		AudioQuality:    resp.AudioQuality,
		BiometricScore:  resp.BiometricScore,
	}, nil
}

func (a *HTTPAnalyzer) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("analyzer: marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("analyzer: build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("analyzer: %s call failed: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("analyzer: read %s response: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		var wireErr wire.ErrorResponse
		if json.Unmarshal(body, &wireErr) == nil && wireErr.Message != "" {
			return fmt.Errorf("analyzer: %s returned %d: %s", path, resp.StatusCode, wireErr.Message)
		}
		return fmt.Errorf("analyzer: %s returned %d", path, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("analyzer: parse %s response: %w", path, err)
	}
	return nil
}
