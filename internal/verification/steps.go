package verification

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"firmo/internal/verification/ports"
	"firmo/internal/verification/scoring"
	dErrors "firmo/pkg/domain-errors"
)

// submitFace stores both captures, then fans the three analyzer calls out
// concurrently under a shared timeout: front assessment, side assessment,
// and the front-to-side comparison. The channel score uses the front
// capture's liveness; the selfie is the live capture.
func (s *Service) submitFace(ctx context.Context, session *Session, payload StepPayload) error {
	if len(payload.FaceFront) == 0 || len(payload.FaceSide) == 0 {
		return dErrors.New(dErrors.CodeValidation, "face step requires front and side captures")
	}

	frontKey, err := s.blobs.Put(ctx, payload.FaceFront, payload.ContentType)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store face captures")
	}
	sideKey, err := s.blobs.Put(ctx, payload.FaceSide, payload.ContentType)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store face captures")
	}

	gctx, cancel := context.WithTimeout(ctx, faceAnalysisTimeout)
	defer cancel()
	g, gctx := errgroup.WithContext(gctx)

	var (
		front, side *ports.FaceAssessment
		comparison  float64
	)

	g.Go(func() error {
		start := time.Now()
		a, err := s.analyzers.Face.Assess(gctx, payload.FaceFront)
		s.metrics.ObserveAnalyzerLatency("face", time.Since(start))
		if err != nil {
			return err
		}
		front = a
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		a, err := s.analyzers.Face.Assess(gctx, payload.FaceSide)
		s.metrics.ObserveAnalyzerLatency("face", time.Since(start))
		if err != nil {
			return err
		}
		side = a
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		score, err := s.analyzers.Face.Compare(gctx, payload.FaceFront, payload.FaceSide)
		s.metrics.ObserveAnalyzerLatency("face", time.Since(start))
		if err != nil {
			return err
		}
		comparison = score
		return nil
	})
	if err := g.Wait(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "face analysis failed")
	}

	session.FaceFrontKey = frontKey
	session.FaceSideKey = sideKey
	session.Analysis.FaceFront = front
	session.Analysis.FaceSide = side
	session.Analysis.FaceComparison = comparison
	session.FaceScore = scoring.Face(front.Quality, side.Quality, front.Liveness, comparison)
	return nil
}

func (s *Service) submitDocument(ctx context.Context, session *Session, payload StepPayload) error {
	if len(payload.Document) == 0 {
		return dErrors.New(dErrors.CodeValidation, "document step requires a document capture")
	}

	key, err := s.blobs.Put(ctx, payload.Document, payload.ContentType)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store document capture")
	}

	start := time.Now()
	analysis, err := s.analyzers.Document.Extract(ctx, payload.Document, payload.DeclaredType)
	s.metrics.ObserveAnalyzerLatency("document", time.Since(start))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "document analysis failed")
	}

	session.DocumentKey = key
	session.Analysis.Document = analysis
	session.DocumentScore = scoring.Document(
		analysis.ImageQuality, analysis.Confidence, analysis.FieldValidationRate, analysis.TamperSuspected)
	return nil
}

// submitCombined scores the capture where the party holds the document next
// to their face. The score only sets the review flag; it never enters the
// overall confidence.
func (s *Service) submitCombined(ctx context.Context, session *Session, payload StepPayload) error {
	if len(payload.Combined) == 0 {
		return dErrors.New(dErrors.CodeValidation, "combined step requires a capture with face and document together")
	}

	key, err := s.blobs.Put(ctx, payload.Combined, payload.ContentType)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store combined capture")
	}

	start := time.Now()
	analysis, err := s.analyzers.Combined.Coherence(ctx, payload.Combined)
	s.metrics.ObserveAnalyzerLatency("combined", time.Since(start))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "combined analysis failed")
	}

	session.CombinedKey = key
	session.Analysis.Combined = analysis
	session.CombinedScore = analysis.CoherenceScore
	session.CoherenceFlag = scoring.CoherenceFlagged(analysis.CoherenceScore)
	return nil
}

func (s *Service) submitVoice(ctx context.Context, session *Session, payload StepPayload) error {
	if len(payload.Voice) == 0 {
		return dErrors.New(dErrors.CodeValidation, "voice step requires an audio recording")
	}
	if strings.TrimSpace(payload.ExpectedPhrase) == "" {
		return dErrors.New(dErrors.CodeValidation, "voice step requires the expected phrase")
	}

	key, err := s.blobs.Put(ctx, payload.Voice, payload.ContentType)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store voice recording")
	}

	start := time.Now()
	transcription, err := s.analyzers.Voice.Transcribe(ctx, payload.Voice)
	s.metrics.ObserveAnalyzerLatency("voice", time.Since(start))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "voice analysis failed")
	}

	session.VoiceKey = key
	session.Analysis.Voice = transcription
	session.VoiceScore = scoring.Voice(
		transcription.DurationSeconds, transcription.AudioQuality,
		transcription.Text, payload.ExpectedPhrase, transcription.BiometricScore)
	return nil
}
