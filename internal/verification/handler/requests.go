package handler

import (
	"encoding/base64"
	"strings"

	"firmo/internal/verification"
	dErrors "firmo/pkg/domain-errors"
)

// maxCaptureBytes caps one decoded capture. Anything larger than this is not
// a phone camera frame or a short voice clip.
const maxCaptureBytes = 10 << 20

// StepRequest is the HTTP request body for
// POST /verification/sessions/{sessionID}/steps/{kind}. Media fields are
// base64; which ones are required depends on the step kind and is enforced
// by the service.
type StepRequest struct {
	FaceFront string `json:"face_front,omitempty"`
	FaceSide  string `json:"face_side,omitempty"`

	Document     string `json:"document,omitempty"`
	DeclaredType string `json:"declared_type,omitempty"`

	Combined string `json:"combined,omitempty"`

	Voice          string `json:"voice,omitempty"`
	ExpectedPhrase string `json:"expected_phrase,omitempty"`

	ContentType string `json:"content_type,omitempty"`

	// Decoded payload (populated by Validate)
	payload verification.StepPayload
}

// Validate decodes the media fields and enforces the size cap.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *StepRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	var err error
	if r.payload.FaceFront, err = decodeMedia("face_front", r.FaceFront); err != nil {
		return err
	}
	if r.payload.FaceSide, err = decodeMedia("face_side", r.FaceSide); err != nil {
		return err
	}
	if r.payload.Document, err = decodeMedia("document", r.Document); err != nil {
		return err
	}
	if r.payload.Combined, err = decodeMedia("combined", r.Combined); err != nil {
		return err
	}
	if r.payload.Voice, err = decodeMedia("voice", r.Voice); err != nil {
		return err
	}

	r.payload.DeclaredType = strings.TrimSpace(r.DeclaredType)
	r.payload.ExpectedPhrase = strings.TrimSpace(r.ExpectedPhrase)
	r.payload.ContentType = strings.TrimSpace(r.ContentType)
	return nil
}

// Payload returns the decoded step payload.
func (r *StepRequest) Payload() verification.StepPayload {
	return r.payload
}

func decodeMedia(field, encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, field+" must be base64-encoded")
	}
	if len(data) > maxCaptureBytes {
		return nil, dErrors.New(dErrors.CodeValidation, field+" exceeds the capture size limit")
	}
	return data, nil
}
