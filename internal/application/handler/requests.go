package handler

import (
	"strings"

	id "jobmatch/pkg/domain"
	dErrors "jobmatch/pkg/domain-errors"
)

const (
	maxMessageLength  = 2000
	maxFeedbackLength = 2000
	maxBodyBytes      = 1 << 16
)

type ApplyRequest struct {
	ApplicantID string `json:"applicant_id"`
	Message     string `json:"message,omitempty"`
}

func (r *ApplyRequest) Normalize() {
	r.ApplicantID = strings.TrimSpace(r.ApplicantID)
	r.Message = strings.TrimSpace(r.Message)
}

// Validate parses the applicant id and bounds the message.
func (r *ApplyRequest) Validate() (id.ApplicantID, error) {
	applicantID, err := parseApplicant(r.ApplicantID)
	if err != nil {
		return id.ApplicantID{}, err
	}
	if len(r.Message) > maxMessageLength {
		return id.ApplicantID{}, dErrors.New(dErrors.CodeValidation, "message is too long")
	}
	return applicantID, nil
}

type AcceptRequest struct {
	ApplicantID string `json:"applicant_id"`
}

func (r *AcceptRequest) Validate() (id.ApplicantID, error) {
	return parseApplicant(strings.TrimSpace(r.ApplicantID))
}

type CompleteRequest struct {
	Feedback string `json:"feedback,omitempty"`
}

func (r *CompleteRequest) Normalize() {
	r.Feedback = strings.TrimSpace(r.Feedback)
}

func (r *CompleteRequest) Validate() error {
	if len(r.Feedback) > maxFeedbackLength {
		return dErrors.New(dErrors.CodeValidation, "feedback is too long")
	}
	return nil
}

func parseApplicant(raw string) (id.ApplicantID, error) {
	return id.ParseApplicantID(raw)
}
