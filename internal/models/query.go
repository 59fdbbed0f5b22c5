package models

import (
	"strings"

	"github.com/hyperjump/ragdoc/internal/apperr"
)

// AskRequest is the body of an ask call.
type AskRequest struct {
	Question string `json:"question"`
}

// Validate trims the question and rejects an empty one.
func (r *AskRequest) Validate() error {
	r.Question = strings.TrimSpace(r.Question)
	if r.Question == "" {
		return apperr.InvalidParameter("question cannot be empty")
	}
	return nil
}
