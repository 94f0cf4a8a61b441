package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

// ReportResolutionError reports that a campaign report query did not yield
// exactly one well-formed row for the triggering entity.
type ReportResolutionError struct {
	CampaignID int64
	Entity     EntityRef
	Reason     string
	Cause      error
}

func (e *ReportResolutionError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := []string{
		"report resolution failed",
		fmt.Sprintf("campaign=%d", e.CampaignID),
		fmt.Sprintf("entity=%s:%d", e.Entity.Kind, e.Entity.ID),
	}
	if reason := strings.TrimSpace(e.Reason); reason != "" {
		parts = append(parts, reason)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *ReportResolutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// RenderError is reserved for structural template validation. The renderer
// currently never returns it: unresolved placeholders pass through.
type RenderError struct {
	CampaignID int64
	Message    string
}

func (e *RenderError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("render failed: campaign=%d: %s", e.CampaignID, e.Message)
}

// DeliveryExhaustedError is the terminal failure recorded once a dispatch
// used up every allowed attempt.
type DeliveryExhaustedError struct {
	LogID    string
	Attempts int
	LastErr  error
}

func (e *DeliveryExhaustedError) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := fmt.Sprintf("delivery exhausted after %d attempts", e.Attempts)
	if e.LastErr != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.LastErr)
	}
	return msg
}

func (e *DeliveryExhaustedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.LastErr
}
