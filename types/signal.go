package types

import (
	"fmt"
	"math"
)

// Temperature is a coarse lead-quality classification derived from
// conversation signals by the upstream intent scorer.
type Temperature string

const (
	TemperatureHot  Temperature = "HOT"
	TemperatureWarm Temperature = "WARM"
	TemperatureCold Temperature = "COLD"
)

// ParseTemperature validates and normalizes a temperature string.
func ParseTemperature(s string) (Temperature, error) {
	switch Temperature(s) {
	case TemperatureHot, TemperatureWarm, TemperatureCold:
		return Temperature(s), nil
	default:
		return "", NewError(ErrInvalidInput, fmt.Sprintf("unknown temperature: %q", s))
	}
}

// IntentSignal is the per-message routing signal produced by the external
// intent scorer. It names a single candidate handler together with the
// scorer's confidence in that candidate.
type IntentSignal struct {
	ContactID       string      `json:"contact_id"`
	SourceHandler   string      `json:"source_handler"`
	CandidateTarget string      `json:"candidate_target"`
	Confidence      float64     `json:"confidence"`
	Temperature     Temperature `json:"temperature"`
}

// Validate rejects malformed signals before any state is touched.
func (s IntentSignal) Validate() error {
	if s.ContactID == "" {
		return NewError(ErrInvalidInput, "contact_id is required")
	}
	if s.SourceHandler == "" {
		return NewError(ErrInvalidInput, "source_handler is required")
	}
	if s.CandidateTarget == "" {
		return NewError(ErrInvalidInput, "candidate_target is required")
	}
	if math.IsNaN(s.Confidence) || math.IsInf(s.Confidence, 0) {
		return NewError(ErrInvalidInput, "confidence must be a finite number")
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return NewError(ErrInvalidInput, fmt.Sprintf("confidence %v outside [0,1]", s.Confidence))
	}
	if _, err := ParseTemperature(string(s.Temperature)); err != nil {
		return err
	}
	return nil
}
