package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntentSignal_Validate(t *testing.T) {
	valid := IntentSignal{
		ContactID:       "c-1",
		SourceHandler:   "lead_handler",
		CandidateTarget: "buyer_handler",
		Confidence:      0.85,
		Temperature:     TemperatureWarm,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*IntentSignal)
	}{
		{"missing contact", func(s *IntentSignal) { s.ContactID = "" }},
		{"missing source", func(s *IntentSignal) { s.SourceHandler = "" }},
		{"missing target", func(s *IntentSignal) { s.CandidateTarget = "" }},
		{"confidence below zero", func(s *IntentSignal) { s.Confidence = -0.1 }},
		{"confidence above one", func(s *IntentSignal) { s.Confidence = 1.01 }},
		{"confidence NaN", func(s *IntentSignal) { s.Confidence = math.NaN() }},
		{"confidence +Inf", func(s *IntentSignal) { s.Confidence = math.Inf(1) }},
		{"confidence -Inf", func(s *IntentSignal) { s.Confidence = math.Inf(-1) }},
		{"bad temperature", func(s *IntentSignal) { s.Temperature = "TEPID" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			err := s.Validate()
			require.Error(t, err)
			assert.Equal(t, ErrInvalidInput, GetErrorCode(err))
		})
	}
}

func TestParseTemperature(t *testing.T) {
	for _, s := range []string{"HOT", "WARM", "COLD"} {
		temp, err := ParseTemperature(s)
		require.NoError(t, err)
		assert.Equal(t, Temperature(s), temp)
	}

	_, err := ParseTemperature("hot")
	assert.Error(t, err)
}

func TestParseOutcome(t *testing.T) {
	for _, s := range []string{"accepted", "reverted", "converted", "unknown"} {
		o, err := ParseOutcome(s)
		require.NoError(t, err)
		assert.Equal(t, Outcome(s), o)
	}

	_, err := ParseOutcome("ACCEPTED")
	assert.Error(t, err)
}
