package validation

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iatlab/internal/models"
)

func validSubmission() *models.Submission {
	return &models.Submission{
		UserID: "u1",
		Results: map[string]any{
			"maleComputer":   []any{500.0, 620.0},
			"femaleSkincare": []any{480.0},
			"femaleComputer": []any{},
			"maleSkincare":   []any{},
		},
		Analysis: map[string]any{
			"dScore":    0.35,
			"biasType":  "male-tech",
			"biasLevel": "weak",
		},
	}
}

func TestNormalizeValidSubmission(t *testing.T) {
	record, err := Policy{}.Normalize(validSubmission())
	require.NoError(t, err)

	assert.Equal(t, "u1", record.UserID)
	assert.Equal(t, []float64{500, 620}, record.Results.MaleComputer)
	assert.Equal(t, []float64{480}, record.Results.FemaleSkincare)
	assert.Empty(t, record.Results.FemaleComputer)
	assert.Empty(t, record.Results.MaleSkincare)
	assert.Equal(t, 0.35, record.Analysis.DScore)
	assert.Equal(t, "male-tech", record.Analysis.BiasType)
	assert.Equal(t, "weak", record.Analysis.BiasLevel)
	assert.NotNil(t, record.SurveyResponses)
	assert.NotNil(t, record.DeviceInfo)
	assert.False(t, record.TestDate.IsZero())
}

func TestNormalizeMissingUserID(t *testing.T) {
	for _, strict := range []bool{true, false} {
		sub := validSubmission()
		sub.UserID = "  "
		_, err := Policy{Strict: strict}.Normalize(sub)
		require.Error(t, err)
		ve, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, "MISSING_USER_ID", ve.Code)
	}
}

func TestStrictRejectsMissingSubstructures(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(*models.Submission)
		wantCode string
	}{
		{"no results", func(s *models.Submission) { s.Results = nil }, "MISSING_RESULTS"},
		{"no analysis", func(s *models.Submission) { s.Analysis = nil }, "MISSING_ANALYSIS"},
		{"results not an object", func(s *models.Submission) { s.Results = "junk" }, "INVALID_RESULTS_STRUCTURE"},
		{"analysis not an object", func(s *models.Submission) { s.Analysis = 42.0 }, "MISSING_ANALYSIS"},
		{"results field not an array", func(s *models.Submission) {
			s.Results.(map[string]any)["maleComputer"] = "oops"
		}, "INVALID_RESULTS_STRUCTURE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := validSubmission()
			tc.mutate(sub)
			_, err := Policy{Strict: true}.Normalize(sub)
			require.Error(t, err)
			ve, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, tc.wantCode, ve.Code)
		})
	}
}

func TestPermissiveBackfillsDefaults(t *testing.T) {
	record, err := Policy{}.Normalize(&models.Submission{UserID: "u2"})
	require.NoError(t, err)

	assert.Empty(t, record.Results.MaleComputer)
	assert.Empty(t, record.Results.FemaleSkincare)
	assert.Empty(t, record.Results.FemaleComputer)
	assert.Empty(t, record.Results.MaleSkincare)
	assert.Zero(t, record.Analysis.DScore)
	assert.Empty(t, record.Analysis.BiasType)
	assert.Equal(t, models.DefaultBiasLevel, record.Analysis.BiasLevel)
	assert.Zero(t, record.Analysis.D1Score)
	assert.Empty(t, record.SurveyResponses)
	assert.Empty(t, record.DeviceInfo)
}

func TestPermissiveToleratesMalformedSequence(t *testing.T) {
	sub := validSubmission()
	sub.Results.(map[string]any)["maleComputer"] = map[string]any{"not": "an array"}

	record, err := Policy{}.Normalize(sub)
	require.NoError(t, err)
	assert.Empty(t, record.Results.MaleComputer)
	// Other sequences are unaffected.
	assert.Equal(t, []float64{480}, record.Results.FemaleSkincare)
}

func TestPermissiveToleratesNonObjectSubstructures(t *testing.T) {
	sub := validSubmission()
	sub.Results = "junk"
	sub.Analysis = []any{1, 2}
	sub.SurveyResponses = "also junk"
	sub.DeviceInfo = 7.0

	record, err := Policy{}.Normalize(sub)
	require.NoError(t, err)
	assert.Empty(t, record.Results.MaleComputer)
	assert.Empty(t, record.Results.FemaleSkincare)
	assert.Zero(t, record.Analysis.DScore)
	assert.Equal(t, models.DefaultBiasLevel, record.Analysis.BiasLevel)
	assert.Equal(t, map[string]any{}, record.SurveyResponses)
	assert.Equal(t, map[string]any{}, record.DeviceInfo)
}

func TestReactionTimeFiltering(t *testing.T) {
	sub := validSubmission()
	sub.Results.(map[string]any)["maleComputer"] = []any{
		500.0, -12.0, 0.0, "not a number", nil, math.NaN(), math.Inf(1), 620.0, "710.5",
	}

	record, err := Policy{}.Normalize(sub)
	require.NoError(t, err)
	// Stored sequence is never longer than the submitted one, and keeps
	// only positive finite numbers. Numeric strings are coerced.
	assert.Equal(t, []float64{500, 620, 710.5}, record.Results.MaleComputer)
}

func TestAnalysisCoercion(t *testing.T) {
	sub := validSubmission()
	sub.Analysis = map[string]any{
		"dScore":  "0.42",
		"d1Score": 1,
		"d2Score": "garbage",
		"d3Score": nil,
	}

	record, err := Policy{}.Normalize(sub)
	require.NoError(t, err)
	assert.Equal(t, 0.42, record.Analysis.DScore)
	assert.Equal(t, 1.0, record.Analysis.D1Score)
	assert.Zero(t, record.Analysis.D2Score)
	assert.Zero(t, record.Analysis.D3Score)
	assert.Zero(t, record.Analysis.D4Score)
	assert.Equal(t, models.DefaultBiasLevel, record.Analysis.BiasLevel)
}

func TestExplicitTestDatePreserved(t *testing.T) {
	when := time.Date(2025, 5, 26, 9, 30, 0, 0, time.UTC)
	sub := validSubmission()
	sub.TestDate = &when

	record, err := Policy{}.Normalize(sub)
	require.NoError(t, err)
	assert.True(t, record.TestDate.Equal(when))
}
