package validation

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"iatlab/internal/models"
)

// Validation failures carry a stable code so handlers can echo it to clients.
var (
	ErrMissingUserID   = &Error{Code: "MISSING_USER_ID", Message: "userId is required"}
	ErrMissingResults  = &Error{Code: "MISSING_RESULTS", Message: "results object is required"}
	ErrMissingAnalysis = &Error{Code: "MISSING_ANALYSIS", Message: "analysis object is required"}
	ErrInvalidResults  = &Error{Code: "INVALID_RESULTS_STRUCTURE", Message: "results fields must be arrays of reaction times"}
)

// Error is a rejected-submission error with a machine-readable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// AsError unwraps a validation error, if err is one.
func AsError(err error) (*Error, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// Policy turns raw submissions into storable records. Strict mode rejects
// missing or malformed substructures; permissive mode back-fills defaults
// and keeps whatever numeric data survives filtering.
type Policy struct {
	Strict bool
}

// Normalize validates sub and produces the record to persist. The returned
// record has no id or created/updated timestamps; the store assigns those.
func (p Policy) Normalize(sub *models.Submission) (*models.TestResult, error) {
	if strings.TrimSpace(sub.UserID) == "" {
		return nil, ErrMissingUserID
	}

	results, resultsIsObject := asObject(sub.Results)
	analysis, analysisIsObject := asObject(sub.Analysis)
	if p.Strict {
		if sub.Results == nil {
			return nil, ErrMissingResults
		}
		if !resultsIsObject {
			return nil, ErrInvalidResults
		}
		if !analysisIsObject {
			return nil, ErrMissingAnalysis
		}
	}

	normalized, err := p.normalizeResults(results)
	if err != nil {
		return nil, err
	}

	record := &models.TestResult{
		UserID:          sub.UserID,
		TestDate:        time.Now(),
		Results:         normalized,
		Analysis:        normalizeAnalysis(analysis),
		SurveyResponses: objectOrEmpty(sub.SurveyResponses),
		DeviceInfo:      objectOrEmpty(sub.DeviceInfo),
	}
	if sub.TestDate != nil {
		record.TestDate = *sub.TestDate
	}
	return record, nil
}

// asObject reports whether a decoded JSON value is an object. Anything
// else (string, number, array, null) is not.
func asObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func objectOrEmpty(v any) map[string]any {
	if m, ok := v.(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{}
}

func (p Policy) normalizeResults(raw map[string]any) (models.ReactionTimes, error) {
	var out models.ReactionTimes
	fields := []struct {
		key  string
		dest *[]float64
	}{
		{"maleComputer", &out.MaleComputer},
		{"femaleSkincare", &out.FemaleSkincare},
		{"femaleComputer", &out.FemaleComputer},
		{"maleSkincare", &out.MaleSkincare},
	}
	for _, f := range fields {
		value, ok := raw[f.key]
		if !ok || value == nil {
			*f.dest = []float64{}
			continue
		}
		seq, ok := value.([]any)
		if !ok {
			if p.Strict {
				return out, ErrInvalidResults
			}
			*f.dest = []float64{}
			continue
		}
		*f.dest = filterReactionTimes(seq)
	}
	return out, nil
}

// filterReactionTimes keeps only positive finite numbers, so a stored
// sequence is never longer than the submitted one.
func filterReactionTimes(seq []any) []float64 {
	out := make([]float64, 0, len(seq))
	for _, entry := range seq {
		n, ok := toNumber(entry)
		if !ok || n <= 0 || math.IsNaN(n) || math.IsInf(n, 0) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func normalizeAnalysis(raw map[string]any) models.Analysis {
	a := models.Analysis{
		DScore:        numberField(raw, "dScore"),
		BiasType:      stringField(raw, "biasType"),
		BiasLevel:     stringField(raw, "biasLevel"),
		BiasDirection: stringField(raw, "biasDirection"),
		D1Score:       numberField(raw, "d1Score"),
		D2Score:       numberField(raw, "d2Score"),
		D3Score:       numberField(raw, "d3Score"),
		D4Score:       numberField(raw, "d4Score"),
	}
	if a.BiasLevel == "" {
		a.BiasLevel = models.DefaultBiasLevel
	}
	return a
}

// numberField coerces raw[key] to a float64, defaulting to 0 when the
// value is absent or not number-like.
func numberField(raw map[string]any, key string) float64 {
	if raw == nil {
		return 0
	}
	n, ok := toNumber(raw[key])
	if !ok {
		return 0
	}
	return n
}

func stringField(raw map[string]any, key string) string {
	if raw == nil {
		return ""
	}
	s, _ := raw[key].(string)
	return s
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
