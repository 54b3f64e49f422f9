package models

import "time"

// Submission is the raw create-request body before validation. The
// substructures stay untyped so the validation policy, not JSON binding,
// decides between rejecting and repairing malformed shapes; a permissive
// deployment accepts any shape here.
type Submission struct {
	UserID          string     `json:"userId"`
	TestDate        *time.Time `json:"testDate,omitempty"`
	Results         any        `json:"results"`
	Analysis        any        `json:"analysis"`
	SurveyResponses any        `json:"surveyResponses,omitempty"`
	DeviceInfo      any        `json:"deviceInfo,omitempty"`
}
