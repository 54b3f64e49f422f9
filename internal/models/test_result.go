package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultBiasLevel labels submissions whose analysis reports no measurable bias.
const DefaultBiasLevel = "no or negligible bias"

// TestResult is one completed IAT session as stored in the test_results
// collection. Records are immutable once created; only the store touches
// the timestamps.
type TestResult struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          string             `bson:"userId" json:"userId"`
	TestDate        time.Time          `bson:"testDate" json:"testDate"`
	Results         ReactionTimes      `bson:"results" json:"results"`
	Analysis        Analysis           `bson:"analysis" json:"analysis"`
	SurveyResponses map[string]any     `bson:"surveyResponses,omitempty" json:"surveyResponses,omitempty"`
	DeviceInfo      map[string]any     `bson:"deviceInfo,omitempty" json:"deviceInfo,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt,omitempty" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt,omitempty" json:"updatedAt"`
}

// ReactionTimes holds the raw per-pairing reaction times in milliseconds.
// Each sequence contains only positive values; empty means the pairing
// block produced no usable measurements.
type ReactionTimes struct {
	MaleComputer   []float64 `bson:"maleComputer" json:"maleComputer"`
	FemaleSkincare []float64 `bson:"femaleSkincare" json:"femaleSkincare"`
	FemaleComputer []float64 `bson:"femaleComputer" json:"femaleComputer"`
	MaleSkincare   []float64 `bson:"maleSkincare" json:"maleSkincare"`
}

// Analysis carries the caller-computed bias metrics. The store never
// recomputes or checks these values.
type Analysis struct {
	DScore        float64 `bson:"dScore" json:"dScore"`
	BiasType      string  `bson:"biasType,omitempty" json:"biasType,omitempty"`
	BiasLevel     string  `bson:"biasLevel" json:"biasLevel"`
	BiasDirection string  `bson:"biasDirection,omitempty" json:"biasDirection,omitempty"`
	D1Score       float64 `bson:"d1Score" json:"d1Score"`
	D2Score       float64 `bson:"d2Score" json:"d2Score"`
	D3Score       float64 `bson:"d3Score" json:"d3Score"`
	D4Score       float64 `bson:"d4Score" json:"d4Score"`
}

// CreateReceipt is what the service echoes back after persisting a record.
type CreateReceipt struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	TestDate  time.Time `json:"testDate"`
	CreatedAt time.Time `json:"createdAt"`
}
