package model

import (
	"time"

	"github.com/google/uuid"
)

// Report is the final scorecard for a completed session. It is created
// exactly once, at the coding→completed transition, and never mutated.
type Report struct {
	SessionID     uuid.UUID            `json:"session_id"`
	OverallScore  float64              `json:"overall_score"`
	SpokenAverage float64              `json:"spoken_average"`
	CodingAverage float64              `json:"coding_average"`
	Answers       []SpokenAnswerRecord `json:"answers"`
	Tasks         []*CodingTask        `json:"coding_tasks"`
	Proctor       ProctorSummary       `json:"proctor_summary"`
	CompletedAt   time.Time            `json:"completed_at"`
}
