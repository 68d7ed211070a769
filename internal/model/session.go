package model

import (
	"time"

	"github.com/google/uuid"
)

// Phase enumerates the stages of a practice-interview session. A session
// only ever moves forward through these.
type Phase string

const (
	PhaseCreated      Phase = "created"
	PhaseInterviewing Phase = "interviewing"
	PhaseCoding       Phase = "coding"
	PhaseCompleted    Phase = "completed"
)

// Question is one spoken-interview question produced by the question
// provider collaborator.
type Question struct {
	ID             string   `json:"id"`
	Text           string   `json:"text"`
	Type           string   `json:"type"`
	Difficulty     string   `json:"difficulty"`
	ExpectedSkills []string `json:"expected_skills"`
}

// SpokenAnswerRecord holds the transcript and evaluation for one answered
// question. Records are immutable once created.
type SpokenAnswerRecord struct {
	QuestionID string    `json:"question_id"`
	Transcript string    `json:"transcript"`
	Score      int       `json:"score"`
	Feedback   string    `json:"feedback"`
	Strengths  []string  `json:"strengths"`
	Weaknesses []string  `json:"weaknesses"`
	AnsweredAt time.Time `json:"answered_at"`
}

// Session is one end-to-end practice-interview attempt.
type Session struct {
	ID            uuid.UUID            `json:"id"`
	Phase         Phase                `json:"phase"`
	JDSummary     string               `json:"jd_summary,omitempty"`
	ResumeSummary string               `json:"resume_summary,omitempty"`
	Questions     []Question           `json:"questions"`
	Answers       []SpokenAnswerRecord `json:"answers"`
	Tasks         []*CodingTask        `json:"tasks"`
	CreatedAt     time.Time            `json:"created_at"`
}

// CreateSessionRequest is the payload for creating a session. Summaries may
// be supplied inline or attached later via the document upload endpoints.
type CreateSessionRequest struct {
	JDSummary     string `json:"jd_summary" binding:"omitempty,max=8000"`
	ResumeSummary string `json:"resume_summary" binding:"omitempty,max=8000"`
}

// StartCodingRequest carries the optional skip signal for the
// interviewing→coding transition.
type StartCodingRequest struct {
	SkipRemaining bool `json:"skip_remaining"`
}
