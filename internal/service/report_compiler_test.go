package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prepview/prepview-backend/internal/model"
)

func TestWeightedMean(t *testing.T) {
	equal := WeightedMean{Spoken: 0.5, Coding: 0.5}
	if got := equal.Overall(70, 67); got != 68.5 {
		t.Errorf("equal weights: got %v, want 68.5", got)
	}

	skewed := WeightedMean{Spoken: 0.3, Coding: 0.7}
	if got := skewed.Overall(100, 0); got != 30 {
		t.Errorf("skewed weights: got %v, want 30", got)
	}

	// Degenerate zero weights must not divide by zero.
	if got := (WeightedMean{}).Overall(80, 80); got != 0 {
		t.Errorf("zero weights: got %v, want 0", got)
	}
}

func TestCompile(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	compiler := NewReportCompiler(WeightedMean{Spoken: 0.5, Coding: 0.5})

	sess := &model.Session{
		ID:    uuid.New(),
		Phase: model.PhaseCompleted,
		Answers: []model.SpokenAnswerRecord{
			{QuestionID: "q1", Score: 80},
			{QuestionID: "q2", Score: 60},
		},
		Tasks: []*model.CodingTask{
			{ID: "t1", State: model.SubmissionSubmitted, Score: 67},
			{ID: "t2", State: model.SubmissionNotSubmitted},
		},
	}

	report := compiler.Compile(sess, nil, now)

	if report.SpokenAverage != 70 {
		t.Errorf("SpokenAverage = %v, want 70", report.SpokenAverage)
	}
	if report.CodingAverage != 67 {
		t.Errorf("CodingAverage = %v, want 67 (unsubmitted tasks excluded)", report.CodingAverage)
	}
	if report.OverallScore != 68.5 {
		t.Errorf("OverallScore = %v, want 68.5", report.OverallScore)
	}
	if !report.CompletedAt.Equal(now) {
		t.Errorf("CompletedAt = %v, want %v", report.CompletedAt, now)
	}
	if report.SessionID != sess.ID {
		t.Errorf("SessionID = %v, want %v", report.SessionID, sess.ID)
	}
}

func TestCompileEmptyRounds(t *testing.T) {
	compiler := NewReportCompiler(WeightedMean{Spoken: 0.5, Coding: 0.5})
	sess := &model.Session{ID: uuid.New(), Phase: model.PhaseCompleted}

	report := compiler.Compile(sess, nil, time.Now())

	if report.SpokenAverage != 0 || report.CodingAverage != 0 || report.OverallScore != 0 {
		t.Errorf("empty session should score zero, got spoken=%v coding=%v overall=%v",
			report.SpokenAverage, report.CodingAverage, report.OverallScore)
	}
	if report.Proctor.TotalEvents != 0 {
		t.Errorf("TotalEvents = %d, want 0", report.Proctor.TotalEvents)
	}
}

func TestCompileProctorSummary(t *testing.T) {
	compiler := NewReportCompiler(WeightedMean{Spoken: 0.5, Coding: 0.5})
	sess := &model.Session{ID: uuid.New(), Phase: model.PhaseCompleted}

	events := []model.ProctorEvent{
		{Kind: model.ProctorTabSwitch, Severity: model.SeverityHigh},
		{Kind: model.ProctorLookingAway, Severity: model.SeverityLow},
		{Kind: model.ProctorTabSwitch, Severity: model.SeverityHigh},
		{Kind: model.ProctorNoFace, Severity: model.SeverityMedium},
	}

	report := compiler.Compile(sess, events, time.Now())

	if report.Proctor.TotalEvents != 4 {
		t.Errorf("TotalEvents = %d, want 4", report.Proctor.TotalEvents)
	}
	if report.Proctor.HighSeverity != 2 {
		t.Errorf("HighSeverity = %d, want 2", report.Proctor.HighSeverity)
	}
	wantKinds := []model.ProctorEventKind{model.ProctorTabSwitch, model.ProctorLookingAway, model.ProctorNoFace}
	if len(report.Proctor.DistinctKinds) != len(wantKinds) {
		t.Fatalf("DistinctKinds = %v, want %v", report.Proctor.DistinctKinds, wantKinds)
	}
	for i, k := range wantKinds {
		if report.Proctor.DistinctKinds[i] != k {
			t.Errorf("DistinctKinds[%d] = %v, want %v", i, report.Proctor.DistinctKinds[i], k)
		}
	}
}

func TestCompileRoundsToOneDecimal(t *testing.T) {
	compiler := NewReportCompiler(WeightedMean{Spoken: 0.5, Coding: 0.5})
	sess := &model.Session{
		ID:    uuid.New(),
		Phase: model.PhaseCompleted,
		Answers: []model.SpokenAnswerRecord{
			{QuestionID: "q1", Score: 70},
			{QuestionID: "q2", Score: 70},
			{QuestionID: "q3", Score: 71},
		},
	}

	report := compiler.Compile(sess, nil, time.Now())

	// 211/3 = 70.333... rounds to 70.3
	if report.SpokenAverage != 70.3 {
		t.Errorf("SpokenAverage = %v, want 70.3", report.SpokenAverage)
	}
	// (70.333... * 0.5) / 1 = 35.166... rounds to 35.2
	if report.OverallScore != 35.2 {
		t.Errorf("OverallScore = %v, want 35.2", report.OverallScore)
	}
}
