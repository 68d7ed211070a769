package service

import (
	"math"
	"time"

	"github.com/prepview/prepview-backend/internal/model"
)

// WeightPolicy combines the spoken-round and coding-round averages into an
// overall score. It is pluggable so alternative weighting schemes can be
// substituted without touching the compiler.
type WeightPolicy interface {
	Overall(spokenAvg, codingAvg float64) float64
}

// WeightedMean is the default policy: a weighted arithmetic mean of the two
// round averages, normalized by the weight sum.
type WeightedMean struct {
	Spoken float64
	Coding float64
}

// Overall implements WeightPolicy.
func (w WeightedMean) Overall(spokenAvg, codingAvg float64) float64 {
	total := w.Spoken + w.Coding
	if total == 0 {
		return 0
	}
	return (spokenAvg*w.Spoken + codingAvg*w.Coding) / total
}

// ReportCompiler merges spoken-answer evaluations, coding scores, and the
// proctoring log into one immutable scorecard.
type ReportCompiler struct {
	policy WeightPolicy
}

// NewReportCompiler creates a ReportCompiler with the given weight policy.
func NewReportCompiler(policy WeightPolicy) *ReportCompiler {
	return &ReportCompiler{policy: policy}
}

// Compile builds the final report from a session snapshot and the full
// proctor event log. Missing rounds fail open to a 0 average rather than an
// error. All derived scores are rounded to one decimal; this rounding is
// part of the report contract.
func (c *ReportCompiler) Compile(s *model.Session, events []model.ProctorEvent, now time.Time) *model.Report {
	spokenAvg := spokenAverage(s.Answers)
	codingAvg := codingAverage(s.Tasks)

	return &model.Report{
		SessionID:     s.ID,
		OverallScore:  round1(c.policy.Overall(spokenAvg, codingAvg)),
		SpokenAverage: round1(spokenAvg),
		CodingAverage: round1(codingAvg),
		Answers:       s.Answers,
		Tasks:         s.Tasks,
		Proctor:       summarizeProctor(events),
		CompletedAt:   now,
	}
}

func spokenAverage(answers []model.SpokenAnswerRecord) float64 {
	if len(answers) == 0 {
		return 0
	}
	sum := 0
	for _, a := range answers {
		sum += a.Score
	}
	return float64(sum) / float64(len(answers))
}

// codingAverage averages the scores of tasks that produced an outcome set.
// An unsubmitted round contributes 0.
func codingAverage(tasks []*model.CodingTask) float64 {
	sum, n := 0, 0
	for _, t := range tasks {
		if t.State == model.SubmissionSubmitted {
			sum += t.Score
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

// summarizeProctor scans the full unbounded event log once.
func summarizeProctor(events []model.ProctorEvent) model.ProctorSummary {
	seen := make(map[model.ProctorEventKind]struct{})
	summary := model.ProctorSummary{
		DistinctKinds: []model.ProctorEventKind{},
	}

	for _, e := range events {
		summary.TotalEvents++
		if e.Severity == model.SeverityHigh {
			summary.HighSeverity++
		}
		if _, ok := seen[e.Kind]; !ok {
			seen[e.Kind] = struct{}{}
			summary.DistinctKinds = append(summary.DistinctKinds, e.Kind)
		}
	}

	return summary
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
