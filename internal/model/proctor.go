package model

import "time"

// ProctorEventKind enumerates the integrity signals produced by the
// client-side detection loop.
type ProctorEventKind string

const (
	ProctorNoFace        ProctorEventKind = "no_face"
	ProctorMultipleFaces ProctorEventKind = "multiple_faces"
	ProctorLookingAway   ProctorEventKind = "looking_away"
	ProctorTabSwitch     ProctorEventKind = "tab_switch"
	ProctorPaste         ProctorEventKind = "paste"
)

// Severity of a proctor event.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ProctorEvent is one emitted integrity-monitoring signal. Events are
// append-only, ordered by arrival.
type ProctorEvent struct {
	Kind      ProctorEventKind `json:"kind"`
	Severity  Severity         `json:"severity"`
	Detail    string           `json:"detail,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Message renders the event as a human-readable alert line. The free-text
// detail wins when the detector supplied one.
func (e ProctorEvent) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	switch e.Kind {
	case ProctorNoFace:
		return "No face detected"
	case ProctorMultipleFaces:
		return "Multiple faces detected"
	case ProctorLookingAway:
		return "Candidate is looking away"
	case ProctorTabSwitch:
		return "Tab switch detected"
	case ProctorPaste:
		return "Paste detected"
	default:
		return string(e.Kind)
	}
}

// ProctorSummary is derived from the full event log at report time.
type ProctorSummary struct {
	TotalEvents   int                `json:"total_events"`
	HighSeverity  int                `json:"high_severity_events"`
	DistinctKinds []ProctorEventKind `json:"event_kinds"`
}

// ProctorEventRequest is the ingest payload from the detection poll.
type ProctorEventRequest struct {
	Kind     ProctorEventKind `json:"kind" binding:"required,oneof=no_face multiple_faces looking_away tab_switch paste"`
	Severity Severity         `json:"severity" binding:"required,oneof=low medium high"`
	Detail   string           `json:"detail" binding:"omitempty,max=500"`
}
