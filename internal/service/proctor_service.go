package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prepview/prepview-backend/internal/config"
	"github.com/prepview/prepview-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// Cooldown windows between two emitted alerts of the same
	// (kind, severity) pair within one session.
	cooldownHigh    = 5 * time.Second
	cooldownDefault = 15 * time.Second

	// recentWindow bounds the trailing buffer used for live display.
	recentWindow = 10

	dispatchTimeout = 3 * time.Second
)

type cooldownKey struct {
	kind     model.ProctorEventKind
	severity model.Severity
}

// proctorState is the per-session aggregation state.
type proctorState struct {
	lastEmitted  map[cooldownKey]time.Time
	log          []model.ProctorEvent
	recent       []model.ProctorEvent
	listeners    map[int]func(model.ProctorEvent)
	nextListener int
}

// ProctorService deduplicates and rate-limits raw integrity signals into a
// bounded alert stream. The suppression decision is a pure in-memory
// comparison; durable persistence and notifications are dispatched off the
// detection loop's path.
type ProctorService struct {
	rdb *redis.Client
	log zerolog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*proctorState

	// now is swappable in tests.
	now func() time.Time
}

// NewProctorService creates a ProctorService. rdb may be nil, in which case
// events are kept in memory only (tests).
func NewProctorService(rdb *redis.Client, log zerolog.Logger) *ProctorService {
	return &ProctorService{
		rdb:      rdb,
		log:      log.With().Str("component", "proctor_service").Logger(),
		sessions: make(map[uuid.UUID]*proctorState),
		now:      time.Now,
	}
}

// Ingest applies the cooldown filter to one raw detection. It returns the
// emitted event, or false if the signal was suppressed. Suppressed signals
// are dropped silently. It never blocks on I/O.
func (s *ProctorService) Ingest(sessionID uuid.UUID, kind model.ProctorEventKind, severity model.Severity, detail string) (model.ProctorEvent, bool) {
	now := s.now()
	key := cooldownKey{kind: kind, severity: severity}

	cooldown := cooldownDefault
	if severity == model.SeverityHigh {
		cooldown = cooldownHigh
	}

	s.mu.Lock()
	st, ok := s.sessions[sessionID]
	if !ok {
		st = &proctorState{
			lastEmitted: make(map[cooldownKey]time.Time),
			listeners:   make(map[int]func(model.ProctorEvent)),
		}
		s.sessions[sessionID] = st
	}

	if last, seen := st.lastEmitted[key]; seen && now.Sub(last) < cooldown {
		s.mu.Unlock()
		return model.ProctorEvent{}, false
	}

	event := model.ProctorEvent{
		Kind:      kind,
		Severity:  severity,
		Detail:    detail,
		Timestamp: now,
	}

	st.lastEmitted[key] = now
	st.log = append(st.log, event)
	st.recent = append(st.recent, event)
	if len(st.recent) > recentWindow {
		st.recent = st.recent[len(st.recent)-recentWindow:]
	}

	listeners := make([]func(model.ProctorEvent), 0, len(st.listeners))
	for _, fn := range st.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	// Persistence and fan-out must not block the ~2s detection loop.
	go s.dispatch(sessionID, event, listeners)

	return event, true
}

// Recent returns the bounded trailing window of emitted events.
func (s *ProctorService) Recent(sessionID uuid.UUID) []model.ProctorEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return []model.ProctorEvent{}
	}
	out := make([]model.ProctorEvent, len(st.recent))
	copy(out, st.recent)
	return out
}

// Events returns a copy of the full unbounded event log, used by the
// report compiler at session completion.
func (s *ProctorService) Events(sessionID uuid.UUID) []model.ProctorEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]model.ProctorEvent, len(st.log))
	copy(out, st.log)
	return out
}

// Subscribe registers an in-process listener for emitted alerts (open
// coding channels push these to the client). The returned function cancels
// the subscription.
func (s *ProctorService) Subscribe(sessionID uuid.UUID, fn func(model.ProctorEvent)) func() {
	s.mu.Lock()
	st, ok := s.sessions[sessionID]
	if !ok {
		st = &proctorState{
			lastEmitted: make(map[cooldownKey]time.Time),
			listeners:   make(map[int]func(model.ProctorEvent)),
		}
		s.sessions[sessionID] = st
	}
	id := st.nextListener
	st.nextListener++
	st.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		if st, ok := s.sessions[sessionID]; ok {
			delete(st.listeners, id)
		}
		s.mu.Unlock()
	}
}

// Evict drops all aggregation state for a session (after completion plus
// the retention window).
func (s *ProctorService) Evict(sessionID uuid.UUID) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// persistPayload is the queue entry consumed by the proctor worker.
type persistPayload struct {
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
	Severity  string `json:"severity"`
	Detail    string `json:"detail"`
	Timestamp int64  `json:"timestamp"`
}

// dispatch pushes the emitted event to the durable persistence queue, the
// live-monitor pub/sub channel, and any in-process listeners.
func (s *ProctorService) dispatch(sessionID uuid.UUID, event model.ProctorEvent, listeners []func(model.ProctorEvent)) {
	for _, fn := range listeners {
		fn(event)
	}

	if s.rdb == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	raw, _ := json.Marshal(persistPayload{
		SessionID: sessionID.String(),
		Kind:      string(event.Kind),
		Severity:  string(event.Severity),
		Detail:    event.Detail,
		Timestamp: event.Timestamp.Unix(),
	})
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistProctorEventsQueue, raw).Err(); err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Failed to enqueue proctor event")
	}

	alert, _ := json.Marshal(event)
	if err := s.rdb.Publish(ctx, config.CacheKey.SessionMonitorChannel(sessionID.String()), alert).Err(); err != nil {
		s.log.Debug().Err(err).Msg("Monitor publish failed")
	}
}
