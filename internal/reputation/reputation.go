// Package reputation implements the agent trust score store: scalar scores
// in [0,100], derived tiers, and an event log that is the only sanctioned
// way for other components to adjust scores.
package reputation

import (
	"sync"
	"time"

	"noesis/internal/logging"

	"github.com/google/uuid"
)

// NeutralScore is the default for agents that were never scored.
const NeutralScore = 50.0

// Tier is a discrete bucket over fixed score thresholds.
type Tier string

const (
	TierExceptional  Tier = "Exceptional"   // >= 90
	TierHigh         Tier = "High"          // >= 80
	TierGood         Tier = "Good"          // >= 70
	TierAverage      Tier = "Average"       // >= 60
	TierBelowAverage Tier = "Below Average" // >= 50
	TierPoor         Tier = "Poor"          // < 50
)

// Trend is a coarse direction indicator derived from recent events.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// Rating is the read view of one agent's reputation.
type Rating struct {
	AgentID     string    `json:"agent_id"`
	Score       float64   `json:"score"`
	Tier        Tier      `json:"tier"`
	Trend       Trend     `json:"trend"`
	Evaluations int       `json:"evaluations"` // Recorded events for this agent
	LastUpdated time.Time `json:"last_updated"`
}

// Change is the result of a Set: previous and new score plus the delta.
type Change struct {
	AgentID  string  `json:"agent_id"`
	OldScore float64 `json:"old_score"`
	NewScore float64 `json:"new_score"`
	Delta    float64 `json:"delta"`
	Reason   string  `json:"reason,omitempty"`
}

// Event is one logged reputation adjustment.
type Event struct {
	EventID   string    `json:"event_id"`
	AgentID   string    `json:"agent_id"`
	EventType string    `json:"event_type"`
	Outcome   string    `json:"outcome"`
	Impact    float64   `json:"impact"`
	OldScore  float64   `json:"old_score"`
	NewScore  float64   `json:"new_score"`
	Timestamp time.Time `json:"timestamp"`
}

// Recorder receives reputation events for persistence. Failures are logged
// and otherwise ignored; the in-memory store stays authoritative.
type Recorder interface {
	RecordReputationEvent(ev Event) error
}

// Store holds agent scores and their event history. Last-write-wins; all
// mutation goes through Set and LogEvent under the store's lock.
type Store struct {
	mu       sync.RWMutex
	scores   map[string]float64
	updated  map[string]time.Time
	events   map[string][]Event // Per agent, append order
	recorder Recorder
}

// NewStore creates an empty reputation store.
func NewStore() *Store {
	return &Store{
		scores:  make(map[string]float64),
		updated: make(map[string]time.Time),
		events:  make(map[string][]Event),
	}
}

// WithRecorder attaches a persistence recorder and returns the store.
func (s *Store) WithRecorder(r Recorder) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder = r
	return s
}

// Seed initializes scores for agents that have none. Existing scores are
// left untouched.
func (s *Store) Seed(agents []string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	score = clamp(score)
	now := time.Now().UTC()
	for _, agent := range agents {
		if _, ok := s.scores[agent]; !ok {
			s.scores[agent] = score
			s.updated[agent] = now
		}
	}
}

// Get returns the agent's current rating, defaulting to the neutral score
// for agents never set.
func (s *Store) Get(agentID string) Rating {
	s.mu.RLock()
	defer s.mu.RUnlock()

	score, ok := s.scores[agentID]
	if !ok {
		score = NeutralScore
	}
	return Rating{
		AgentID:     agentID,
		Score:       score,
		Tier:        TierFor(score),
		Trend:       s.trendLocked(agentID),
		Evaluations: len(s.events[agentID]),
		LastUpdated: s.updated[agentID],
	}
}

// Set assigns a score, clamped to [0,100], and returns the change.
func (s *Store) Set(agentID string, score float64, reason string) Change {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.scores[agentID]
	if !ok {
		old = NeutralScore
	}
	clamped := clamp(score)
	s.scores[agentID] = clamped
	s.updated[agentID] = time.Now().UTC()

	logging.Reputation("Set %s: %.1f -> %.1f (%s)", agentID, old, clamped, reason)
	return Change{
		AgentID:  agentID,
		OldScore: old,
		NewScore: clamped,
		Delta:    clamped - old,
		Reason:   reason,
	}
}

// LogEvent applies a bounded impact delta to the agent's score and returns
// an opaque event id. This is the only sanctioned way for other components
// to adjust reputation.
func (s *Store) LogEvent(agentID, eventType, outcome string, impact float64) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.scores[agentID]
	if !ok {
		old = NeutralScore
	}
	// Single events are bounded to +/-25 points.
	if impact > 25 {
		impact = 25
	} else if impact < -25 {
		impact = -25
	}
	newScore := clamp(old + impact)

	ev := Event{
		EventID:   "reputation_event_" + uuid.NewString(),
		AgentID:   agentID,
		EventType: eventType,
		Outcome:   outcome,
		Impact:    impact,
		OldScore:  old,
		NewScore:  newScore,
		Timestamp: time.Now().UTC(),
	}

	s.scores[agentID] = newScore
	s.updated[agentID] = ev.Timestamp
	s.events[agentID] = append(s.events[agentID], ev)

	if s.recorder != nil {
		if err := s.recorder.RecordReputationEvent(ev); err != nil {
			logging.Get(logging.CategoryReputation).Warn("Failed to persist event %s: %v", ev.EventID, err)
		}
	}

	logging.Reputation("Event %s for %s: %s/%s impact %.1f (%.1f -> %.1f)",
		ev.EventID, agentID, eventType, outcome, impact, old, newScore)
	return ev.EventID
}

// SnapshotFor returns a point-in-time copy of scores for the given agents,
// defaulting to neutral for unknown ones.
func (s *Store) SnapshotFor(agents []string) map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]float64, len(agents))
	for _, agent := range agents {
		if score, ok := s.scores[agent]; ok {
			out[agent] = score
		} else {
			out[agent] = NeutralScore
		}
	}
	return out
}

// EventsFor returns the agent's event history, oldest first.
func (s *Store) EventsFor(agentID string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event(nil), s.events[agentID]...)
}

// trendLocked derives the trend from the last few events. Caller holds at
// least a read lock.
func (s *Store) trendLocked(agentID string) Trend {
	events := s.events[agentID]
	if len(events) == 0 {
		return TrendStable
	}

	window := events
	if len(window) > 5 {
		window = window[len(window)-5:]
	}
	var sum float64
	for _, ev := range window {
		sum += ev.Impact
	}
	switch {
	case sum > 1.0:
		return TrendImproving
	case sum < -1.0:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// TierFor maps a score to its tier bucket.
func TierFor(score float64) Tier {
	switch {
	case score >= 90:
		return TierExceptional
	case score >= 80:
		return TierHigh
	case score >= 70:
		return TierGood
	case score >= 60:
		return TierAverage
	case score >= 50:
		return TierBelowAverage
	default:
		return TierPoor
	}
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
