package flags

import "time"

// HistoryLimit bounds the pause changes kept for audit.
const HistoryLimit = 50

// State is the circuit breaker position and who last moved it.
type State struct {
	Paused    bool      `json:"paused"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}
