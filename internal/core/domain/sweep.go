package domain

import "time"

// SweepState is the state of a reconciliation sweep.
type SweepState string

const (
	SweepWalking     SweepState = "walking"
	SweepReconciling SweepState = "reconciling"
	SweepDone        SweepState = "done"
	SweepAborted     SweepState = "aborted"
)

// SweepReport describes the outcome of one UpdateCache run. It is also the
// payload of the sweep event; State is its discriminator.
type SweepReport struct {
	ID             string     `json:"id"`
	State          SweepState `json:"state"`
	RemoveUnlisted bool       `json:"remove_unlisted_models"`
	Visited        int        `json:"visited"`
	Pruned         []string   `json:"pruned,omitempty"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     time.Time  `json:"finished_at"`
}

// SweepRequest asks for an UpdateCache run. It arrives over the sweep
// request queue or the HTTP API.
type SweepRequest struct {
	RemoveUnlistedModels *bool `json:"remove_unlisted_models,omitempty"`
}

// RemoveUnlisted resolves the request flag; pruning is the default.
func (r SweepRequest) RemoveUnlisted() bool {
	if r.RemoveUnlistedModels == nil {
		return true
	}
	return *r.RemoveUnlistedModels
}
