package model

import (
	"time"
)

// RunRecord is the shell's view of a run it started on behalf of an operator.
type RunRecord struct {
	ID             int                 `json:"ejecucion_id"`
	Owner          string              `json:"owner"`
	Config         ConsolidationConfig `json:"config"`
	MasterFile     string              `json:"master_file"`
	MasterObject   string              `json:"master_object,omitempty"`
	IdempotencyKey string              `json:"idempotency_key,omitempty"`
	Progress       RunProgress         `json:"progress"`
	ErrorMsg       string              `json:"error_msg,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// Apply folds a fresh observation into the record and returns the observation
// as it should be reported. Percent and processed counts never move backwards,
// and a terminal state is final.
func (r *RunRecord) Apply(p RunProgress) RunProgress {
	prev := r.Progress
	if prev.State.IsTerminal() {
		return prev
	}

	if p.Percent < prev.Percent {
		p.Percent = prev.Percent
	}
	if p.Percent > 100 {
		p.Percent = 100
	}
	if p.Percent < 0 {
		p.Percent = 0
	}
	if p.TotalContracts > 0 && p.ContractsProcessed > p.TotalContracts {
		p.ContractsProcessed = p.TotalContracts
	}
	if p.ContractsProcessed < prev.ContractsProcessed {
		p.ContractsProcessed = prev.ContractsProcessed
	}
	if p.RunID == 0 {
		p.RunID = r.ID
	}

	r.Progress = p
	r.UpdatedAt = time.Now()
	return p
}
