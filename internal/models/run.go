package models

// TriggerKind identifies who asked for an orchestration run.
type TriggerKind string

const (
	TriggerScheduled TriggerKind = "scheduled" // external scheduler carrying the shared secret
	TriggerManual    TriggerKind = "manual"    // admin surface
	TriggerInternal  TriggerKind = "internal"  // in-process scheduler or CLI
)

// Trigger describes the caller of a run and the credential it presented.
type Trigger struct {
	Kind       TriggerKind
	Credential string
}

// RunReport summarizes one orchestration run.
type RunReport struct {
	RunID          string   `json:"runId,omitempty"`
	Message        string   `json:"message"`
	ProcessedCount int      `json:"processedCount"`
	CreatedTitles  []string `json:"createdTitles"`
	Errors         []string `json:"errors"`
	RemainingCount int      `json:"remainingCount"`
}

// CreatedCount returns the number of records created during the run.
func (r RunReport) CreatedCount() int {
	return len(r.CreatedTitles)
}
