package recorder

import "github.com/ginjaninja78/concourse/internal/settlement"

// NoopRecorder is a no-op implementation used when no history database is
// configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ *Run) error           { return nil }
func (n *NoopRecorder) Runs(_ int) ([]RunSummary, error) { return nil, nil }
func (n *NoopRecorder) Close() error                     { return nil }

func (n *NoopRecorder) Transactions(_ string) (settlement.Settlement, error) {
	return settlement.Settlement{}, nil
}
