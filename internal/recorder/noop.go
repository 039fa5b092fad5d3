package recorder

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordDeploy(_ *DeployEvent) error         { return nil }
func (n *NoopRecorder) RecordStake(_ *StakeEvent) error           { return nil }
func (n *NoopRecorder) RecordWithdraw(_ *WithdrawEvent) error     { return nil }
func (n *NoopRecorder) RecordValidation(_ *ValidationEvent) error { return nil }
func (n *NoopRecorder) Close() error                              { return nil }
