package domain

import "context"

// PatternSource produces candidate patterns from OHLCV data. The
// detectors themselves live outside this core; patterns arrive opaque.
type PatternSource interface {
	Detect(symbol string, bars []Bar) ([]Pattern, error)
}

// Fill reports an execution result back from the broker adapter.
type Fill struct {
	Symbol   string  `json:"symbol"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	OrderID  string  `json:"order_id"`
}

// ExecutionAdapter accepts a validated signal for execution. Failures
// are logged by the caller, never retried by this core.
type ExecutionAdapter interface {
	Execute(ctx context.Context, outcome ValidationOutcome) (*Fill, error)
}

// AuditSink records audit events. The sink must be append-only and must
// not reorder or drop events; best-effort retry is acceptable, silent
// drop is not.
type AuditSink interface {
	Record(event AuditEvent) error
}

// KillSwitch is the external gate checked at pipeline entry. When
// engaged, no new pattern enters stage 1; in-flight evaluations
// complete normally.
type KillSwitch interface {
	Engaged() bool
}
