package telemetry

import "context"

// Source produces device snapshots. Implementations own whatever session
// state the backend needs (an NVML handle, a binary path) and release it
// in Close.
type Source interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	Close() error
	Name() string
}
