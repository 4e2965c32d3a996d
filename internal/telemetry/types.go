package telemetry

import "time"

// Process is one compute process active on a GPU as reported by the
// telemetry source. Memory is in MiB; a source that cannot determine
// per-process usage reports 0.
type Process struct {
	PID      int
	MemoryMB uint64
}

// GPU is a one-time capture of a single device's state, in PCI bus order.
// Optional fields are nil when the device lacks the sensor or the source
// cannot read it; that is a per-field degradation, not an error.
type GPU struct {
	Index         int
	UUID          string
	Name          string
	Temperature   int // degrees C
	Utilization   int // percent
	MemoryUsedMB  uint64
	MemoryTotalMB uint64

	FanSpeed    *int // percent
	EncoderUtil *int // percent
	DecoderUtil *int // percent
	PowerUsageW *int
	PowerLimitW *int

	Processes []Process
}

// Snapshot is everything a single report run reads from the source.
// Immutable once captured; lifetime is one program invocation.
type Snapshot struct {
	Hostname      string
	Timestamp     time.Time
	DriverVersion string
	GPUs          []GPU
}
