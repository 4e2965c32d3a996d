package nvmlsource

import (
	"context"
	"fmt"
	"math"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"gpustat/internal/telemetry"
)

// Session is the NVML-backed telemetry source (go-nvml cgo bindings).
// It owns the library handle: Init acquires it, Close releases it, and
// every caller is expected to Close on all exit paths.
type Session struct {
	initialized bool
}

func New() *Session {
	return &Session{}
}

func (s *Session) Init() error {
	if s.initialized {
		return nil
	}
	ret := nvml.Init()
	if ret != nvml.SUCCESS {
		return fmt.Errorf("nvml init failed: %s", nvml.ErrorString(ret))
	}
	s.initialized = true
	return nil
}

func (s *Session) Name() string { return "nvml" }

func (s *Session) Close() error {
	if !s.initialized {
		return nil
	}
	_ = nvml.Shutdown()
	s.initialized = false
	return nil
}

func (s *Session) Snapshot(ctx context.Context) (telemetry.Snapshot, error) {
	_ = ctx
	if err := s.Init(); err != nil {
		return telemetry.Snapshot{}, err
	}

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return telemetry.Snapshot{}, fmt.Errorf("nvml device get count failed: %s", nvml.ErrorString(ret))
	}

	snap := telemetry.Snapshot{GPUs: make([]telemetry.GPU, 0, count)}
	if driver, ret := nvml.SystemGetDriverVersion(); ret == nvml.SUCCESS {
		snap.DriverVersion = driver
	}

	for i := 0; i < count; i++ {
		dev, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			return telemetry.Snapshot{}, fmt.Errorf("nvml get handle index=%d failed: %s", i, nvml.ErrorString(ret))
		}
		snap.GPUs = append(snap.GPUs, readDevice(i, dev))
	}

	return snap, nil
}

// readDevice fills one GPU capture. Secondary sensors (fan, codec, power)
// are best-effort: a failed read leaves the field nil rather than failing
// the snapshot.
func readDevice(index int, dev nvml.Device) telemetry.GPU {
	gpu := telemetry.GPU{Index: index}

	gpu.UUID, _ = dev.GetUUID()
	gpu.Name, _ = dev.GetName()

	if temp, ret := dev.GetTemperature(nvml.TEMPERATURE_GPU); ret == nvml.SUCCESS {
		gpu.Temperature = int(temp)
	}
	if util, ret := dev.GetUtilizationRates(); ret == nvml.SUCCESS {
		gpu.Utilization = int(util.Gpu)
	}
	if mem, ret := dev.GetMemoryInfo(); ret == nvml.SUCCESS {
		gpu.MemoryUsedMB = mem.Used >> 20
		gpu.MemoryTotalMB = mem.Total >> 20
	}

	if fan, ret := dev.GetFanSpeed(); ret == nvml.SUCCESS {
		gpu.FanSpeed = intPtr(int(fan))
	}
	if enc, _, ret := dev.GetEncoderUtilization(); ret == nvml.SUCCESS {
		gpu.EncoderUtil = intPtr(int(enc))
	}
	if dec, _, ret := dev.GetDecoderUtilization(); ret == nvml.SUCCESS {
		gpu.DecoderUtil = intPtr(int(dec))
	}
	if mw, ret := dev.GetPowerUsage(); ret == nvml.SUCCESS {
		gpu.PowerUsageW = intPtr(int(mw) / 1000)
	}
	if mw, ret := dev.GetPowerManagementLimit(); ret == nvml.SUCCESS {
		gpu.PowerLimitW = intPtr(int(mw) / 1000)
	}

	if procs, ret := dev.GetComputeRunningProcesses(); ret == nvml.SUCCESS {
		gpu.Processes = make([]telemetry.Process, 0, len(procs))
		for _, p := range procs {
			gpu.Processes = append(gpu.Processes, telemetry.Process{
				PID:      int(p.Pid),
				MemoryMB: usedMB(p.UsedGpuMemory),
			})
		}
	}

	return gpu
}

// Drivers that cannot attribute per-process memory report the all-ones
// sentinel instead of a byte count.
func usedMB(usedBytes uint64) uint64 {
	if usedBytes == math.MaxUint64 {
		return 0
	}
	return usedBytes >> 20
}

func intPtr(v int) *int { return &v }
