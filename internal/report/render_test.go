package report

import (
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"gpustat/internal/owner"
	"gpustat/internal/telemetry"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func intp(v int) *int { return &v }

func TestLineScenario(t *testing.T) {
	gpu := telemetry.GPU{
		Index:         0,
		Name:          "A100-PCIE-40GB",
		Temperature:   65,
		Utilization:   75,
		MemoryUsedMB:  33409,
		MemoryTotalMB: 40536,
		Processes:     []telemetry.Process{{PID: 4021, MemoryMB: 33407}},
	}
	attr := Aggregate(gpu, map[int]owner.Owner{4021: resolved(4021, "along")})

	line := Line(gpu, attr, Options{ShowUsers: true})
	assert.Equal(t, "[0] A100-PCIE-40GB | 65'C | 75 % | 33409 / 40536 MB | along(33407M)", line)
}

func TestLineNoProcesses(t *testing.T) {
	gpu := telemetry.GPU{
		Index:         1,
		Name:          "GeForce RTX 3090",
		Temperature:   41,
		Utilization:   3,
		MemoryUsedMB:  512,
		MemoryTotalMB: 24576,
	}
	line := Line(gpu, Aggregate(gpu, nil), Options{ShowUsers: true})
	assert.Equal(t, "[1] GeForce RTX 3090 | 41'C | 3 % | 512 / 24576 MB", line)
}

func TestLineFanSegment(t *testing.T) {
	gpu := telemetry.GPU{Index: 0, Name: "G", FanSpeed: intp(38), MemoryTotalMB: 1024}
	line := Line(gpu, Attribution{}, Options{ShowFan: true})
	assert.Contains(t, line, "| F: 38 % |")

	gpu.FanSpeed = nil
	line = Line(gpu, Attribution{}, Options{ShowFan: true})
	assert.Contains(t, line, "| F: ? |", "missing sensor renders a placeholder")
}

func TestLineCodecAndPower(t *testing.T) {
	gpu := telemetry.GPU{
		Index: 0, Name: "G",
		EncoderUtil: intp(12), DecoderUtil: intp(0),
		PowerUsageW: intp(120), PowerLimitW: intp(250),
		MemoryUsedMB: 100, MemoryTotalMB: 1024,
	}
	line := Line(gpu, Attribution{}, Options{ShowCodec: true, ShowPower: true})
	assert.Equal(t, "[0] G | 0'C | 0 % | E: 12 % | D: 0 % | 120 / 250 W | 100 / 1024 MB", line)
}

func TestLineUnresolvedBucket(t *testing.T) {
	gpu := telemetry.GPU{
		Index: 0, Name: "G",
		MemoryUsedMB: 300, MemoryTotalMB: 1024,
		Processes: []telemetry.Process{{PID: 99, MemoryMB: 300}},
	}
	attr := Aggregate(gpu, map[int]owner.Owner{99: {PID: 99}})
	line := Line(gpu, attr, Options{ShowUsers: true})
	assert.Contains(t, line, "?(300M)")
}

func TestLinePerProcessDetail(t *testing.T) {
	gpu := telemetry.GPU{
		Index: 0, Name: "G",
		MemoryUsedMB: 700, MemoryTotalMB: 8192,
		Processes: []telemetry.Process{
			{PID: 10, MemoryMB: 500},
			{PID: 11, MemoryMB: 200},
		},
	}
	owners := map[int]owner.Owner{
		10: {PID: 10, Username: "alice", Resolved: true, Name: "python", Cmdline: "python train.py --epochs 100"},
		11: {PID: 11, Username: "alice", Resolved: true, Name: "python", Cmdline: "python eval.py"},
	}
	attr := Aggregate(gpu, owners)

	line := Line(gpu, attr, Options{ShowUsers: true, ShowCmd: true, ShowPID: true})
	assert.Contains(t, line, "alice:python/10(500M) alice:python/11(200M)")

	line = Line(gpu, attr, Options{ShowUsers: true, ShowFullCmd: true, CmdWidth: 12})
	assert.Contains(t, line, "alice:python train(500M)")
}

func TestLineOtherBucket(t *testing.T) {
	gpu := telemetry.GPU{
		Index: 0, Name: "G",
		MemoryUsedMB: 1000, MemoryTotalMB: 8192,
		Processes: []telemetry.Process{{PID: 10, MemoryMB: 600}},
	}
	attr := Aggregate(gpu, map[int]owner.Owner{10: resolved(10, "alice")})

	assert.NotContains(t, Line(gpu, attr, Options{ShowUsers: true}), "other(")
	assert.Contains(t, Line(gpu, attr, Options{ShowUsers: true, ShowOther: true}), "alice(600M) other(400M)")
}

func TestHeader(t *testing.T) {
	snap := telemetry.Snapshot{
		Hostname:      "node-a",
		Timestamp:     time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC),
		DriverVersion: "535.104.05",
	}
	assert.Equal(t, "node-a\t2026-08-28 10:30:00\t535.104.05", Header(snap))
}
