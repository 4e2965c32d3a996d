package smi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gpuFixture = `0, GPU-7a5b1c0d, NVIDIA A100-PCIE-40GB, 535.104.05, 65, 75, 33409, 40536, [N/A], 247.31, 250.00
1, GPU-9f2e4a11, NVIDIA GeForce RTX 3090, 535.104.05, 41, 3, 512, 24576, 38, 101.50, 350.00
`

func TestParseGPUs(t *testing.T) {
	gpus, driver := parseGPUs([]byte(gpuFixture))
	require.Len(t, gpus, 2)
	assert.Equal(t, "535.104.05", driver)

	a100 := gpus[0]
	assert.Equal(t, 0, a100.Index)
	assert.Equal(t, "GPU-7a5b1c0d", a100.UUID)
	assert.Equal(t, "NVIDIA A100-PCIE-40GB", a100.Name)
	assert.Equal(t, 65, a100.Temperature)
	assert.Equal(t, 75, a100.Utilization)
	assert.Equal(t, uint64(33409), a100.MemoryUsedMB)
	assert.Equal(t, uint64(40536), a100.MemoryTotalMB)
	assert.Nil(t, a100.FanSpeed, "[N/A] fan must parse to absent")
	require.NotNil(t, a100.PowerUsageW)
	assert.Equal(t, 247, *a100.PowerUsageW)
	require.NotNil(t, a100.PowerLimitW)
	assert.Equal(t, 250, *a100.PowerLimitW)

	rtx := gpus[1]
	require.NotNil(t, rtx.FanSpeed)
	assert.Equal(t, 38, *rtx.FanSpeed)
}

func TestParseGPUsSkipsShortLines(t *testing.T) {
	gpus, _ := parseGPUs([]byte("garbage line\n\n0, uuid, name\n"))
	assert.Empty(t, gpus)
}

func TestParseComputeProcs(t *testing.T) {
	out := []byte(`GPU-7a5b1c0d, 4021, 33407
GPU-9f2e4a11, 812, 256
GPU-9f2e4a11, 813, 256
`)
	rows := parseComputeProcs(out)
	require.Len(t, rows, 3)
	assert.Equal(t, procRow{GPUUUID: "GPU-7a5b1c0d", PID: 4021, UsedMB: 33407}, rows[0])
	assert.Equal(t, procRow{GPUUUID: "GPU-9f2e4a11", PID: 813, UsedMB: 256}, rows[2])
}

func TestNewDefaultsBinary(t *testing.T) {
	assert.Equal(t, "nvidia-smi", New("").BinaryPath)
	assert.Equal(t, "/opt/bin/nvidia-smi", New(" /opt/bin/nvidia-smi ").BinaryPath)
}
