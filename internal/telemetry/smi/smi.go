package smi

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"gpustat/internal/telemetry"
)

// Source samples via the nvidia-smi binary. Used when the NVML library
// cannot be loaded in-process (driver/library mismatch, no cgo).
type Source struct {
	BinaryPath string
}

func New(binaryPath string) *Source {
	binaryPath = strings.TrimSpace(binaryPath)
	if binaryPath == "" {
		binaryPath = "nvidia-smi"
	}
	return &Source{BinaryPath: binaryPath}
}

func (s *Source) Name() string { return "nvidia-smi" }

func (s *Source) Close() error { return nil }

func (s *Source) Snapshot(ctx context.Context) (telemetry.Snapshot, error) {
	gpus, driver, err := s.queryGPUs(ctx)
	if err != nil {
		return telemetry.Snapshot{}, err
	}

	// Index GPUs by UUID for process association.
	byUUID := map[string]*telemetry.GPU{}
	for i := range gpus {
		if gpus[i].UUID != "" {
			byUUID[gpus[i].UUID] = &gpus[i]
		}
	}

	procs, err := s.queryComputeProcs(ctx)
	if err != nil {
		// nvidia-smi returns non-zero when no compute apps; treat as empty.
		if !errors.Is(err, errNoResults) {
			return telemetry.Snapshot{}, err
		}
		procs = nil
	}

	for _, p := range procs {
		gpu := byUUID[p.GPUUUID]
		if gpu == nil {
			continue
		}
		gpu.Processes = append(gpu.Processes, telemetry.Process{PID: p.PID, MemoryMB: p.UsedMB})
	}

	return telemetry.Snapshot{DriverVersion: driver, GPUs: gpus}, nil
}

type procRow struct {
	GPUUUID string
	PID     int
	UsedMB  uint64
}

var errNoResults = errors.New("nvidia-smi no results")

func (s *Source) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.BinaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		se := strings.TrimSpace(stderr.String())
		// Some versions print "No running processes found" on stderr and exit non-zero.
		if strings.Contains(strings.ToLower(se), "no running") {
			return nil, errNoResults
		}
		return nil, fmt.Errorf("nvidia-smi failed: %w: %s", err, se)
	}
	return out, nil
}

func (s *Source) queryGPUs(ctx context.Context) ([]telemetry.GPU, string, error) {
	qctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := s.run(qctx,
		"--query-gpu=index,uuid,name,driver_version,temperature.gpu,utilization.gpu,memory.used,memory.total,fan.speed,power.draw,power.limit",
		"--format=csv,noheader,nounits",
	)
	if err != nil {
		return nil, "", err
	}
	gpus, driver := parseGPUs(out)
	return gpus, driver, nil
}

func parseGPUs(out []byte) ([]telemetry.GPU, string) {
	lines := readCSVLines(out)
	gpus := make([]telemetry.GPU, 0, len(lines))
	driver := ""
	for _, cols := range lines {
		if len(cols) < 8 {
			continue
		}
		idx, _ := strconv.Atoi(cols[0])
		temp, _ := strconv.Atoi(cols[4])
		util, _ := strconv.Atoi(cols[5])
		memUsed, _ := strconv.ParseUint(cols[6], 10, 64)
		memTotal, _ := strconv.ParseUint(cols[7], 10, 64)
		if driver == "" {
			driver = cols[3]
		}

		gpu := telemetry.GPU{
			Index:         idx,
			UUID:          cols[1],
			Name:          cols[2],
			Temperature:   temp,
			Utilization:   util,
			MemoryUsedMB:  memUsed,
			MemoryTotalMB: memTotal,
		}
		if len(cols) > 8 {
			gpu.FanSpeed = optionalPercent(cols[8])
		}
		if len(cols) > 9 {
			gpu.PowerUsageW = optionalWatts(cols[9])
		}
		if len(cols) > 10 {
			gpu.PowerLimitW = optionalWatts(cols[10])
		}
		gpus = append(gpus, gpu)
	}
	return gpus, driver
}

func (s *Source) queryComputeProcs(ctx context.Context) ([]procRow, error) {
	qctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := s.run(qctx,
		"--query-compute-apps=gpu_uuid,pid,used_gpu_memory",
		"--format=csv,noheader,nounits",
	)
	if err != nil {
		return nil, err
	}
	return parseComputeProcs(out), nil
}

func parseComputeProcs(out []byte) []procRow {
	lines := readCSVLines(out)
	rows := make([]procRow, 0, len(lines))
	for _, cols := range lines {
		if len(cols) < 3 {
			continue
		}
		pid, _ := strconv.Atoi(cols[1])
		memMiB, _ := strconv.ParseUint(cols[2], 10, 64)
		rows = append(rows, procRow{GPUUUID: cols[0], PID: pid, UsedMB: memMiB})
	}
	return rows
}

// Fan-less boards report "[N/A]" or "[Not Supported]" in place of a number.
func optionalPercent(col string) *int {
	v, err := strconv.Atoi(col)
	if err != nil {
		return nil
	}
	return &v
}

// power.draw is printed as a decimal number of watts, e.g. "42.57".
func optionalWatts(col string) *int {
	f, err := strconv.ParseFloat(col, 64)
	if err != nil {
		return nil
	}
	w := int(f)
	return &w
}

func readCSVLines(b []byte) [][]string {
	scanner := bufio.NewScanner(bytes.NewReader(b))
	out := [][]string{}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cols := strings.Split(line, ",")
		for i := range cols {
			cols[i] = strings.TrimSpace(cols[i])
		}
		out = append(out, cols)
	}
	return out
}
