package report

import (
	"fmt"
	"strconv"
	"strings"

	"gpustat/internal/telemetry"
)

// Options selects which segments appear in a device line. Flags only
// change presentation, never the underlying attribution.
type Options struct {
	ShowUsers   bool
	ShowCmd     bool
	ShowFullCmd bool
	ShowPID     bool
	ShowFan     bool
	ShowCodec   bool
	ShowPower   bool
	ShowOther   bool

	// CmdWidth truncates full command lines; 0 means unlimited.
	CmdWidth int
}

// perProcess reports whether the attribution segment expands to one cell
// per process instead of one aggregated cell per user.
func (o Options) perProcess() bool {
	return o.ShowCmd || o.ShowFullCmd || o.ShowPID
}

// Header renders the host line printed before the device lines.
func Header(snap telemetry.Snapshot) string {
	return fmt.Sprintf("%s\t%s\t%s",
		snap.Hostname,
		snap.Timestamp.Format("2006-01-02 15:04:05"),
		snap.DriverVersion)
}

// Line renders one device and its attribution:
//
//	[0] A100-PCIE-40GB | 65'C | 75 % | 33409 / 40536 MB | along(33407M)
func Line(gpu telemetry.GPU, attr Attribution, opts Options) string {
	segments := []string{
		indexColor.Sprintf("[%d]", gpu.Index) + " " + nameColor.Sprint(gpu.Name),
		tempScale.Sprintf(gpu.Temperature, "%d'C", gpu.Temperature),
		utilScale.Sprintf(gpu.Utilization, "%d %%", gpu.Utilization),
	}

	if opts.ShowFan {
		segments = append(segments, fanSegment(gpu.FanSpeed))
	}
	if opts.ShowCodec {
		segments = append(segments,
			codecSegment("E", gpu.EncoderUtil),
			codecSegment("D", gpu.DecoderUtil))
	}
	if opts.ShowPower && gpu.PowerUsageW != nil && gpu.PowerLimitW != nil {
		segments = append(segments, powerSegment(*gpu.PowerUsageW, *gpu.PowerLimitW))
	}

	segments = append(segments, memorySegment(gpu))

	if users := usersSegment(attr, opts); users != "" {
		segments = append(segments, users)
	}

	return strings.Join(segments, " | ")
}

func fanSegment(fan *int) string {
	if fan == nil {
		return fanScale.Colors[0].Sprint("F: ?")
	}
	return fanScale.Sprintf(*fan, "F: %d %%", *fan)
}

func codecSegment(tag string, util *int) string {
	if util == nil {
		return codecColor.Sprintf("%s: ?", tag)
	}
	return codecColor.Sprintf("%s: %d %%", tag, *util)
}

func powerSegment(usage, limit int) string {
	pct := 0
	if limit > 0 {
		pct = usage * 100 / limit
	}
	return capacityScale.Sprintf(pct, "%d / %d W", usage, limit)
}

func memorySegment(gpu telemetry.GPU) string {
	pct := 0
	if gpu.MemoryTotalMB > 0 {
		pct = int(gpu.MemoryUsedMB * 100 / gpu.MemoryTotalMB)
	}
	return capacityScale.Sprintf(pct, "%d / %d MB", gpu.MemoryUsedMB, gpu.MemoryTotalMB)
}

func usersSegment(attr Attribution, opts Options) string {
	if !opts.ShowUsers {
		return ""
	}
	cells := make([]string, 0, len(attr.Users)+1)
	for _, u := range attr.Users {
		if opts.perProcess() {
			for _, p := range u.Procs {
				cells = append(cells, userColor.Sprintf("%s(%dM)", procLabel(u.Username, p, opts), p.MemoryMB))
			}
			continue
		}
		cells = append(cells, userColor.Sprintf("%s(%dM)", u.Username, u.MemoryMB))
	}
	if opts.ShowOther && attr.OtherMB > 0 {
		cells = append(cells, userColor.Sprintf("other(%dM)", attr.OtherMB))
	}
	return strings.Join(cells, " ")
}

func procLabel(user string, p ProcDetail, opts Options) string {
	label := user
	switch {
	case opts.ShowFullCmd:
		label += ":" + orPlaceholder(truncate(p.Cmdline, opts.CmdWidth))
	case opts.ShowCmd:
		label += ":" + orPlaceholder(p.Name)
	}
	if opts.ShowPID {
		label += "/" + strconv.Itoa(p.PID)
	}
	return label
}

func orPlaceholder(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

func truncate(s string, width int) string {
	if width <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width])
}
