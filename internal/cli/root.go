// Package cli wires the snapshot pipeline behind a cobra command:
// acquire the telemetry session, capture once, resolve owners, aggregate,
// print one line per device, exit.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gpustat/internal/config"
	"gpustat/internal/logger"
	"gpustat/internal/owner"
	"gpustat/internal/report"
	"gpustat/internal/telemetry"
	nvmlsource "gpustat/internal/telemetry/nvml"
	"gpustat/internal/telemetry/smi"
)

const version = "0.2.0"

// SourceFactory builds the telemetry source once flags are known. A
// factory that fails here is the one fatal path: nothing has been
// printed yet and the process exits non-zero.
type SourceFactory func(opts config.Options) (telemetry.Source, error)

// OwnerResolver is the process-table collaborator; satisfied by
// owner.Resolver and by test fakes.
type OwnerResolver interface {
	ResolveAll(pids []int) map[int]owner.Owner
}

// DefaultSource selects NVML or the nvidia-smi fallback.
func DefaultSource(opts config.Options) (telemetry.Source, error) {
	switch opts.Source {
	case "smi", "nvidia-smi":
		return smi.New(opts.SMIBinary), nil
	case "", "nvml":
		s := nvmlsource.New()
		if err := s.Init(); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown telemetry source %q", opts.Source)
	}
}

// NewRootCmd builds the command with its collaborators injected. Pass a
// nil logger to have one built from the parsed options.
func NewRootCmd(newSource SourceFactory, resolver OwnerResolver, log *zap.Logger) *cobra.Command {
	opts := config.Defaults()

	cmd := &cobra.Command{
		Use:           "gpustat",
		Short:         "Show GPU status and per-user memory attribution",
		Long:          "gpustat prints one line per GPU with temperature, utilization,\nmemory usage, and the users whose processes hold that memory.",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Normalize()
			applyColorMode(opts)

			l := log
			if l == nil {
				l = logger.New(opts.Verbose)
			}
			defer func() { _ = l.Sync() }()

			return run(cmd, opts, newSource, resolver, l)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.ForceColor, "color", false, "force colored output (even when stdout is not a tty)")
	flags.BoolVar(&opts.NoColor, "no-color", false, "suppress colored output")
	flags.BoolVarP(&opts.ShowUser, "show-user", "u", opts.ShowUser, "display username of the process owner")
	flags.BoolVarP(&opts.ShowCmd, "show-cmd", "c", false, "display the process name")
	flags.BoolVarP(&opts.ShowFullCmd, "show-full-cmd", "f", false, "display full command of running process")
	flags.BoolVarP(&opts.ShowPID, "show-pid", "p", false, "display PID of the process")
	flags.BoolVarP(&opts.ShowFan, "show-fan", "F", false, "display GPU fan speed")
	flags.BoolVarP(&opts.ShowCodec, "show-codec", "e", false, "display encoder and decoder utilization")
	flags.BoolVarP(&opts.ShowPower, "show-power", "P", false, "display power draw and limit")
	flags.BoolVarP(&opts.ShowOther, "show-other", "o", false, "display used memory not attributed to any process")
	flags.BoolVarP(&opts.ShowAll, "show-all", "a", false, "display all gpu properties above")
	flags.IntVar(&opts.CmdWidth, "cmd-width", opts.CmdWidth, "truncate full commands to this many characters (0 = unlimited)")
	flags.StringVar(&opts.Source, "source", opts.Source, "telemetry source: nvml or smi")
	flags.StringVar(&opts.SMIBinary, "smi-path", opts.SMIBinary, "path to the nvidia-smi binary for the smi source")
	flags.BoolVar(&opts.Verbose, "verbose", opts.Verbose, "debug logging on stderr")

	return cmd
}

func applyColorMode(opts config.Options) {
	// fatih/color already handles tty and NO_COLOR detection; the flags
	// only force one way or the other.
	if opts.NoColor {
		color.NoColor = true
	} else if opts.ForceColor {
		color.NoColor = false
	}
}

func run(cmd *cobra.Command, opts config.Options, newSource SourceFactory, resolver OwnerResolver, log *zap.Logger) error {
	src, err := newSource(opts)
	if err != nil {
		return fmt.Errorf("initialize telemetry source: %w", err)
	}
	defer func() { _ = src.Close() }()

	snap, err := src.Snapshot(cmd.Context())
	if err != nil {
		return fmt.Errorf("capture snapshot via %s: %w", src.Name(), err)
	}
	if snap.Hostname == "" {
		snap.Hostname, _ = os.Hostname()
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now()
	}

	log.Debug("snapshot captured",
		zap.String("source", src.Name()),
		zap.Int("gpus", len(snap.GPUs)),
		zap.String("driver", snap.DriverVersion))

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, report.Header(snap))

	for _, gpu := range snap.GPUs {
		pids := make([]int, 0, len(gpu.Processes))
		for _, p := range gpu.Processes {
			pids = append(pids, p.PID)
		}
		owners := resolver.ResolveAll(pids)
		warnUnresolved(log, gpu.Index, owners)

		attr := report.Aggregate(gpu, owners)
		fmt.Fprintln(out, report.Line(gpu, attr, renderOptions(opts)))
	}
	return nil
}

func warnUnresolved(log *zap.Logger, gpuIndex int, owners map[int]owner.Owner) {
	for pid, o := range owners {
		if !o.Resolved {
			log.Warn("pid owner unresolved",
				zap.Int("gpu", gpuIndex),
				zap.Int("pid", pid))
		}
	}
}

func renderOptions(opts config.Options) report.Options {
	return report.Options{
		ShowUsers:   opts.ShowUser,
		ShowCmd:     opts.ShowCmd,
		ShowFullCmd: opts.ShowFullCmd,
		ShowPID:     opts.ShowPID,
		ShowFan:     opts.ShowFan,
		ShowCodec:   opts.ShowCodec,
		ShowPower:   opts.ShowPower,
		ShowOther:   opts.ShowOther,
		CmdWidth:    opts.CmdWidth,
	}
}
