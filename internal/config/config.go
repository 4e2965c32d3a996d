package config

import (
	"os"
	"strconv"
)

// Options holds everything the run needs: source selection, color mode,
// and the rendering toggles. Environment variables seed the defaults and
// command-line flags override them.
type Options struct {
	Source    string // nvml | smi
	SMIBinary string

	ForceColor bool
	NoColor    bool

	ShowUser    bool
	ShowCmd     bool
	ShowFullCmd bool
	ShowPID     bool
	ShowFan     bool
	ShowCodec   bool
	ShowPower   bool
	ShowOther   bool
	ShowAll     bool

	CmdWidth int
	Verbose  bool
}

func Defaults() Options {
	return Options{
		Source:    envString("GPUSTAT_SOURCE", "nvml"),
		SMIBinary: envString("GPUSTAT_SMI_PATH", "nvidia-smi"),
		ShowUser:  envBool("GPUSTAT_SHOW_USER", true),
		CmdWidth:  envInt("GPUSTAT_CMD_WIDTH", 32),
		Verbose:   envBool("GPUSTAT_DEBUG", false),
	}
}

// Normalize expands the aggregate toggle after flag parsing.
func (o *Options) Normalize() {
	if o.ShowAll {
		o.ShowFan = true
		o.ShowCodec = true
		o.ShowPower = true
		o.ShowPID = true
		o.ShowOther = true
	}
	if o.ShowCmd || o.ShowFullCmd || o.ShowPID {
		o.ShowUser = true
	}
}

func envString(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
