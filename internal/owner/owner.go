// Package owner maps PIDs reported by the GPU to the user accounts that
// own them. GPU enumeration and the OS process table are not read
// atomically, so a PID may be gone by the time we look it up; that is an
// expected race and degrades to an unresolved owner, never an error.
package owner

import (
	"github.com/shirou/gopsutil/v3/process"
)

// Unknown is the placeholder username for processes whose owner could not
// be determined (exited, or lookup denied).
const Unknown = "?"

// Owner is the resolved identity of one GPU process.
type Owner struct {
	PID      int
	Username string
	Name     string // short command name
	Cmdline  string // full command line, space-joined
	Resolved bool   // false when Username could not be determined
}

// User returns the display name for the owning account.
func (o Owner) User() string {
	if !o.Resolved {
		return Unknown
	}
	return o.Username
}

// Resolver performs process-table lookups. The lookup function is a field
// so tests can substitute a fake process table.
type Resolver struct {
	lookup func(pid int) Owner
}

func NewResolver() *Resolver {
	return &Resolver{lookup: lookupProcess}
}

// NewResolverWithLookup builds a resolver over a caller-supplied process
// table. Intended for tests.
func NewResolverWithLookup(fn func(pid int) Owner) *Resolver {
	return &Resolver{lookup: fn}
}

// Resolve never fails: a vanished or unreadable process yields an
// unresolved Owner carrying whatever fields could still be read.
func (r *Resolver) Resolve(pid int) Owner {
	return r.lookup(pid)
}

// ResolveAll resolves each distinct PID once.
func (r *Resolver) ResolveAll(pids []int) map[int]Owner {
	out := make(map[int]Owner, len(pids))
	for _, pid := range pids {
		if _, ok := out[pid]; ok {
			continue
		}
		out[pid] = r.Resolve(pid)
	}
	return out
}

func lookupProcess(pid int) Owner {
	o := Owner{PID: pid}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return o
	}
	if user, err := p.Username(); err == nil && user != "" {
		o.Username = user
		o.Resolved = true
	}
	// Command fields are best-effort even when the user lookup failed.
	if name, err := p.Name(); err == nil {
		o.Name = name
	}
	if cmdline, err := p.Cmdline(); err == nil {
		o.Cmdline = cmdline
	}
	return o
}
