// Package report turns one GPU capture plus resolved process owners into
// the per-user attribution list and the formatted output line.
package report

import (
	"sort"

	"gpustat/internal/owner"
	"gpustat/internal/telemetry"
)

// ProcDetail is one contributing process inside a user bucket, kept in
// first-seen PID order.
type ProcDetail struct {
	PID      int
	MemoryMB uint64
	Name     string
	Cmdline  string
}

// UserAttribution is the aggregate GPU memory one user account holds on
// one device. Unresolvable owners share the owner.Unknown bucket.
type UserAttribution struct {
	Username string
	MemoryMB uint64
	Procs    []ProcDetail
}

// Attribution is the per-device aggregation result.
type Attribution struct {
	// Users is sorted by descending memory; equal memory sorts by
	// username so output is stable for tests.
	Users []UserAttribution

	// OtherMB is device memory in use but not attributed to any reported
	// process (driver/context overhead). Rendered only on request.
	OtherMB uint64
}

// Aggregate folds a device's process list into per-user buckets. A single
// linear pass plus a sort; the input is tens of processes at most.
func Aggregate(gpu telemetry.GPU, owners map[int]owner.Owner) Attribution {
	buckets := map[string]*UserAttribution{}
	names := make([]string, 0, len(gpu.Processes))
	var attributed uint64

	for _, p := range gpu.Processes {
		o := owners[p.PID]
		o.PID = p.PID
		user := o.User()

		b := buckets[user]
		if b == nil {
			b = &UserAttribution{Username: user}
			buckets[user] = b
			names = append(names, user)
		}
		b.MemoryMB += p.MemoryMB
		b.Procs = append(b.Procs, ProcDetail{
			PID:      p.PID,
			MemoryMB: p.MemoryMB,
			Name:     o.Name,
			Cmdline:  o.Cmdline,
		})
		attributed += p.MemoryMB
	}

	users := make([]UserAttribution, 0, len(names))
	for _, name := range names {
		users = append(users, *buckets[name])
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].MemoryMB != users[j].MemoryMB {
			return users[i].MemoryMB > users[j].MemoryMB
		}
		return users[i].Username < users[j].Username
	})

	attr := Attribution{Users: users}
	if gpu.MemoryUsedMB > attributed {
		attr.OtherMB = gpu.MemoryUsedMB - attributed
	}
	return attr
}
