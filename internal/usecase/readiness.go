package usecase

import (
	"context"
	"time"
)

// ReadinessCheck represents a single readiness probe result used by handlers.
type ReadinessCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Details string `json:"details,omitempty"`
}

// Probe checks one dependency.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// RunProbes runs every probe with a per-probe timeout and reports whether all
// of them passed.
func RunProbes(ctx context.Context, timeout time.Duration, probes ...Probe) ([]ReadinessCheck, bool) {
	out := make([]ReadinessCheck, 0, len(probes))
	ready := true
	for _, p := range probes {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		err := p.Check(pctx)
		cancel()
		c := ReadinessCheck{Name: p.Name, OK: err == nil}
		if err != nil {
			c.Details = err.Error()
			ready = false
		}
		out = append(out, c)
	}
	return out, ready
}
