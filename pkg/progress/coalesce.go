// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

package progress

import (
	"sync"
	"time"
)

// DefaultInterval is the normal-mode coalescing window: at most one
// StepOutput event per step is forwarded within this window.
const DefaultInterval = 50 * time.Millisecond

// stepState tracks one step's throttling bucket.
type stepState struct {
	lastEmit time.Time
	pending  *Event
	timer    *time.Timer
}

// Coalescer wraps a Reporter and applies the per-step output
// throttle: normal mode forwards at most one StepOutput per interval
// and always flushes the latest pending line on StepCompleted (never
// drops the final update); verbose mode bypasses the throttle
// entirely; quiet mode suppresses StepOutput but still forwards
// StepStarted/StepCompleted.
type Coalescer struct {
	mode     Mode
	interval time.Duration
	next     Reporter

	mu    sync.Mutex
	state map[string]*stepState
}

// NewCoalescer builds a Coalescer forwarding to next under mode, using
// DefaultInterval.
func NewCoalescer(next Reporter, mode Mode) *Coalescer {
	return &Coalescer{
		mode:     mode,
		interval: DefaultInterval,
		next:     next,
		state:    make(map[string]*stepState),
	}
}

// WithInterval overrides the coalescing window (tests use a short one
// so they don't have to sleep the production 50ms).
func (c *Coalescer) WithInterval(d time.Duration) *Coalescer {
	c.interval = d
	return c
}

func (c *Coalescer) Report(e Event) {
	key := stepKey(e.JobID, e.StepIndex)

	if e.Kind != StepOutput {
		// A step boundary event always flushes any output still
		// buffered for that step first, preserving per-step ordering.
		c.flush(key)
		c.next.Report(e)
		return
	}

	switch c.mode {
	case ModeQuiet:
		return
	case ModeVerbose:
		c.next.Report(e)
		return
	}

	c.mu.Lock()
	st, ok := c.state[key]
	if !ok {
		st = &stepState{}
		c.state[key] = st
	}
	now := time.Now()
	elapsed := now.Sub(st.lastEmit)
	if st.lastEmit.IsZero() || elapsed >= c.interval {
		st.lastEmit = now
		st.pending = nil
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
		c.mu.Unlock()
		c.next.Report(e)
		return
	}

	ev := e
	st.pending = &ev
	if st.timer == nil {
		remaining := c.interval - elapsed
		st.timer = time.AfterFunc(remaining, func() { c.flush(key) })
	}
	c.mu.Unlock()
}

// flush forwards any buffered output for key, if present.
func (c *Coalescer) flush(key string) {
	c.mu.Lock()
	st, ok := c.state[key]
	if !ok || st.pending == nil {
		c.mu.Unlock()
		return
	}
	ev := *st.pending
	st.pending = nil
	st.lastEmit = time.Now()
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	c.mu.Unlock()
	c.next.Report(ev)
}
