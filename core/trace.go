package core

import (
	"fmt"
	"time"
)

// DebugWriter is a function type for writing debug messages.
type DebugWriter func(string)

// debugPrintln is the process-wide debug sink. No-op by default.
var debugPrintln DebugWriter = func(string) {}

// SetDebugWriter redirects debug output, e.g. to a logger or a REPL.
// Passing nil silences it again.
func SetDebugWriter(writer DebugWriter) {
	if writer == nil {
		writer = func(string) {}
	}
	debugPrintln = writer
}

// TraceKind classifies a TraceEvent.
type TraceKind uint8

// Trace event kinds.
const (
	TraceStepForward  TraceKind = 1 // committed step, position increased
	TraceStepBackward TraceKind = 2 // committed step, position decreased
	TraceStop         TraceKind = 3 // ramp reached a full stop
	TraceRetarget     TraceKind = 4 // target position changed
)

func (k TraceKind) String() string {
	switch k {
	case TraceStepForward:
		return "step+"
	case TraceStepBackward:
		return "step-"
	case TraceStop:
		return "stop"
	case TraceRetarget:
		return "retarget"
	default:
		return "unknown"
	}
}

// TraceEvent captures one motion event for post-mortem analysis.
type TraceEvent struct {
	When     time.Duration // clock reading at the event
	Position int64         // driver position (or new target for retargets)
	Kind     TraceKind
}

// TraceRingSize is how many events a TraceRing keeps.
const TraceRingSize = 64

// TraceRing is a fixed ring of the most recent motion events. Attach
// one to a Driver with SetTraceRing to see what the motor did leading
// up to a problem.
//
// Recording never allocates or blocks. Single writer only.
type TraceRing struct {
	events [TraceRingSize]TraceEvent
	head   int
	count  int
}

// Record appends an event, overwriting the oldest once full.
func (r *TraceRing) Record(ev TraceEvent) {
	r.events[r.head] = ev
	r.head = (r.head + 1) % TraceRingSize
	if r.count < TraceRingSize {
		r.count++
	}
}

// Len returns how many events are held.
func (r *TraceRing) Len() int { return r.count }

// Events returns the held events, oldest first.
func (r *TraceRing) Events() []TraceEvent {
	out := make([]TraceEvent, 0, r.count)
	start := r.head - r.count
	if start < 0 {
		start += TraceRingSize
	}
	for i := 0; i < r.count; i++ {
		out = append(out, r.events[(start+i)%TraceRingSize])
	}
	return out
}

// Reset drops all held events.
func (r *TraceRing) Reset() {
	r.head = 0
	r.count = 0
}

// Dump formats the held events oldest-first, sends each line to the
// debug writer, and returns the lines.
func (r *TraceRing) Dump() []string {
	events := r.Events()
	lines := make([]string, len(events))
	for i, ev := range events {
		lines[i] = fmt.Sprintf("%-9s t=%-12s pos=%d", ev.Kind, ev.When, ev.Position)
		debugPrintln(lines[i])
	}
	return lines
}
