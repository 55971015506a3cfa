// Package persist writes the advisory per-tick text formats spec.md §6
// describes for particle and observer state. Nothing in the system reads
// these files back; they exist purely for external inspection, exactly as
// spec.md documents them.
package persist

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/nyeti-labs/evacsim/estimator"
	"github.com/nyeti-labs/evacsim/observers"
)

// ParticleWriter appends one "time_step" header plus one CSV line per agent
// (agent_id, loc_p0, loc_p1, ...) for every tick it is given.
type ParticleWriter struct {
	w *bufio.Writer
}

// NewParticleWriter wraps dst for buffered line writes.
func NewParticleWriter(dst io.Writer) *ParticleWriter {
	return &ParticleWriter{w: bufio.NewWriter(dst)}
}

// WriteTick emits the header and one line per agent's current particle set.
func (pw *ParticleWriter) WriteTick(tick int, e *estimator.Estimator) error {
	if _, err := fmt.Fprintf(pw.w, "time_step:%d\n", tick); err != nil {
		return err
	}

	for a := 0; a < e.NumAgents(); a++ {
		start, end := e.FlatRange(a)
		var sb strings.Builder
		sb.WriteString(e.AgentID(a))
		for flat := start; flat < end; flat++ {
			sb.WriteByte(',')
			sb.WriteString(e.Location(flat))
		}
		sb.WriteByte('\n')
		if _, err := pw.w.WriteString(sb.String()); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes any buffered output.
func (pw *ParticleWriter) Flush() error { return pw.w.Flush() }

// ObserverWriter writes the header
// "time_step,loc_i,sensor_i,true_i,..." once, then one CSV line per tick.
type ObserverWriter struct {
	w           *bufio.Writer
	wroteHeader bool
	sensors     []string
}

// NewObserverWriter wraps dst for buffered line writes.
func NewObserverWriter(dst io.Writer, sensors []string) *ObserverWriter {
	return &ObserverWriter{w: bufio.NewWriter(dst), sensors: sensors}
}

// WriteTick emits the header (once, lazily, on first call) and one line with
// this tick's (sensor node, noisy count, true count) triple per sensor,
// matching the header's loc_i, sensor_i, true_i columns.
func (ow *ObserverWriter) WriteTick(tick int, r observers.Reading) error {
	if !ow.wroteHeader {
		var sb strings.Builder
		sb.WriteString("time_step")
		for i, s := range ow.sensors {
			fmt.Fprintf(&sb, ",loc_%d(%s),sensor_%d,true_%d", i, s, i, i)
		}
		sb.WriteByte('\n')
		if _, err := ow.w.WriteString(sb.String()); err != nil {
			return err
		}
		ow.wroteHeader = true
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d", tick)
	for i, s := range ow.sensors {
		var c, t int
		if i < len(r.Counts) {
			c = r.Counts[i]
		}
		if i < len(r.TrueCounts) {
			t = r.TrueCounts[i]
		}
		fmt.Fprintf(&sb, ",%s,%d,%d", s, c, t)
	}
	sb.WriteByte('\n')
	_, err := ow.w.WriteString(sb.String())
	return err
}

// Flush flushes any buffered output.
func (ow *ObserverWriter) Flush() error { return ow.w.Flush() }
