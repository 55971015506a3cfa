// Package simulator drives the per-tick control flow spec.md §2/§5 mandates:
// simulate (advance ground truth) -> sense (Observers) -> predict (Estimator)
// -> update (Estimator), strictly in that order, with no concurrent access
// to the estimator's scratch state mid-tick.
package simulator

import (
	"context"
	"math/rand"
	"time"

	channerics "github.com/niceyeti/channerics/channels"

	"github.com/nyeti-labs/evacsim/behavior"
	"github.com/nyeti-labs/evacsim/estimator"
	"github.com/nyeti-labs/evacsim/observers"
	"github.com/nyeti-labs/evacsim/population"
	"github.com/nyeti-labs/evacsim/roadgraph"
)

// Snapshot is one tick's externally-observable outcome, handed to a
// persistence writer or other downstream consumer.
type Snapshot struct {
	Tick      int
	Reading   observers.Reading
	Estimator *estimator.Estimator
}

// Driver owns the fixed collaborators for a run and steps them in lockstep.
type Driver struct {
	RoadGraph  *roadgraph.RoadGraph
	Population *population.Population
	Observers  *observers.Observers
	Estimator  *estimator.Estimator
	Kernel     behavior.Kernel

	DetectionProbability float64
	Rng                  *rand.Rand
}

// Tick runs exactly one simulate/sense/predict/update cycle and returns its
// Snapshot. It never blocks on anything but the bulk numeric work in
// Estimator.Update (spec.md §5: no suspension points within a tick).
func (d *Driver) Tick(tickNum int) Snapshot {
	d.simulateStep()

	reading := d.Observers.Observe(d.Population)

	d.Estimator.Predict(d.RoadGraph)

	if observers.MeasurementAvailable(d.Observers, reading) {
		d.Estimator.Update(d.RoadGraph, d.Observers.Sensors, reading.Counts, d.DetectionProbability)
	}

	return Snapshot{Tick: tickNum, Reading: reading, Estimator: d.Estimator}
}

// simulateStep advances every real agent one tick via the shared
// BehaviorKernel, then applies group co-movement (spec.md §4.1). Each agent
// is stepped at most once per tick: once a group member has been forced to
// a co-located leader's post-transition state, it is marked handled and
// skipped for the remainder of the tick, the same way the original
// per-location processing queue removes a member once it has been handled
// (original_source/Behavior.py's `pop.locations[loc].remove(member)`).
// Without this, a follower processed after its leader would both get forced
// to the leader's new state and then take its own independent hop on top of
// it, moving the group two hops in a single tick.
func (d *Driver) simulateStep() {
	d.Population.RecomputeTogether()

	handled := make(map[string]bool, len(d.Population.Agents))

	for _, a := range d.Population.Agents {
		if handled[a.ID] {
			continue
		}

		allGathered := d.Population.AllGathered(a)
		next := d.Kernel.StepAgent(d.RoadGraph, a.State(), a.RendezvousNode, allGathered, d.Rng)
		a.Location = next.Location
		a.Behavior = next.Behavior
		handled[a.ID] = true

		for memberID := range a.TogetherWith {
			if handled[memberID] {
				continue
			}
			if m, ok := d.Population.Agent(memberID); ok {
				m.Location = a.Location
				m.Behavior = a.Behavior
				handled[memberID] = true
			}
		}
	}
}

// Run drives Ticks ticks on a channerics ticker, invoking onTick after every
// completed tick (e.g. to persist a Snapshot), and stops early if ctx is
// cancelled.
func Run(ctx context.Context, d *Driver, ticks int, interval time.Duration, onTick func(Snapshot)) {
	tickNum := 0
	for range channerics.NewTicker(ctx.Done(), interval) {
		if tickNum >= ticks {
			return
		}
		snap := d.Tick(tickNum)
		if onTick != nil {
			onTick(snap)
		}
		tickNum++

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
