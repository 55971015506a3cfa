// Package behavior implements the BehaviorKernel shared by the simulator
// (stepping real agents) and the estimator (stepping particles), per
// spec.md §4.1. The same transition rules apply to both; only the W→E
// release condition differs, since particles have no identity and so no
// group-membership test is available to them (spec.md §4.1, "Estimator's W
// handling").
package behavior

import (
	"log"
	"math/rand"

	"github.com/nyeti-labs/evacsim/roadgraph"
)

// Mode is one of the five behavior codes from spec.md §3.
type Mode string

const (
	Evacuate    Mode = "E"
	Rendezvous  Mode = "R"
	Wait        Mode = "W"
	Exited      Mode = "X"
	Stay        Mode = "S"
)

// State is the (location, behavior) pair the kernel transitions; it is
// deliberately the full shared surface between a real Agent and a Particle.
type State struct {
	Location string
	Behavior Mode
}

// Kernel is the shared, stateless transition function. It carries no
// mutable fields: the one piece of cross-tick state, P_tr, is owned by the
// estimator as a single scalar (spec.md §4.1 design note "Global P_tr").
// Estimator.Predict updates it in place and returns nothing; callers read
// it back via Estimator.PTr.
type Kernel struct {
	// IdleProbability is p_idle = 0.1, applied to modes E, R, W.
	IdleProbability float64
}

// StepAgent advances a real simulated agent's state one tick. allGathered
// reports whether every other member of the agent's group is currently
// co-located with it (togetherWith(a) holds every other member, so no member
// is at a location other than a's own); this is the simulation-only W→E
// release test.
func (k Kernel) StepAgent(rg *roadgraph.RoadGraph, st State, rendezvousNode string, allGathered bool, rng *rand.Rand) State {
	return k.step(rg, st, rendezvousNode, rng, func() Mode {
		if allGathered {
			return Evacuate
		}
		return Wait
	})
}

// StepParticle advances one particle's state one tick. pTr is the current
// global wait-release probability (already updated for this tick by the
// estimator's Predict, spec.md §4.1): a waiting particle spontaneously
// transitions to Evacuate with probability pTr, in place of the group
// co-location test real agents use (particle identities are unknown to the
// estimator, so no group test is available).
func (k Kernel) StepParticle(rg *roadgraph.RoadGraph, st State, rendezvousNode string, pTr float64, rng *rand.Rand) State {
	return k.step(rg, st, rendezvousNode, rng, func() Mode {
		if rng.Float64() < pTr {
			return Evacuate
		}
		return Wait
	})
}

// step holds the transition logic common to both real agents and particles;
// resolveWait decides the W-mode outcome and is the only point of
// divergence between the two callers.
func (k Kernel) step(rg *roadgraph.RoadGraph, st State, rendezvousNode string, rng *rand.Rand, resolveWait func() Mode) State {
	switch st.Behavior {
	case Exited, Stay:
		// Terminal modes (spec.md §4.1: X is terminal; S never moves).
		return st

	case Evacuate, Rendezvous, Wait:
		if rng.Float64() < k.IdleProbability {
			return st
		}

	default:
		log.Printf("behavior: unknown behavior code %q for location %s; treating as no-op", st.Behavior, st.Location)
		return st
	}

	switch st.Behavior {
	case Evacuate:
		if rg.IsExit(st.Location) {
			return st
		}
		path := rg.ShortestExitPath(st.Location)
		if len(path) < 2 {
			return st
		}
		return State{Location: path[1], Behavior: Evacuate}

	case Rendezvous:
		if st.Location == rendezvousNode {
			return State{Location: st.Location, Behavior: Wait}
		}
		path, err := rg.GetShortestPath(st.Location, rendezvousNode)
		if err != nil || len(path) < 2 {
			return st
		}
		return State{Location: path[1], Behavior: Rendezvous}

	case Wait:
		return State{Location: st.Location, Behavior: resolveWait()}
	}

	// Unreachable: the first switch already filtered to {E,R,W} here.
	return st
}
