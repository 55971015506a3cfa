// Package estimator is the CORE of this system: the particle representation
// of per-agent belief, prediction under the shared BehaviorKernel, and the
// measurement update that resolves the unknown count-to-identity mapping via
// a Metropolis–Hastings correspondence sampler (spec.md §1, §4.2-§4.5).
package estimator

import (
	"math/rand"

	"github.com/nyeti-labs/evacsim/behavior"
	"github.com/nyeti-labs/evacsim/population"
	"github.com/nyeti-labs/evacsim/roadgraph"
)

// Config carries the particle filter's hyperparameters (spec.md §4, §7),
// named directly after the config package's EstimatorConfig so the two stay
// in lockstep without this package importing config directly.
type Config struct {
	NumParticles          int
	InitialAlpha          float64
	IdleProbability        float64
	InitialTransitionProb float64
	TransitionLearnRate   float64 // P_0
	ReassociateProb       float64
	BurnIn                int
	AssociatedAlpha       float64
}

// Estimator maintains N particles per agent and exposes Predict/Update.
// flat indexing (spec.md §3): particles are numbered globally in
// agent-major order 0..|A|*N-1; flatToAgent is immutable for the run.
type Estimator struct {
	cfg    Config
	kernel behavior.Kernel
	rng    *rand.Rand

	agentIDs         []string          // index -> agent ID, fixed at creation
	agentIndex       map[string]int    // agent ID -> index
	agentRendezvous  []string          // r(a) per agent index, fixed (known statically)
	flatToAgent      []int             // flat particle index -> agent index

	zHat []string        // flat locations
	aHat []float64       // flat inverse-length-scales (α)
	bHat []behavior.Mode // flat behaviors

	// pTr is P_tr, the global wait-release probability threaded across
	// ticks (spec.md §4.1 design note); owned here, never per-particle.
	pTr float64
}

// N returns the particle count per agent.
func (e *Estimator) N() int { return e.cfg.NumParticles }

// NumAgents returns |A|.
func (e *Estimator) NumAgents() int { return len(e.agentIDs) }

// AgentID returns the agent ID at agent index i.
func (e *Estimator) AgentID(i int) string { return e.agentIDs[i] }

// AgentIndex returns the agent index for an agent ID.
func (e *Estimator) AgentIndex(id string) (int, bool) {
	i, ok := e.agentIndex[id]
	return i, ok
}

// FlatRange returns the [start, end) flat-index range owned by agent index i.
func (e *Estimator) FlatRange(agentIdx int) (int, int) {
	n := e.cfg.NumParticles
	return agentIdx * n, agentIdx*n + n
}

// Location, Alpha, Behavior expose current flat particle state.
func (e *Estimator) Location(flat int) string       { return e.zHat[flat] }
func (e *Estimator) Alpha(flat int) float64          { return e.aHat[flat] }
func (e *Estimator) Behavior(flat int) behavior.Mode { return e.bHat[flat] }

// PTr returns the current global wait-release probability.
func (e *Estimator) PTr() float64 { return e.pTr }

// CreateEstimatorPopulation builds an Estimator with N particles per agent in
// pop, in pop.Agents order (spec.md §6 createEstimatorPopulation).
func CreateEstimatorPopulation(pop *population.Population, n int, cfg Config, rng *rand.Rand) *Estimator {
	numAgents := len(pop.Agents)
	total := numAgents * n

	e := &Estimator{
		cfg:             cfg,
		kernel:          behavior.Kernel{IdleProbability: cfg.IdleProbability},
		rng:             rng,
		agentIDs:        make([]string, numAgents),
		agentIndex:      make(map[string]int, numAgents),
		agentRendezvous: make([]string, numAgents),
		flatToAgent:     make([]int, total),
		zHat:            make([]string, total),
		aHat:            make([]float64, total),
		bHat:            make([]behavior.Mode, total),
		pTr:             cfg.InitialTransitionProb,
	}

	for i, a := range pop.Agents {
		e.agentIDs[i] = a.ID
		e.agentIndex[a.ID] = i
		e.agentRendezvous[i] = a.RendezvousNode
		for k := 0; k < n; k++ {
			flat := i*n + k
			e.flatToAgent[flat] = i
			e.bHat[flat] = a.Behavior
		}
	}

	return e
}

// RandomizeParticles samples every particle's location uniformly from V and
// sets its α to alpha0 (spec.md §6 randomizeParticles).
func (e *Estimator) RandomizeParticles(rg *roadgraph.RoadGraph, alpha0 float64) {
	nodes := rg.Nodes()
	for flat := range e.zHat {
		e.zHat[flat] = nodes[e.rng.Intn(len(nodes))]
		e.aHat[flat] = alpha0
	}
}

// Predict advances every particle one tick under the shared BehaviorKernel
// and refreshes the global P_tr (spec.md §4.2). An unknown behavior code is
// a programmer error (spec.md §7 UnknownBehavior): the kernel already
// no-ops and logs it, so Predict does not need to special-case it here.
func (e *Estimator) Predict(rg *roadgraph.RoadGraph) {
	e.pTr = (1-e.cfg.TransitionLearnRate)*e.pTr + e.cfg.TransitionLearnRate

	for flat := range e.zHat {
		agentIdx := e.flatToAgent[flat]
		st := behavior.State{Location: e.zHat[flat], Behavior: e.bHat[flat]}
		next := e.kernel.StepParticle(rg, st, e.agentRendezvous[agentIdx], e.pTr, e.rng)
		e.zHat[flat] = next.Location
		e.bHat[flat] = next.Behavior
	}
}
