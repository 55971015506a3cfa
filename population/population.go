// Package population is the reference implementation of spec.md's external
// Population collaborator: a fixed set of agents, each with group
// membership, a chosen rendezvous node, and mutable (location, behavior,
// togetherWith) state. Age/gender/group-construction synthesis beyond what
// the behavior FSM init rule (spec.md §4.7) needs is explicitly out of
// scope (spec.md §1 Non-goals).
package population

import (
	"fmt"
	"math/rand"

	"github.com/nyeti-labs/evacsim/behavior"
	"github.com/nyeti-labs/evacsim/roadgraph"
)

const (
	childAgeLimit    = 11
	minChildGroupSz  = 3
	maxChildGroupSz  = 4
	minAgentAge      = 5
	maxAgentAge      = 70
)

// Agent is one simulated individual, spec.md §3 "Agent state".
type Agent struct {
	ID             string
	GroupID        string // empty string means the agent is a singleton
	Age            int
	RendezvousNode string // r(a); meaningless ("") for singletons
	Location       string
	Behavior       behavior.Mode

	// TogetherWith holds the IDs of group members currently co-located
	// with this agent, recomputed at the start of every tick (spec.md §3,
	// §4.1 "Group co-movement").
	TogetherWith map[string]bool
}

// State returns the agent's (location, behavior) pair for the BehaviorKernel.
func (a *Agent) State() behavior.State {
	return behavior.State{Location: a.Location, Behavior: a.Behavior}
}

// Population holds the fixed agent set and group membership for a run.
type Population struct {
	Agents []*Agent
	byID   map[string]*Agent
	// Groups maps group ID to its member agent IDs; singletons are not
	// represented here (their GroupID is "").
	Groups map[string][]string
}

// Config sizes population synthesis.
type Config struct {
	NumAgents       int
	MaxGroupSize    int
	SingletonChance float64
}

// New synthesizes a population: agents are placed uniformly at random over
// V, assigned to singleton or group membership per Config, and given an
// initial behavior mode per the FSM init rule in spec.md §4.7.
func New(cfg Config, rg *roadgraph.RoadGraph, rng *rand.Rand) (*Population, error) {
	nodes := rg.Nodes()
	rendezvousNodes := rg.Rendezvous()
	if len(nodes) == 0 {
		return nil, fmt.Errorf("population: road graph has no nodes")
	}
	if len(rendezvousNodes) == 0 {
		return nil, fmt.Errorf("population: road graph has no rendezvous nodes")
	}
	if cfg.MaxGroupSize < 1 {
		cfg.MaxGroupSize = 1
	}

	pop := &Population{
		byID:   make(map[string]*Agent, cfg.NumAgents),
		Groups: make(map[string][]string),
	}

	remaining := cfg.NumAgents
	nextAgent := 0
	nextGroup := 0
	for remaining > 0 {
		if rng.Float64() < cfg.SingletonChance || cfg.MaxGroupSize == 1 {
			id := fmt.Sprintf("a%d", nextAgent)
			nextAgent++
			agent := newAgent(id, "", minAgentAge+rng.Intn(maxAgentAge-minAgentAge+1), nodes, rng)
			agent.Behavior = behavior.Evacuate
			pop.addAgent(agent)
			remaining--
			continue
		}

		size := 2 + rng.Intn(cfg.MaxGroupSize-1)
		if size > remaining {
			size = remaining
		}
		groupID := fmt.Sprintf("g%d", nextGroup)
		nextGroup++
		rendezvous := rendezvousNodes[rng.Intn(len(rendezvousNodes))]

		for i := 0; i < size; i++ {
			id := fmt.Sprintf("a%d", nextAgent)
			nextAgent++
			age := minAgentAge + rng.Intn(maxAgentAge-minAgentAge+1)
			agent := newAgent(id, groupID, age, nodes, rng)
			agent.RendezvousNode = rendezvous

			// spec.md §4.7: children under 11 in a size-3/4 group start in
			// Stay; every other grouped agent starts seeking rendezvous.
			if age < childAgeLimit && size >= minChildGroupSz && size <= maxChildGroupSz {
				agent.Behavior = behavior.Stay
			} else {
				agent.Behavior = behavior.Rendezvous
			}

			pop.addAgent(agent)
			pop.Groups[groupID] = append(pop.Groups[groupID], id)
		}
		remaining -= size
	}

	return pop, nil
}

func newAgent(id, groupID string, age int, nodes []string, rng *rand.Rand) *Agent {
	return &Agent{
		ID:           id,
		GroupID:      groupID,
		Age:          age,
		Location:     nodes[rng.Intn(len(nodes))],
		TogetherWith: make(map[string]bool),
	}
}

func (p *Population) addAgent(a *Agent) {
	p.Agents = append(p.Agents, a)
	p.byID[a.ID] = a
}

// Agent looks up an agent by ID.
func (p *Population) Agent(id string) (*Agent, bool) {
	a, ok := p.byID[id]
	return a, ok
}

// RecomputeTogether rebuilds every grouped agent's TogetherWith set from
// current locations, per spec.md §3/§4.1: "togetherWith(a) is recomputed at
// the start of each tick as {m∈group(a) : z(m)=z(a), m≠a}".
func (p *Population) RecomputeTogether() {
	for _, a := range p.Agents {
		for k := range a.TogetherWith {
			delete(a.TogetherWith, k)
		}
		if a.GroupID == "" {
			continue
		}
		for _, memberID := range p.Groups[a.GroupID] {
			if memberID == a.ID {
				continue
			}
			if m, ok := p.byID[memberID]; ok && m.Location == a.Location {
				a.TogetherWith[memberID] = true
			}
		}
	}
}

// AllGathered reports whether every other member of a's group is currently
// co-located with it: spec.md §4.1's W→E release test, "groupLocs minus own
// becomes empty".
func (p *Population) AllGathered(a *Agent) bool {
	if a.GroupID == "" {
		return true
	}
	otherMembers := len(p.Groups[a.GroupID]) - 1
	return len(a.TogetherWith) >= otherMembers
}

// ExitedCount returns the number of agents currently in an exited location
// (diagnostic, grounded on original_source/SimulationRunner.py's per-tick
// exited-agent logging).
func ExitedCount(p *Population, rg *roadgraph.RoadGraph) int {
	n := 0
	for _, a := range p.Agents {
		if rg.IsExit(a.Location) {
			n++
		}
	}
	return n
}
