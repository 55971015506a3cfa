// Package observers is the reference implementation of spec.md's external
// Observers collaborator: a fixed sensor node set S and, each tick, a noisy
// count vector c obtained by binomial thinning of true node occupancy.
package observers

import (
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/nyeti-labs/evacsim/population"
	"github.com/nyeti-labs/evacsim/roadgraph"
)

// Observers holds the fixed sensor placement and detection model.
type Observers struct {
	// Sensors is S, the ordered sensor node list; vector indices elsewhere
	// (c, h, etc.) are positions into this slice.
	Sensors []string
	// DetectionProbability is P_b ∈ (0,1], spec.md §4.3/§4.4/§4.5.
	DetectionProbability float64

	rng *rand.Rand
}

// New selects a deterministic (seeded) fraction of road-graph nodes as
// sensor placements.
func New(rg *roadgraph.RoadGraph, sensorFraction, detectionProbability float64, rng *rand.Rand) *Observers {
	nodes := append([]string(nil), rg.Nodes()...)
	rng.Shuffle(len(nodes), func(i, j int) { nodes[i], nodes[j] = nodes[j], nodes[i] })

	count := int(float64(len(nodes))*sensorFraction + 0.5)
	if count < 1 && len(nodes) > 0 {
		count = 1
	}
	if count > len(nodes) {
		count = len(nodes)
	}

	sensors := append([]string(nil), nodes[:count]...)
	return &Observers{
		Sensors:               sensors,
		DetectionProbability:  detectionProbability,
		rng:                   rng,
	}
}

// Reading is one tick's observation: noisy counts c, aligned to Sensors, and
// the true occupancy counts kept only for diagnostics (spec.md §6).
type Reading struct {
	Counts     []int
	TrueCounts []int
}

// Observe computes the true occupancy at every sensor node, then draws each
// entry of c via binomial thinning, Binomial(trueCount, P_b).
func (o *Observers) Observe(pop *population.Population) Reading {
	trueCounts := make([]int, len(o.Sensors))
	occupancy := make(map[string]int, len(pop.Agents))
	for _, a := range pop.Agents {
		occupancy[a.Location]++
	}
	for i, s := range o.Sensors {
		trueCounts[i] = occupancy[s]
	}

	counts := make([]int, len(o.Sensors))
	for i, n := range trueCounts {
		if n == 0 {
			continue
		}
		b := distuv.Binomial{N: float64(n), P: o.DetectionProbability, Src: o.rng}
		counts[i] = int(b.Rand())
	}

	return Reading{Counts: counts, TrueCounts: trueCounts}
}

// MeasurementAvailable reports whether a Reading carries any usable signal;
// spec.md §7 MeasurementUnavailable: an empty c or empty S skips the
// estimator's update for the tick.
func MeasurementAvailable(o *Observers, r Reading) bool {
	return len(o.Sensors) > 0 && len(r.Counts) > 0
}
