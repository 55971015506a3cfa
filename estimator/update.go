package estimator

import "github.com/nyeti-labs/evacsim/roadgraph"

// Update runs one measurement tick (spec.md §4.3-§4.5.3): build the
// likelihood table Q, initialize the correspondence ensemble, refine it via
// MH resampling, and commit the result back into per-particle state. No step
// in this pipeline is fallible, so Update reports nothing back to the
// caller; spec.md §7 MeasurementUnavailable is the only precondition, and is
// checked directly.
//
// An empty sensor set or empty count vector skips the update entirely; the
// estimator's belief then reflects only measurements up through the prior
// tick.
func (e *Estimator) Update(rg *roadgraph.RoadGraph, sensors []string, counts []int, pB float64) {
	if len(sensors) == 0 || len(counts) == 0 {
		return
	}

	q := e.BuildLikelihood(rg)
	ens := e.InitCorrespondence(q, sensors, counts, pB)
	e.mhResample(ens, q, sensors, counts, pB)
	e.commit(ens)
}

// commit implements spec.md §4.5.3: for each agent, overwrite its N
// particles with the (location, alpha) pair from each ensemble row; behavior
// is left untouched, carried from the last Predict.
func (e *Estimator) commit(ens *Ensemble) {
	numAgents := e.NumAgents()
	n := e.cfg.NumParticles
	for a := 0; a < numAgents; a++ {
		start, _ := e.FlatRange(a)
		for k := 0; k < n; k++ {
			row := ens.Rows[k]
			flat := start + k
			e.zHat[flat] = row.ZVec[a]
			e.aHat[flat] = row.AVec[a]
		}
	}
}
