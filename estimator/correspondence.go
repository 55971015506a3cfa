package estimator

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// unassociated is the sentinel correspondence value for "no sensor",
// spec.md §9(c): a sensor index is always >= 0, so -1 is a symbol distinct
// from every valid sensor index rather than overloading index 0.
const unassociated = -1

// CorrespondenceRow is one hypothesis in the ensemble: for every agent, which
// sensor (or unassociated) it is tied to, which flat particle realizes that
// hypothesis, and the committed (location, alpha) pair (spec.md §3, §4.4).
type CorrespondenceRow struct {
	CVec   []int     // per-agent sensor index, or `unassociated`
	ZVec   []string  // per-agent committed location
	AVec   []float64 // per-agent committed alpha
	PartID []int     // per-agent chosen flat particle index
}

func newCorrespondenceRow(numAgents int) CorrespondenceRow {
	row := CorrespondenceRow{
		CVec:   make([]int, numAgents),
		ZVec:   make([]string, numAgents),
		AVec:   make([]float64, numAgents),
		PartID: make([]int, numAgents),
	}
	for i := range row.CVec {
		row.CVec[i] = unassociated
	}
	return row
}

// Ensemble is the M=N-row correspondence-vector ensemble built by
// InitCorrespondence and subsequently resampled by MH (spec.md §4.4, §4.5).
type Ensemble struct {
	Rows []CorrespondenceRow
}

// InitCorrespondence builds the initial M=N-row ensemble (spec.md §4.4).
func (e *Estimator) InitCorrespondence(q *Likelihood, sensors []string, counts []int, pB float64) *Ensemble {
	n := e.cfg.NumParticles
	ens := &Ensemble{Rows: make([]CorrespondenceRow, n)}
	for i := 0; i < n; i++ {
		ens.Rows[i] = e.initCorrespondenceRow(q, sensors, counts, pB)
	}
	return ens
}

func (e *Estimator) initCorrespondenceRow(q *Likelihood, sensors []string, counts []int, pB float64) CorrespondenceRow {
	numAgents := e.NumAgents()
	row := newCorrespondenceRow(numAgents)

	sensorCols := make([]int, len(sensors))
	for i, s := range sensors {
		col, _ := q.ColumnOf(s)
		sensorCols[i] = col
	}

	order := e.sensorAssociationOrder(sensors, counts, pB, numAgents)

	used := make([]bool, len(e.zHat))
	touched := make([]bool, numAgents)

	for _, sensorIdx := range order {
		idxMap, weights := restrictedColumnWeights(q, sensorCols[sensorIdx], used)
		if len(idxMap) == 0 {
			continue // every agent already associated; spec §4.4 step 2 one-particle-per-agent cap
		}
		pick := weightedSample(weights, e.rng)
		flat := idxMap[pick]
		agentIdx := e.flatToAgent[flat]

		row.CVec[agentIdx] = sensorIdx
		row.PartID[agentIdx] = flat
		touched[agentIdx] = true
		markAgentUsed(used, agentIdx, e.cfg.NumParticles)
	}

	for agentIdx := 0; agentIdx < numAgents; agentIdx++ {
		if touched[agentIdx] {
			continue
		}
		start, end := e.FlatRange(agentIdx)
		weights := make([]float64, end-start)
		for i := start; i < end; i++ {
			weights[i-start] = maskedRowSum(q.Row(i), sensorCols)
		}
		pick := weightedSample(weights, e.rng)
		flat := start + pick
		row.CVec[agentIdx] = unassociated
		row.PartID[agentIdx] = flat
	}

	for agentIdx := 0; agentIdx < numAgents; agentIdx++ {
		flat := row.PartID[agentIdx]
		row.ZVec[agentIdx] = e.zHat[flat]
		row.AVec[agentIdx] = e.aHat[flat]
		if row.CVec[agentIdx] != unassociated {
			row.AVec[agentIdx] = e.cfg.AssociatedAlpha
		}
	}

	return row
}

// sensorAssociationOrder implements spec.md §4.4 step 1: for each sensor,
// sample its estimated true count n_s from the Binomial(n,P_b) likelihood of
// the observed count, restricted to n in [c[s], 2*c[s]+1]; build an ordered
// list with sensor s repeated n_s times, cap the total at |A|, then shuffle.
func (e *Estimator) sensorAssociationOrder(sensors []string, counts []int, pB float64, numAgents int) []int {
	nEach := make([]int, len(sensors))
	for i, c := range counts {
		nEach[i] = e.sampleTrueCount(c, pB)
	}

	total := 0
	for _, n := range nEach {
		total += n
	}
	for total > numAgents {
		maxI := 0
		for i, n := range nEach {
			if n > nEach[maxI] {
				maxI = i
			}
		}
		if nEach[maxI] == 0 {
			break
		}
		nEach[maxI]--
		total--
	}

	order := make([]int, 0, total)
	for i, n := range nEach {
		for k := 0; k < n; k++ {
			order = append(order, i)
		}
	}
	e.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}

// sampleTrueCount draws n_s ~ pmf(n) ∝ Binomial(n,P_b).Prob(c), n in
// [c, 2c+1], via the centralized weighted-sample primitive.
func (e *Estimator) sampleTrueCount(c int, pB float64) int {
	lo := c
	hi := 2*c + 1
	weights := make([]float64, hi-lo+1)
	for n := lo; n <= hi; n++ {
		b := distuv.Binomial{N: float64(n), P: pB}
		p := b.Prob(float64(c))
		if math.IsNaN(p) {
			// distuv evaluates 0*log(0) as NaN when P_b is 0 or 1 at the
			// edge counts; the pmf there is exactly 1.
			p = 1
		}
		weights[n-lo] = p
	}
	return lo + weightedSample(weights, e.rng)
}

// restrictedColumnWeights returns the unused flat indices and their
// likelihood weights for sensor column col.
func restrictedColumnWeights(q *Likelihood, col int, used []bool) ([]int, []float64) {
	idxMap := make([]int, 0, q.Rows())
	weights := make([]float64, 0, q.Rows())
	for flat := 0; flat < q.Rows(); flat++ {
		if used[flat] {
			continue
		}
		idxMap = append(idxMap, flat)
		weights = append(weights, q.At(flat, col))
	}
	return idxMap, weights
}

// maskedRowSum sums a particle's likelihood row over every column except the
// sensor columns (spec.md §4.4 step 3).
func maskedRowSum(row []float64, sensorCols []int) float64 {
	mask := make(map[int]bool, len(sensorCols))
	for _, c := range sensorCols {
		mask[c] = true
	}
	var sum float64
	for col, v := range row {
		if mask[col] {
			continue
		}
		sum += v
	}
	return sum
}

func markAgentUsed(used []bool, agentIdx, n int) {
	start := agentIdx * n
	for i := start; i < start+n; i++ {
		used[i] = true
	}
}
