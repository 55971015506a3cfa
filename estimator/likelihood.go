package estimator

import (
	"math"

	"github.com/nyeti-labs/evacsim/roadgraph"
)

// Likelihood is the (|A|*N) x |V| table Q from spec.md §4.3: Q[flat][v] is
// the likelihood of particle flat being observed at node v, given its
// current location and inverse-length-scale α.
//
//	d        = D[zHat[flat], v]        (hop distance)
//	s        = d * alpha[flat]
//	Q[flat][v] = exp(-s^2/2) * alpha[flat]^2
//
// The alpha^2 prefactor upweights confidently-localized particles over
// diffuse ones independent of distance.
type Likelihood struct {
	rows  int
	cols  int
	nodes []string
	index map[string]int
	q     [][]float64
}

// Rows, Cols, and At expose the table for callers that treat it as a dense
// matrix without depending on the estimator's internal layout.
func (q *Likelihood) Rows() int { return q.rows }
func (q *Likelihood) Cols() int { return q.cols }

// At returns Q[flat][col], where col indexes Nodes().
func (q *Likelihood) At(flat, col int) float64 { return q.q[flat][col] }

// Row returns the full likelihood row for a flat particle index, over every
// node in Nodes() order. The returned slice is owned by the table; callers
// must not mutate it.
func (q *Likelihood) Row(flat int) []float64 { return q.q[flat] }

// Nodes returns the node order the table's columns are indexed by.
func (q *Likelihood) Nodes() []string { return q.nodes }

// ColumnOf returns the column index for node v.
func (q *Likelihood) ColumnOf(v string) (int, bool) {
	i, ok := q.index[v]
	return i, ok
}

// BuildLikelihood constructs Q for the estimator's current zHat/aHat. It has
// no failure mode of its own: every node lookup against rg's index degrades
// to a zero distance rather than erroring, matching spec.md §7's
// degrade-not-crash posture.
func (e *Estimator) BuildLikelihood(rg *roadgraph.RoadGraph) *Likelihood {
	dist, index := rg.DistMatrix()
	nodes := rg.Nodes()

	q := &Likelihood{
		rows:  len(e.zHat),
		cols:  len(nodes),
		nodes: nodes,
		index: index,
		q:     make([][]float64, len(e.zHat)),
	}

	for flat, loc := range e.zHat {
		row := make([]float64, len(nodes))
		srcIdx, ok := index[loc]
		alpha := e.aHat[flat]
		alphaSq := alpha * alpha

		for col, v := range nodes {
			var d float64
			if ok {
				if dstIdx, ok2 := index[v]; ok2 {
					if dd := dist[srcIdx][dstIdx]; !math.IsInf(dd, 1) {
						d = dd
					}
				}
			}
			s := d * alpha
			row[col] = math.Exp(-0.5*s*s) * alphaSq
		}
		q.q[flat] = row
	}

	return q
}
