package estimator

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// mhResample refines the correspondence ensemble in place via N+burnIn
// Metropolis-Hastings iterations (spec.md §4.5). Each iteration picks a
// candidate row uniformly, proposes Reassociate (probability
// e.cfg.ReassociateProb) or MistakenIdentity, and overwrites the row only on
// acceptance.
func (e *Estimator) mhResample(ens *Ensemble, q *Likelihood, sensors []string, counts []int, pB float64) {
	n := len(ens.Rows)
	iterations := n + e.cfg.BurnIn
	sensorCols := make([]int, len(sensors))
	for i, s := range sensors {
		sensorCols[i], _ = q.ColumnOf(s)
	}
	nonSensorCols := complementColumns(q.Cols(), sensorCols)

	for iter := 0; iter < iterations; iter++ {
		rowIdx := e.rng.Intn(n)
		row := ens.Rows[rowIdx]

		if e.rng.Float64() < e.cfg.ReassociateProb {
			if proposed, ok := e.proposeReassociate(row, q, sensors, counts, pB, sensorCols, nonSensorCols); ok {
				ens.Rows[rowIdx] = proposed
			}
		} else {
			ens.Rows[rowIdx] = e.proposeMistakenIdentity(row)
		}
	}
}

// complementColumns returns every column index not present in exclude.
func complementColumns(total int, exclude []int) []int {
	excluded := make(map[int]bool, len(exclude))
	for _, c := range exclude {
		excluded[c] = true
	}
	cols := make([]int, 0, total-len(exclude))
	for c := 0; c < total; c++ {
		if !excluded[c] {
			cols = append(cols, c)
		}
	}
	return cols
}

// proposeReassociate implements spec.md §4.5.1: flip one agent's sensor
// association (on or off) and accept with probability min(1, ρ_s * ρ_p).
func (e *Estimator) proposeReassociate(row CorrespondenceRow, q *Likelihood, sensors []string, counts []int, pB float64, sensorCols, nonSensorCols []int) (CorrespondenceRow, bool) {
	numAgents := len(row.CVec)
	h := histogram(row.CVec, len(sensors))

	eligible := make([]int, 0, numAgents)
	for a := 0; a < numAgents; a++ {
		s := row.CVec[a]
		if s == unassociated {
			eligible = append(eligible, a)
			continue
		}
		if h[s] > counts[s] {
			eligible = append(eligible, a)
		}
	}
	if len(eligible) == 0 {
		return row, false // spec §7 EmptyFlipSet: silently reject
	}
	a := eligible[e.rng.Intn(len(eligible))]

	oldSensor := row.CVec[a]
	var allowedCols []int
	if oldSensor == unassociated {
		allowedCols = sensorCols
	} else {
		allowedCols = nonSensorCols
	}

	start, end := e.FlatRange(a)
	kWeights := make([]float64, end-start)
	for i := start; i < end; i++ {
		kWeights[i-start] = sumOverColumns(q.Row(i), allowedCols)
	}
	kPick := weightedSample(kWeights, e.rng)
	flat := start + kPick

	colWeights := make([]float64, len(allowedCols))
	fullRow := q.Row(flat)
	for i, col := range allowedCols {
		colWeights[i] = fullRow[col]
	}
	colPick := weightedSample(colWeights, e.rng)
	newCol := allowedCols[colPick]
	newNode := q.Nodes()[newCol]

	newSensor := unassociated
	for i, c := range sensorCols {
		if c == newCol {
			newSensor = i
			break
		}
	}

	cProp := append([]int(nil), row.CVec...)
	cProp[a] = newSensor
	hProp := histogram(cProp, len(sensors))

	sStar := oldSensor
	if newSensor > sStar {
		sStar = newSensor
	}
	if sStar == unassociated {
		// Both old and new are unassociated is impossible (a flip always
		// changes the sensor/non-sensor side), but guard defensively.
		return row, false
	}

	pHOld := distuv.Binomial{N: float64(h[sStar]), P: pB}.Prob(float64(counts[sStar]))
	pHNew := distuv.Binomial{N: float64(hProp[sStar]), P: pB}.Prob(float64(counts[sStar]))
	// distuv evaluates 0*log(0) as NaN when P_b is 0 or 1 at the edge
	// counts; the pmf there is exactly 1.
	if math.IsNaN(pHOld) {
		pHOld = 1
	}
	if math.IsNaN(pHNew) {
		pHNew = 1
	}
	if pHOld < 1e-12 {
		pHOld = 1e-12
	}
	rhoS := pHNew / pHOld

	senseLocCand := sensorSetFor(oldSensor, sensorCols, nonSensorCols)
	senseLocProp := sensorSetFor(newSensor, sensorCols, nonSensorCols)

	candSum := sumQOverAgentAndColumns(q, start, end, senseLocCand)
	propSum := sumQOverAgentAndColumns(q, start, end, senseLocProp)
	if propSum < degenerateThreshold {
		return row, false // spec §7 TinyPriorRatio
	}
	rhoP := candSum / propSum

	acceptance := rhoS * rhoP
	if acceptance > 1 {
		acceptance = 1
	}
	if e.rng.Float64() >= acceptance {
		return row, false
	}

	next := copyRow(row)
	next.CVec[a] = newSensor
	next.PartID[a] = flat
	next.ZVec[a] = newNode
	if newSensor != unassociated {
		next.AVec[a] = e.cfg.AssociatedAlpha
	} else {
		next.AVec[a] = e.aHat[flat]
	}
	return next, true
}

// sensorSetFor returns the allowed column set for a sensor value: the single
// sensor's column if associated, or every non-sensor column if not.
func sensorSetFor(sensor int, sensorCols, nonSensorCols []int) []int {
	if sensor == unassociated {
		return nonSensorCols
	}
	return []int{sensorCols[sensor]}
}

func sumOverColumns(row []float64, cols []int) float64 {
	var sum float64
	for _, c := range cols {
		sum += row[c]
	}
	return sum
}

func sumQOverAgentAndColumns(q *Likelihood, start, end int, cols []int) float64 {
	var sum float64
	for flat := start; flat < end; flat++ {
		sum += sumOverColumns(q.Row(flat), cols)
	}
	return sum
}

func histogram(cVec []int, numSensors int) []int {
	h := make([]int, numSensors)
	for _, s := range cVec {
		if s != unassociated {
			h[s]++
		}
	}
	return h
}

func copyRow(row CorrespondenceRow) CorrespondenceRow {
	return CorrespondenceRow{
		CVec:   append([]int(nil), row.CVec...),
		ZVec:   append([]string(nil), row.ZVec...),
		AVec:   append([]float64(nil), row.AVec...),
		PartID: append([]int(nil), row.PartID...),
	}
}

// proposeMistakenIdentity implements spec.md §4.5.2: swap two agents' entries
// (drawn uniformly and independently, so i==j is possible and a no-op);
// always accepted.
func (e *Estimator) proposeMistakenIdentity(row CorrespondenceRow) CorrespondenceRow {
	numAgents := len(row.CVec)
	i := e.rng.Intn(numAgents)
	j := e.rng.Intn(numAgents)

	next := copyRow(row)
	next.CVec[i], next.CVec[j] = next.CVec[j], next.CVec[i]
	next.ZVec[i], next.ZVec[j] = next.ZVec[j], next.ZVec[i]
	next.AVec[i], next.AVec[j] = next.AVec[j], next.AVec[i]
	next.PartID[i], next.PartID[j] = next.PartID[j], next.PartID[i]
	return next
}
