package observers

import (
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/nyeti-labs/evacsim/population"
	"github.com/nyeti-labs/evacsim/roadgraph"
)

func mustGraph(t *testing.T) *roadgraph.RoadGraph {
	rg, err := roadgraph.New(roadgraph.Options{Rows: 4, Cols: 5, ExitFraction: 0.1, RendezvousFraction: 0.1, Seed: 5})
	if err != nil {
		t.Fatalf("building test graph: %v", err)
	}
	return rg
}

func TestNewSelectsAtLeastOneSensor(t *testing.T) {
	Convey("Given a road graph and a small sensor fraction", t, func() {
		rg := mustGraph(t)
		rng := rand.New(rand.NewSource(1))
		obs := New(rg, 0.01, 0.9, rng)
		So(len(obs.Sensors), ShouldBeGreaterThanOrEqualTo, 1)
	})
}

func TestObserveNeverExceedsTrueCount(t *testing.T) {
	Convey("Given agents stacked at every sensor node", t, func() {
		rg := mustGraph(t)
		rng := rand.New(rand.NewSource(2))
		obs := New(rg, 0.5, 0.9, rng)

		pop := &population.Population{}
		for i, s := range obs.Sensors {
			for k := 0; k < 3; k++ {
				pop.Agents = append(pop.Agents, &population.Agent{ID: "x", Location: s})
				_ = i
			}
		}

		reading := obs.Observe(pop)
		for i := range obs.Sensors {
			So(reading.TrueCounts[i], ShouldEqual, 3)
			So(reading.Counts[i], ShouldBeLessThanOrEqualTo, reading.TrueCounts[i])
		}
	})
}

func TestMeasurementAvailableRequiresSensorsAndCounts(t *testing.T) {
	Convey("Given no sensors", t, func() {
		obs := &Observers{}
		So(MeasurementAvailable(obs, Reading{Counts: []int{1}}), ShouldBeFalse)
	})

	Convey("Given sensors but an empty reading", t, func() {
		obs := &Observers{Sensors: []string{"a"}}
		So(MeasurementAvailable(obs, Reading{}), ShouldBeFalse)
	})

	Convey("Given both sensors and counts", t, func() {
		obs := &Observers{Sensors: []string{"a"}}
		So(MeasurementAvailable(obs, Reading{Counts: []int{0}}), ShouldBeTrue)
	})
}
