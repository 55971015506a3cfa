package simulator

import (
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/nyeti-labs/evacsim/behavior"
	"github.com/nyeti-labs/evacsim/estimator"
	"github.com/nyeti-labs/evacsim/observers"
	"github.com/nyeti-labs/evacsim/population"
	"github.com/nyeti-labs/evacsim/roadgraph"
)

func TestSingleEvacuatingAgentReachesExitAlongShortestPath(t *testing.T) {
	Convey("Given a 5-node path with a single Evacuate agent at one end and p_idle=0", t, func() {
		rg, err := roadgraph.New(roadgraph.Options{Rows: 1, Cols: 5, ExitFraction: 0.2, RendezvousFraction: 0.2, Seed: 1})
		So(err, ShouldBeNil)

		start := rg.Nodes()[0]
		var exit string
		for _, v := range rg.Nodes() {
			if rg.IsExit(v) {
				exit = v
			}
		}
		So(exit, ShouldNotEqual, "")

		pop := &population.Population{Agents: []*population.Agent{
			{ID: "a0", Location: start, Behavior: behavior.Evacuate, TogetherWith: map[string]bool{}},
		}}
		rng := rand.New(rand.NewSource(1))
		obs := observers.New(rg, 0, 0.9, rng)
		e := estimator.CreateEstimatorPopulation(pop, 2, estimator.Config{NumParticles: 2, InitialAlpha: 0.3}, rng)

		d := &Driver{
			RoadGraph:            rg,
			Population:           pop,
			Observers:            obs,
			Estimator:            e,
			Kernel:               behavior.Kernel{IdleProbability: 0},
			DetectionProbability: 0.9,
			Rng:                  rng,
		}

		path := rg.ShortestExitPath(start)
		for tick := 0; tick < len(path)-1; tick++ {
			d.Tick(tick)
		}

		So(pop.Agents[0].Location, ShouldEqual, exit)

		Convey("Further ticks leave the agent at the exit", func() {
			d.Tick(len(path))
			So(pop.Agents[0].Location, ShouldEqual, exit)
		})
	})
}
