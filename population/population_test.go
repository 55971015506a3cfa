package population

import (
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/nyeti-labs/evacsim/behavior"
	"github.com/nyeti-labs/evacsim/roadgraph"
)

func mustGraph(t *testing.T) *roadgraph.RoadGraph {
	rg, err := roadgraph.New(roadgraph.Options{Rows: 4, Cols: 4, ExitFraction: 0.1, RendezvousFraction: 0.2, Seed: 11})
	if err != nil {
		t.Fatalf("building test graph: %v", err)
	}
	return rg
}

func TestNewSynthesizesExactlyNumAgents(t *testing.T) {
	Convey("Given a population config for 9 agents", t, func() {
		rg := mustGraph(t)
		rng := rand.New(rand.NewSource(1))
		pop, err := New(Config{NumAgents: 9, MaxGroupSize: 4, SingletonChance: 0.3}, rg, rng)
		So(err, ShouldBeNil)
		So(len(pop.Agents), ShouldEqual, 9)
	})
}

func TestGroupedAgentsShareARendezvousNode(t *testing.T) {
	Convey("Given a population with at least one group", t, func() {
		rg := mustGraph(t)
		rng := rand.New(rand.NewSource(2))
		pop, err := New(Config{NumAgents: 8, MaxGroupSize: 4, SingletonChance: 0}, rg, rng)
		So(err, ShouldBeNil)

		for groupID, memberIDs := range pop.Groups {
			var rendezvous string
			for i, id := range memberIDs {
				a, ok := pop.Agent(id)
				So(ok, ShouldBeTrue)
				So(a.GroupID, ShouldEqual, groupID)
				if i == 0 {
					rendezvous = a.RendezvousNode
				} else {
					So(a.RendezvousNode, ShouldEqual, rendezvous)
				}
			}
		}
	})
}

func TestInitialBehaviorNeverStartsExited(t *testing.T) {
	Convey("Given a freshly synthesized population", t, func() {
		rg := mustGraph(t)
		rng := rand.New(rand.NewSource(3))
		pop, err := New(Config{NumAgents: 6, MaxGroupSize: 3, SingletonChance: 0.3}, rg, rng)
		So(err, ShouldBeNil)

		for _, a := range pop.Agents {
			So(a.Behavior, ShouldNotEqual, behavior.Exited)
			if a.GroupID == "" {
				So(a.Behavior, ShouldEqual, behavior.Evacuate)
			} else {
				So(a.Behavior, ShouldBeIn, []behavior.Mode{behavior.Rendezvous, behavior.Stay})
			}
		}
	})
}

func TestRecomputeTogetherReflectsCoLocation(t *testing.T) {
	Convey("Given every member of one group forced to the same location", t, func() {
		rg := mustGraph(t)
		rng := rand.New(rand.NewSource(4))
		pop, err := New(Config{NumAgents: 4, MaxGroupSize: 4, SingletonChance: 0}, rg, rng)
		So(err, ShouldBeNil)

		groupID := pop.Agents[0].GroupID
		members := pop.Groups[groupID]
		So(len(members), ShouldBeGreaterThan, 1)

		for _, id := range members {
			a, _ := pop.Agent(id)
			a.Location = "shared"
		}
		pop.RecomputeTogether()

		for _, id := range members {
			a, _ := pop.Agent(id)
			So(len(a.TogetherWith), ShouldEqual, len(members)-1)
			So(pop.AllGathered(a), ShouldBeTrue)
		}
	})
}

func TestSingletonsAreAlwaysGathered(t *testing.T) {
	Convey("Given a singleton agent", t, func() {
		a := &Agent{ID: "a0", TogetherWith: map[string]bool{}}
		pop := &Population{Groups: map[string][]string{}}
		So(pop.AllGathered(a), ShouldBeTrue)
	})
}
