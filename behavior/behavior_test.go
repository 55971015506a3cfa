package behavior

import (
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/nyeti-labs/evacsim/roadgraph"
)

func mustGraph(t *testing.T) *roadgraph.RoadGraph {
	rg, err := roadgraph.New(roadgraph.Options{Rows: 1, Cols: 5, Seed: 1})
	if err != nil {
		t.Fatalf("building test graph: %v", err)
	}
	return rg
}

func TestEvacuateAdvancesTowardExit(t *testing.T) {
	Convey("Given an Evacuate agent with idle probability zero", t, func() {
		rg := mustGraph(t)
		k := Kernel{IdleProbability: 0}
		rng := rand.New(rand.NewSource(1))

		exitPath := rg.ShortestExitPath(rg.Nodes()[0])
		So(len(exitPath), ShouldBeGreaterThan, 1)

		Convey("Stepping always advances one hop along the shortest exit path", func() {
			st := State{Location: exitPath[0], Behavior: Evacuate}
			next := k.step(rg, st, "", rng, func() Mode { return Evacuate })
			So(next.Location, ShouldEqual, exitPath[1])
			So(next.Behavior, ShouldEqual, Evacuate)
		})

		Convey("An agent already at an exit stays put", func() {
			exit := rg.Exits()[0]
			st := State{Location: exit, Behavior: Evacuate}
			next := k.step(rg, st, "", rng, func() Mode { return Evacuate })
			So(next.Location, ShouldEqual, exit)
		})
	})
}

func TestRendezvousTransitionsToWaitOnArrival(t *testing.T) {
	Convey("Given a Rendezvous agent already at its rendezvous node", t, func() {
		rg := mustGraph(t)
		k := Kernel{IdleProbability: 0}
		rng := rand.New(rand.NewSource(2))
		rendezvous := rg.Rendezvous()[0]

		st := State{Location: rendezvous, Behavior: Rendezvous}
		next := k.StepAgent(rg, st, rendezvous, false, rng)

		So(next.Behavior, ShouldEqual, Wait)
		So(next.Location, ShouldEqual, rendezvous)
	})
}

func TestWaitReleasesOnGroupReunionForAgents(t *testing.T) {
	Convey("Given a Waiting agent whose group has fully reunited", t, func() {
		rg := mustGraph(t)
		k := Kernel{IdleProbability: 0}
		rng := rand.New(rand.NewSource(3))
		loc := rg.Nodes()[0]

		st := State{Location: loc, Behavior: Wait}
		next := k.StepAgent(rg, st, loc, true, rng)

		So(next.Behavior, ShouldEqual, Evacuate)
	})
}

func TestWaitReleasesStochasticallyForParticles(t *testing.T) {
	Convey("Given a Waiting particle and P_tr=1", t, func() {
		rg := mustGraph(t)
		k := Kernel{IdleProbability: 0}
		rng := rand.New(rand.NewSource(4))
		loc := rg.Nodes()[0]

		st := State{Location: loc, Behavior: Wait}
		next := k.StepParticle(rg, st, loc, 1.0, rng)

		So(next.Behavior, ShouldEqual, Evacuate)
	})
}

func TestTerminalModesNeverChange(t *testing.T) {
	Convey("Given Exited and Stay states", t, func() {
		rg := mustGraph(t)
		k := Kernel{IdleProbability: 0}
		rng := rand.New(rand.NewSource(5))

		for _, mode := range []Mode{Exited, Stay} {
			st := State{Location: rg.Nodes()[0], Behavior: mode}
			next := k.StepAgent(rg, st, "", true, rng)
			So(next, ShouldResemble, st)
		}
	})
}

func TestIdleProbabilityHoldsAgentStill(t *testing.T) {
	Convey("Given idle probability 1", t, func() {
		rg := mustGraph(t)
		k := Kernel{IdleProbability: 1}
		rng := rand.New(rand.NewSource(6))
		st := State{Location: rg.Nodes()[0], Behavior: Evacuate}

		next := k.StepAgent(rg, st, "", false, rng)

		So(next, ShouldResemble, st)
	})
}

func TestUnknownBehaviorIsANoOp(t *testing.T) {
	Convey("Given a corrupted behavior code", t, func() {
		rg := mustGraph(t)
		k := Kernel{IdleProbability: 0}
		rng := rand.New(rand.NewSource(7))
		st := State{Location: rg.Nodes()[0], Behavior: Mode("?")}

		next := k.StepAgent(rg, st, "", false, rng)

		So(next, ShouldResemble, st)
	})
}
