/*
evacsim simulates evacuation of grouped agents over a road network while, in
parallel, a particle-filter estimator infers agent locations from noisy
anonymous sensor counts — it never observes identity, only per-node counts —
resolving the count-to-identity ambiguity with a Metropolis-Hastings
correspondence sampler. Road-network generation, population synthesis, and
visualization are deliberately out of scope; this binary wires together
reference implementations of those collaborators so the estimator core has
something concrete to run against.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/nyeti-labs/evacsim/behavior"
	"github.com/nyeti-labs/evacsim/config"
	"github.com/nyeti-labs/evacsim/estimator"
	"github.com/nyeti-labs/evacsim/observers"
	"github.com/nyeti-labs/evacsim/persist"
	"github.com/nyeti-labs/evacsim/population"
	"github.com/nyeti-labs/evacsim/roadgraph"
	"github.com/nyeti-labs/evacsim/simulator"
)

// debugGridRows/debugGridCols size the road network when -debug is set, the
// same role the teacher's selectTrack()/grid_world.DebugTrack plays: a small
// fixed layout for quickly eyeballing a run instead of waiting on -rows/-cols.
const (
	debugGridRows = 2
	debugGridCols = 2
)

var (
	cfgPath *string
	rows    *int
	cols    *int
	seed    *int64
	ticks   *int
	debug   *bool
)

// TODO per 12-factor rules these should be taken from env where deployed;
// KISS for a single-binary reference run.
func init() {
	cfgPath = flag.String("config", "", "path to a YAML run config; defaults built in if unset")
	rows = flag.Int("rows", 4, "road-network grid rows")
	cols = flag.Int("cols", 5, "road-network grid columns")
	seed = flag.Int64("seed", -1, "random seed; overrides the config value when >= 0")
	ticks = flag.Int("ticks", -1, "number of ticks to run; overrides the config value when >= 0")
	debug = flag.Bool("debug", false, "run a small fixed-size debug grid instead of -rows/-cols")
	flag.Parse()
}

func loadConfig() (*config.RunConfig, error) {
	var cfg *config.RunConfig
	var err error
	if *cfgPath == "" {
		cfg = config.Default()
	} else if cfg, err = config.FromYAML(*cfgPath); err != nil {
		return nil, err
	}

	if *seed >= 0 {
		cfg.Seed = *seed
	}
	if *ticks >= 0 {
		cfg.Ticks = *ticks
	}
	return cfg, nil
}

// gridDims reports the road-network size to build: the debug grid if -debug
// is set, else -rows/-cols.
func gridDims() (int, int) {
	if *debug {
		return debugGridRows, debugGridCols
	}
	return *rows, *cols
}

func runApp() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	gridRows, gridCols := gridDims()
	rg, err := roadgraph.New(roadgraph.Options{
		Rows:               gridRows,
		Cols:               gridCols,
		ExitFraction:       cfg.Graph.ExitFraction,
		RendezvousFraction: cfg.Graph.RendezvousFraction,
		Seed:               cfg.Seed,
	})
	if err != nil {
		return fmt.Errorf("building road graph: %w", err)
	}

	pop, err := population.New(population.Config{
		NumAgents:       cfg.Population.NumAgents,
		MaxGroupSize:    cfg.Population.MaxGroupSize,
		SingletonChance: cfg.Population.SingletonChance,
	}, rg, rng)
	if err != nil {
		return fmt.Errorf("synthesizing population: %w", err)
	}

	obs := observers.New(rg, cfg.Observers.SensorFraction, cfg.Observers.DetectionProbability, rng)

	est := estimator.CreateEstimatorPopulation(pop, cfg.Estimator.NumParticles, estimator.Config{
		NumParticles:          cfg.Estimator.NumParticles,
		InitialAlpha:          cfg.Estimator.InitialAlpha,
		IdleProbability:       cfg.Estimator.IdleProbability,
		InitialTransitionProb: cfg.Estimator.InitialTransitionProb,
		TransitionLearnRate:   cfg.Estimator.TransitionLearnRate,
		ReassociateProb:       cfg.Estimator.ReassociateProb,
		BurnIn:                cfg.Estimator.BurnIn,
		AssociatedAlpha:       cfg.Estimator.AssociatedAlpha,
	}, rng)
	est.RandomizeParticles(rg, cfg.Estimator.InitialAlpha)

	driver := &simulator.Driver{
		RoadGraph:            rg,
		Population:           pop,
		Observers:            obs,
		Estimator:            est,
		Kernel:               behavior.Kernel{IdleProbability: cfg.Estimator.IdleProbability},
		DetectionProbability: cfg.Observers.DetectionProbability,
		Rng:                  rng,
	}

	particleFile, err := os.Create(cfg.Output.ParticleFile)
	if err != nil {
		return fmt.Errorf("opening particle output: %w", err)
	}
	defer particleFile.Close()
	observerFile, err := os.Create(cfg.Output.ObserverFile)
	if err != nil {
		return fmt.Errorf("opening observer output: %w", err)
	}
	defer observerFile.Close()

	pw := persist.NewParticleWriter(particleFile)
	ow := persist.NewObserverWriter(observerFile, obs.Sensors)
	defer pw.Flush()
	defer ow.Flush()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	simulator.Run(ctx, driver, cfg.Ticks, time.Millisecond, func(snap simulator.Snapshot) {
		if err := pw.WriteTick(snap.Tick, snap.Estimator); err != nil {
			fmt.Fprintf(os.Stderr, "writing particle tick %d: %v\n", snap.Tick, err)
		}
		if err := ow.WriteTick(snap.Tick, snap.Reading); err != nil {
			fmt.Fprintf(os.Stderr, "writing observer tick %d: %v\n", snap.Tick, err)
		}
		fmt.Printf("tick %d: exited=%d\n", snap.Tick, population.ExitedCount(pop, rg))
	})

	return nil
}

func main() {
	if err := runApp(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
