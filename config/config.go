// Package config loads a run's scenario and estimator hyperparameters from a
// YAML document. It follows the same viper-then-yaml two-stage unmarshal used
// elsewhere in this codebase's lineage: viper reads the file and hands back a
// generic map, which is re-marshaled and unmarshaled into the typed struct.
// This avoids binding the on-disk schema directly to viper's tag conventions.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// outerDoc is the raw top-level document; Run holds everything under the
// "run" key so a future config file could carry sibling sections (e.g.
// server, logging) without colliding with RunConfig's field names.
type outerDoc struct {
	Run interface{} `mapstructure:"run"`
}

// RunConfig holds the scenario and estimator parameters for one simulation
// run: graph shape, population shape, sensor layout, and the particle
// filter's hyperparameters from spec §3/§4.
type RunConfig struct {
	// Seed is the process-wide RNG seed; determinism requires every
	// stochastic draw in the run to derive from it (spec §5).
	Seed int64 `yaml:"seed"`
	// Ticks is the number of simulation/estimation ticks to run.
	Ticks int `yaml:"ticks"`

	Graph      GraphConfig      `yaml:"graph"`
	Population PopulationConfig `yaml:"population"`
	Observers  ObserverConfig   `yaml:"observers"`
	Estimator  EstimatorConfig  `yaml:"estimator"`
	Output     OutputConfig     `yaml:"output"`
}

// GraphConfig describes the road network to synthesize when no pre-built
// graph is supplied (road-network generation proper is out of scope per
// spec §1; this is the minimal reference shape needed to drive a run).
type GraphConfig struct {
	// Nodes is a vertex count for the road network. Nothing reads it:
	// main.go sizes the grid from its -rows/-cols flags (or the -debug grid).
	Nodes int `yaml:"nodes"`
	// ExitFraction is the fraction of nodes designated as exits X.
	ExitFraction float64 `yaml:"exitFraction"`
	// RendezvousFraction is the fraction of nodes designated rendezvous R.
	RendezvousFraction float64 `yaml:"rendezvousFraction"`
}

// PopulationConfig describes agent/group synthesis.
type PopulationConfig struct {
	NumAgents       int     `yaml:"numAgents"`
	MaxGroupSize    int     `yaml:"maxGroupSize"`
	SingletonChance float64 `yaml:"singletonChance"`
}

// ObserverConfig describes sensor placement and the binomial detection model.
type ObserverConfig struct {
	// SensorFraction is the fraction of nodes instrumented with a sensor.
	SensorFraction float64 `yaml:"sensorFraction"`
	// DetectionProbability is P_b in spec §4.3/§4.4/§4.5 (typically 0.9).
	DetectionProbability float64 `yaml:"detectionProbability"`
}

// EstimatorConfig carries the particle filter's hyperparameters, all named
// directly after the spec's symbols so the mapping is traceable.
type EstimatorConfig struct {
	// NumParticles is N, particles per agent.
	NumParticles int `yaml:"numParticles"`
	// InitialAlpha is α₀ used by randomizeParticles.
	InitialAlpha float64 `yaml:"initialAlpha"`
	// IdleProbability is p_idle = 0.1.
	IdleProbability float64 `yaml:"idleProbability"`
	// InitialTransitionProb is the seed value of P_tr.
	InitialTransitionProb float64 `yaml:"initialTransitionProb"`
	// TransitionLearnRate is P_0 = 0.1 in the P_tr update rule.
	TransitionLearnRate float64 `yaml:"transitionLearnRate"`
	// ReassociateProb is p_reassoc = 0.99.
	ReassociateProb float64 `yaml:"reassociateProb"`
	// BurnIn is B = 20, extra MH iterations beyond N.
	BurnIn int `yaml:"burnIn"`
	// AssociatedAlpha is the fixed α=10 assigned on sensor association.
	AssociatedAlpha float64 `yaml:"associatedAlpha"`
}

// OutputConfig names the advisory persistence files from spec §6.
type OutputConfig struct {
	ParticleFile string `yaml:"particleFile"`
	ObserverFile string `yaml:"observerFile"`
}

// Default returns the parameter set named throughout spec.md, useful for
// tests and as a fallback when no file is supplied.
func Default() *RunConfig {
	return &RunConfig{
		Seed:  1,
		Ticks: 50,
		Graph: GraphConfig{
			Nodes:              20,
			ExitFraction:       0.1,
			RendezvousFraction: 0.1,
		},
		Population: PopulationConfig{
			NumAgents:       4,
			MaxGroupSize:    4,
			SingletonChance: 0.3,
		},
		Observers: ObserverConfig{
			SensorFraction:       0.1,
			DetectionProbability: 0.9,
		},
		Estimator: EstimatorConfig{
			NumParticles:          10,
			InitialAlpha:          0.1,
			IdleProbability:       0.1,
			InitialTransitionProb: 0.1,
			TransitionLearnRate:   0.1,
			ReassociateProb:       0.99,
			BurnIn:                20,
			AssociatedAlpha:       10,
		},
		Output: OutputConfig{
			ParticleFile: "particles.csv",
			ObserverFile: "observers.csv",
		},
	}
}

// FromYAML reads and parses a run configuration file at path. Absence of a
// "run" top-level key is treated as the whole document being the run config,
// so a bare file works as well as a namespaced one.
func FromYAML(path string) (*RunConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	if err := vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	outer := &outerDoc{}
	if err := vp.Unmarshal(outer); err != nil {
		return nil, fmt.Errorf("config: unmarshal outer doc: %w", err)
	}

	section := outer.Run
	if section == nil {
		section = vp.AllSettings()
	}

	raw, err := yaml.Marshal(section)
	if err != nil {
		return nil, fmt.Errorf("config: re-marshal run section: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal run section: %w", err)
	}

	return cfg, nil
}
