package config

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDefaultMatchesDocumentedValues(t *testing.T) {
	Convey("Given the built-in default config", t, func() {
		cfg := Default()

		So(cfg.Seed, ShouldEqual, int64(1))
		So(cfg.Ticks, ShouldEqual, 50)
		So(cfg.Graph.Nodes, ShouldEqual, 20)
		So(cfg.Population.NumAgents, ShouldEqual, 4)
		So(cfg.Observers.DetectionProbability, ShouldEqual, 0.9)
		So(cfg.Estimator.NumParticles, ShouldEqual, 10)
		So(cfg.Estimator.BurnIn, ShouldEqual, 20)
		So(cfg.Estimator.ReassociateProb, ShouldEqual, 0.99)
		So(cfg.Estimator.AssociatedAlpha, ShouldEqual, float64(10))
	})
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	Convey("Given a YAML file overriding a subset of fields", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		contents := "run:\n  seed: 99\n  ticks: 7\n"
		So(os.WriteFile(path, []byte(contents), 0o644), ShouldBeNil)

		cfg, err := FromYAML(path)
		So(err, ShouldBeNil)
		So(cfg.Seed, ShouldEqual, int64(99))
		So(cfg.Ticks, ShouldEqual, 7)

		Convey("Unspecified fields keep their default values", func() {
			So(cfg.Estimator.NumParticles, ShouldEqual, 10)
		})
	})
}
