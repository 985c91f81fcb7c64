// Package config holds compiler-wide feature toggles and target selection
// as a registry of named toggles rather than a bag of loose booleans.
package config

import (
	"fmt"

	"github.com/toyc-lang/toycc/pkg/cli"
	"github.com/toyc-lang/toycc/pkg/util"
)

// Feature identifies an opt-in compiler behavior.
type Feature int

const (
	// FeatShortCircuitEval switches && and || condition lowering in if/while
	// from unconditional (non-short-circuit) evaluation to branching,
	// short-circuit evaluation. Off by default: both operands are always
	// evaluated, matching the source language's semantics.
	FeatShortCircuitEval Feature = iota
	featCount
)

type featureInfo struct {
	Name        string
	Description string
}

var features = map[Feature]featureInfo{
	FeatShortCircuitEval: {"short-circuit", "Evaluate && and || with short-circuit branching instead of unconditional evaluation."},
}

// Backend selects which codegen.Backend implementation emits the final text.
type Backend int

const (
	BackendRiscv32 Backend = iota
	BackendQBE
)

func ParseBackend(name string) (Backend, error) {
	switch name {
	case "", "riscv32":
		return BackendRiscv32, nil
	case "qbe":
		return BackendQBE, nil
	default:
		return 0, fmt.Errorf("unsupported target %q (want \"riscv32\" or \"qbe\")", name)
	}
}

func (b Backend) String() string {
	switch b {
	case BackendQBE:
		return "qbe"
	default:
		return "riscv32"
	}
}

// Config carries the feature toggles and target selection threaded through
// a single compilation.
type Config struct {
	features map[Feature]bool
	Backend  Backend
	// QBETarget names the libqbe target triple used when Backend is
	// BackendQBE (e.g. "amd64_sysv", "arm64", "rv64"). Empty selects
	// libqbe's host default.
	QBETarget string
}

// NewConfig returns a Config with every feature at its documented
// default.
func NewConfig() *Config {
	c := &Config{features: make(map[Feature]bool, featCount)}
	for f := range features {
		c.features[f] = false
	}
	return c
}

func (c *Config) IsFeatureEnabled(f Feature) bool { return c.features[f] }
func (c *Config) SetFeature(f Feature, enabled bool) {
	c.features[f] = enabled
}

// FeatureName returns the flag name used to toggle f from the CLI.
func FeatureName(f Feature) string { return features[f].Name }

// AllFeatures returns every known Feature, in declaration order.
func AllFeatures() []Feature {
	fs := make([]Feature, featCount)
	for i := range fs {
		fs[i] = Feature(i)
	}
	return fs
}

// SetupFlagGroups registers the "-W<name>"/"-Wno-<name>" and
// "-f<name>"/"-fno-<name>" flag groups on fs for every known warning and
// feature, and returns the backing entries in the same order AllWarnings
// and AllFeatures enumerate them, so a caller can read back which ones the
// user toggled after fs.Parse runs.
func SetupFlagGroups(fs *cli.FlagSet) (warningFlags, featureFlags []cli.FlagGroupEntry) {
	for _, w := range util.AllWarnings() {
		enabled := util.IsWarningEnabled(w)
		disabled := !enabled
		warningFlags = append(warningFlags, cli.FlagGroupEntry{
			Name:     util.WarningName(w),
			Prefix:   "W",
			Usage:    "Toggle the '" + util.WarningName(w) + "' warning.",
			Enabled:  &enabled,
			Disabled: &disabled,
		})
	}
	fs.AddFlagGroup("Warnings", "Diagnostics that do not abort compilation.", "warning", "Available warnings", warningFlags)

	for _, feat := range AllFeatures() {
		enabled := false
		disabled := !enabled
		featureFlags = append(featureFlags, cli.FlagGroupEntry{
			Name:     FeatureName(feat),
			Prefix:   "f",
			Usage:    features[feat].Description,
			Enabled:  &enabled,
			Disabled: &disabled,
		})
	}
	fs.AddFlagGroup("Features", "Opt-in compiler behaviors.", "feature", "Available features", featureFlags)

	return warningFlags, featureFlags
}
