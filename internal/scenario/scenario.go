// Package scenario re-runs the daily simulation under named stress variants.
package scenario

import (
	"sort"

	"github.com/iwvelando/cash-tuner/internal/params"
	"github.com/iwvelando/cash-tuner/internal/simulation"
	"github.com/iwvelando/cash-tuner/pkg/constants"
	"go.uber.org/zap"
)

// Variant is the perturbation handed to one simulation run.
type Variant struct {
	Key            string
	ExtraDelayDays int
	Params         params.Parameters
}

// Definition names a scenario and the transform that derives its variant
// from the unperturbed one.
type Definition struct {
	Key       string
	Transform func(Variant) Variant
}

// Meta is the externally supplied metadata for one scenario.
type Meta struct {
	GapAmount *float64 `json:"gap_amount,omitempty" yaml:"gap_amount,omitempty"`
}

// Result is a simulation result tagged with its scenario metadata.
type Result struct {
	simulation.Result
	ReportedGap *float64 `json:"reported_gap,omitempty"`
}

// Registry is an ordered set of scenario definitions.
type Registry struct {
	defs  map[string]Definition
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// DefaultRegistry registers Base, the S1 collection-delay stress, and the
// S2 and S3 variants whose keys reach the PO allocator unchanged.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Definition{Key: constants.ScenarioBase, Transform: identity})
	r.Register(Definition{Key: constants.ScenarioS1, Transform: func(v Variant) Variant {
		v.ExtraDelayDays = constants.StressDelayDays
		return v
	}})
	r.Register(Definition{Key: constants.ScenarioS2, Transform: identity})
	r.Register(Definition{Key: constants.ScenarioS3, Transform: identity})
	return r
}

func identity(v Variant) Variant {
	return v
}

// Register adds a definition, replacing any existing one with the same key.
func (r *Registry) Register(def Definition) {
	if def.Transform == nil {
		def.Transform = identity
	}
	if _, exists := r.defs[def.Key]; !exists {
		r.order = append(r.order, def.Key)
	}
	r.defs[def.Key] = def
}

// Lookup returns the definition for key.
func (r *Registry) Lookup(key string) (Definition, bool) {
	def, ok := r.defs[key]
	return def, ok
}

// Keys returns the registered keys in registration order.
func (r *Registry) Keys() []string {
	return append([]string(nil), r.order...)
}

// Runner executes every requested scenario as an independent simulation.
type Runner struct {
	logger    *zap.Logger
	simulator *simulation.Simulator
	registry  *Registry
}

// NewRunner creates a scenario runner. Nil arguments get defaults.
func NewRunner(logger *zap.Logger, simulator *simulation.Simulator, registry *Registry) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if simulator == nil {
		simulator = simulation.NewSimulator(logger)
	}
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Runner{logger: logger, simulator: simulator, registry: registry}
}

// Keys returns the scenarios Run will execute for the given metadata: Base
// and S1 always, then every other metadata key in sorted order.
func Keys(meta map[string]Meta) []string {
	keys := []string{constants.ScenarioBase, constants.ScenarioS1}
	extra := make([]string, 0, len(meta))
	for key := range meta {
		if key == constants.ScenarioBase || key == constants.ScenarioS1 || key == "" {
			continue
		}
		extra = append(extra, key)
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

// Run simulates each scenario from the same input and parameter snapshot.
// No scenario reads another scenario's output.
func (r *Runner) Run(input simulation.Input, p params.Parameters, meta map[string]Meta) (map[string]Result, []string) {
	order := Keys(meta)
	results := make(map[string]Result, len(order))

	for _, key := range order {
		def, ok := r.registry.Lookup(key)
		if !ok {
			r.logger.Debug("unregistered scenario, running unperturbed",
				zap.String("op", "scenario.Run"),
				zap.String("scenario", key),
			)
			def = Definition{Key: key, Transform: identity}
		}
		variant := def.Transform(Variant{Key: key, Params: p})

		sim := r.simulator.Simulate(input, variant.Params, simulation.Options{
			ScenarioKey:    key,
			ExtraDelayDays: variant.ExtraDelayDays,
		})
		result := Result{Result: sim}
		if m, ok := meta[key]; ok && m.GapAmount != nil {
			gap := *m.GapAmount
			result.ReportedGap = &gap
		}
		results[key] = result
	}

	r.logger.Debug("scenarios complete",
		zap.String("op", "scenario.Run"),
		zap.Strings("scenarios", order),
	)
	return results, order
}
