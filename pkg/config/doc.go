// Package config loads statues model files and turns them into engine
// models.
//
// # Overview
//
// A model file names random variables and the queries to run against them.
// Files are YAML (or JSON) decoded with gopkg.in/yaml.v3, or CUE unified
// with the built-in #Model schema. Both decode into ModelSpec, which is then
// checked with validator struct tags and cross-reference rules.
//
// # Variables
//
// Each variable has exactly one definition form:
//
//   - atomic, entries, uniform, certain, bernoulli: leaf distributions
//   - expr: a Starlark expression applied to other variables
//   - switch: a conditional table keyed by the printed discriminator value
//   - given: a variable conditioned on boolean evidence
//   - joint: a tuple of variables
//   - times: N independent copies folded with a two-parameter expr
//
// Variables may refer to each other in any order. Build resolves them depth
// first and reports reference cycles as engine.ErrCyclicDependency.
//
// # Usage Example
//
//	loader := config.NewLoader()
//	spec, err := loader.Load(ctx, "coins.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	built, err := config.Build(ctx, spec)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	queries, err := built.Queries()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	results, err := engine.Batch(ctx, 4, queries...)
//
// # Expressions
//
// Expressions are compiled once into a Starlark lambda over x, y, z, u, v
// and w (or the names listed in params). Each call runs on a fresh thread
// with a step limit. Values cross the boundary as int64, float64, string,
// bool, None and tuples.
package config
