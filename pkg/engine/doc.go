// Package engine computes exact discrete probability distributions over
// networks of dependent random variables.
//
// # Overview
//
// A Model is an arena of nodes. Leaves are atomic distributions: finite
// tables of values with positive weights. Every other node is derived from
// other nodes: a function of its operands, a switch on a discriminator, a
// conditioned variable (Given) or a declared reference bound later with
// Define. Nodes are immutable once built and are identified by NodeID, so
// building the same expression twice yields two independent variables while
// reusing one handle yields one variable seen from several places.
//
// # Statues Enumeration
//
// Queries walk the dependency graph depth first. When an atomic node is
// reached for the first time on a path, it is bound ("frozen") to one of its
// values and the path weight is multiplied by that value's weight. When the
// same node is reached again on that path, through another operand, it reuses
// the bound value and is not charged again. Backtracking unbinds nodes in the
// reverse order they were bound and tries the next value. The result is exact:
// correlations through shared ancestors are respected.
//
//	m := engine.NewModel(prob.Rational())
//	die, _ := engine.Uniform(m, 1, 2, 3, 4, 5, 6)
//	even := engine.Map(die, func(v int) bool { return v%2 == 0 })
//	pair := engine.PairOf(die, even) // die and even always agree
//	pmf, _ := engine.Distribution(ctx, pair)
//
// The traversal runs on an explicit frame stack; choice points snapshot the
// stack so that deep graphs do not grow the goroutine stack.
//
// # Conditioning
//
// Given(subject, evidence...) prunes every path on which some evidence is
// false. Weights are renormalized once, by the aggregator, so chained or
// nested conditions compose. A query whose evidence eliminates every path
// fails with ErrImpossibleCondition.
//
// # Queries
//
//   - Distribution: normalized PMF of a variable
//   - Weights: un-normalized weights per value
//   - P, Pf, IsTrue, IsFeasible: probability of a boolean event
//   - Cases: number of consistent assignments
//   - Sample, Estimate: Monte Carlo draws with rejection of false evidence
//   - Batch: independent queries in parallel
//
// Enumeration is exponential in the number of distinct atomic ancestors.
// Options.MaxPaths and Options.Timeout turn runaway queries into
// ErrComputationTooLarge; WorstCasePaths gives the bound up front.
//
// # Concurrency
//
// A Model may be queried from several goroutines: each query owns its freeze
// context and holds the model's read lock while it runs. Constructors take
// the write lock, so functions passed to Map or Apply must not build nodes.
//
// # Error Classification
//
// Errors are *EngineError values with a class and a code:
//
//   - construction: INVALID_DISTRIBUTION, CYCLIC_DEPENDENCY, VALIDATION_ERROR
//   - evaluation: IMPOSSIBLE_CONDITION, TYPE_MISMATCH, COMPUTATION_TOO_LARGE,
//     MISSING_CASE, ARITHMETIC
//
// Use errors.Is with the exported sentinels or Code to branch on them.
package engine
