// Package policy lints models with Open Policy Agent.
//
// A policy is a Rego module whose deny set lists violations. Each entry is
// either a message string or an object with message, severity, variable and
// query keys. Policies see a description of the built model as input: its
// representation, limits, per-variable definition form and graph position,
// and per-query worst-case path counts (see Input).
//
// Built-in policies cover path budgets, unused variables, float exactness
// and large sampling queries. More can be loaded from .rego files:
//
//	eng, err := policy.NewEngine(logger)
//	if err != nil {
//		return err
//	}
//	if err := eng.LoadPolicies(ctx, []string{"policies/"}); err != nil {
//		return err
//	}
//	in, err := policy.NewInput(built)
//	if err != nil {
//		return err
//	}
//	report, err := eng.Evaluate(ctx, in)
//
// A report is not allowed when any violation has error severity.
package policy
