package policy

// BuiltinPolicies returns the policies every engine starts with.
func BuiltinPolicies() []Policy {
	return []Policy{
		pathBudgetPolicy(),
		unusedVariablesPolicy(),
		floatExactnessPolicy(),
		sampleSizePolicy(),
	}
}

// pathBudgetPolicy flags exact queries whose enumeration may explode.
func pathBudgetPolicy() Policy {
	return Policy{
		Name:        "path-budget",
		Description: "Flags exact queries whose worst-case path count exceeds the model's max_paths, or one million when unbounded",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package statues.policies.paths

import rego.v1

unbounded_budget := 1000000

exact(kind) if not kind in {"sample", "estimate"}

deny contains violation if {
	some q in input.queries
	exact(q.kind)
	input.limits.max_paths > 0
	q.worst_case_paths > input.limits.max_paths
	violation := {
		"message": sprintf("query %s may enumerate up to %v paths, above max_paths %v", [q.name, q.worst_case_paths, input.limits.max_paths]),
		"query": q.name,
	}
}

deny contains violation if {
	some q in input.queries
	exact(q.kind)
	input.limits.max_paths == 0
	q.worst_case_paths > unbounded_budget
	violation := {
		"message": sprintf("query %s may enumerate up to %v paths and the model sets no max_paths", [q.name, q.worst_case_paths]),
		"query": q.name,
	}
}
`,
	}
}

// unusedVariablesPolicy lists variables no query depends on.
func unusedVariablesPolicy() Policy {
	return Policy{
		Name:        "unused-variables",
		Description: "Reports variables that no query depends on",
		Severity:    SeverityInfo,
		Enabled:     true,
		Rego: `package statues.policies.unused

import rego.v1

deny contains violation if {
	count(input.queries) > 0
	some name, variable in input.variables
	not variable.queried
	violation := {
		"message": sprintf("variable %s is not used by any query", [name]),
		"variable": name,
	}
}
`,
	}
}

// floatExactnessPolicy warns about certainty checks under float arithmetic.
func floatExactnessPolicy() Policy {
	return Policy{
		Name:        "float-exactness",
		Description: "Warns when true or feasible queries run with inexact float probabilities",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package statues.policies.exactness

import rego.v1

deny contains violation if {
	input.representation == "float"
	some q in input.queries
	q.kind in {"true", "feasible"}
	violation := {
		"message": sprintf("query %s compares a float probability exactly; use rational or decimal", [q.name]),
		"query": q.name,
	}
}
`,
	}
}

// sampleSizePolicy flags large sampling queries without a timeout.
func sampleSizePolicy() Policy {
	return Policy{
		Name:        "sample-size",
		Description: "Flags sample and estimate queries over one million trials in models without a timeout",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package statues.policies.sampling

import rego.v1

deny contains violation if {
	some q in input.queries
	q.kind in {"sample", "estimate"}
	q.trials > 1000000
	input.limits.timeout == ""
	violation := {
		"message": sprintf("query %s draws %v samples and the model sets no timeout", [q.name, q.trials]),
		"query": q.name,
	}
}
`,
	}
}
