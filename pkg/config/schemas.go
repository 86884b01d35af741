package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	return newSchemaRegistry(cuecontext.New())
}

func newSchemaRegistry(ctx *cue.Context) *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     ctx,
		schemas: make(map[string]cue.Value),
	}

	if err := sr.registerBuiltInSchemas(); err != nil {
		// The built-in schemas are constants; failing to compile them is a bug.
		panic(err)
	}

	return sr
}

// registerBuiltInSchemas registers the model file definitions.
func (sr *SchemaRegistry) registerBuiltInSchemas() error {
	val := sr.ctx.CompileString(builtinModelSchema, cue.Filename("model_schema.cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile built-in schemas: %w", err)
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()
	for name, def := range map[string]string{
		"model":    "#Model",
		"variable": "#Variable",
		"query":    "#Query",
	} {
		sr.schemas[name] = val.LookupPath(cue.ParsePath(def))
	}
	return nil
}

// RegisterSchema registers a CUE schema with the given name. The schema is
// the whole compiled document.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// Unify unifies a CUE value with a named schema and checks that the result
// is concrete.
func (sr *SchemaRegistry) Unify(schemaName string, val cue.Value) (cue.Value, error) {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return cue.Value{}, fmt.Errorf("schema %s not found", schemaName)
	}

	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return unified, err
	}
	return unified, nil
}

// ValidateAgainstSchema validates Go data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	if _, err := sr.Unify(schemaName, dataVal); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// ListSchemas returns all registered schema names.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateModel validates a decoded model against the model schema.
func (sr *SchemaRegistry) ValidateModel(ctx context.Context, spec *ModelSpec) error {
	return sr.ValidateAgainstSchema(ctx, "model", spec)
}

const builtinModelSchema = `
// Model is a model file
#Model: {
	name:            string & !=""
	representation?: "rational" | "float" | "decimal"

	limits?: {
		max_paths?:        int & >=0
		timeout?:          string | int
		max_sample_tries?: int & >=0
	}

	variables: {[string]: #Variable}
	queries?: [...#Query]
}

// Weight is an integer, a float or a string such as "1/3"
#Weight: number | string

// Variable holds exactly one definition form
#Variable: {
	atomic?:    {[string]: #Weight}
	entries?:   [...{value: _, weight: #Weight}]
	uniform?:   [..._]
	certain?:   _
	bernoulli?: #Weight

	expr?:   string
	args?:   [...string]
	params?: [...string]

	switch?:  string
	cases?:   {[string]: string}
	default?: string

	given?:    string
	evidence?: [...string]

	joint?: [...string]
	times?: int & >=0

	type?:        "string" | "int" | "float" | "bool"
	description?: string
}

// Query is one query run by statues eval
#Query: {
	name:   string & !=""
	target: string & !=""
	kind:   "distribution" | "probability" | "weights" | "cases" | "sample" | "estimate" | "true" | "feasible"
	value?: _
	given?: [...string]
	trials?: int & >=0
	seed?:   int & >=0
}
`
