package config

import (
	"context"
	"testing"
)

func TestSchemaRegistry_RegisterAndGet(t *testing.T) {
	sr := NewSchemaRegistry()

	customSchema := `
#Dice: {
	sides: int & >=2
	count: int & >=1
}
`

	err := sr.RegisterSchema("dice", customSchema)
	if err != nil {
		t.Fatalf("failed to register schema: %v", err)
	}

	schema, ok := sr.GetSchema("dice")
	if !ok {
		t.Fatal("expected to find dice schema")
	}

	if schema.Err() != nil {
		t.Errorf("schema has errors: %v", schema.Err())
	}
}

func TestSchemaRegistry_BuiltInSchemas(t *testing.T) {
	sr := NewSchemaRegistry()

	for _, name := range []string{"model", "query", "variable"} {
		schema, ok := sr.GetSchema(name)
		if !ok {
			t.Errorf("expected built-in schema %s", name)
			continue
		}
		if !schema.Exists() {
			t.Errorf("built-in schema %s does not exist", name)
		}
	}

	names := sr.ListSchemas()
	if len(names) != 3 || names[0] != "model" || names[1] != "query" || names[2] != "variable" {
		t.Errorf("unexpected schema list %v", names)
	}
}

func TestSchemaRegistry_InvalidSchema(t *testing.T) {
	sr := NewSchemaRegistry()

	if err := sr.RegisterSchema("broken", `#X: {a: int & string`); err == nil {
		t.Error("expected error for malformed schema")
	}
}

func TestSchemaRegistry_ValidateQuery(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	tests := []struct {
		name    string
		data    map[string]interface{}
		wantErr bool
	}{
		{
			name: "valid probability query",
			data: map[string]interface{}{
				"name":   "p_heads",
				"target": "coin",
				"kind":   "probability",
				"value":  "H",
			},
		},
		{
			name: "unknown kind",
			data: map[string]interface{}{
				"name":   "bad",
				"target": "coin",
				"kind":   "median",
			},
			wantErr: true,
		},
		{
			name: "missing target",
			data: map[string]interface{}{
				"name": "bad",
				"kind": "distribution",
			},
			wantErr: true,
		},
		{
			name: "negative trials",
			data: map[string]interface{}{
				"name":   "mc",
				"target": "coin",
				"kind":   "sample",
				"trials": -1,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sr.ValidateAgainstSchema(ctx, "query", tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAgainstSchema() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSchemaRegistry_ValidateModel(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	spec := &ModelSpec{
		Name: "coins",
		Variables: map[string]VariableSpec{
			"a": {Atomic: map[string]any{"H": 3, "T": 1}},
			"b": {Uniform: []any{"H", "T"}},
		},
		Queries: []QuerySpec{{Name: "a", Target: "a", Kind: KindDistribution}},
	}
	if err := sr.ValidateModel(ctx, spec); err != nil {
		t.Errorf("expected valid model, got %v", err)
	}

	spec.Representation = "binary"
	if err := sr.ValidateModel(ctx, spec); err == nil {
		t.Error("expected error for unknown representation")
	}
}
