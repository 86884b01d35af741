package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/statues/pkg/telemetry"
)

// Model file formats.
const (
	FormatYAML = "yaml"
	FormatCUE  = "cue"
)

// Loader parses and validates model files.
type Loader struct {
	ctx       *cue.Context
	schemas   *SchemaRegistry
	validator *validator.Validate
}

// NewLoader creates a new model file loader.
func NewLoader() *Loader {
	ctx := cuecontext.New()

	v := validator.New()
	// Report yaml field names in validation errors.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &Loader{
		ctx:       ctx,
		schemas:   newSchemaRegistry(ctx),
		validator: v,
	}
}

// Schemas returns the schema registry.
func (l *Loader) Schemas() *SchemaRegistry {
	return l.schemas
}

// FormatOf returns the model format implied by a file extension.
// JSON files are read by the YAML decoder.
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unsupported model file extension %q (want .yaml, .yml, .json or .cue)", filepath.Ext(path))
	}
}

// Load reads, parses and validates a model file.
func (l *Loader) Load(ctx context.Context, path string) (*ModelSpec, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file %s: %w", path, err)
	}

	spec, err := l.Parse(ctx, data, format, path)

	status := "success"
	if err != nil {
		status = "failed"
	}
	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		tel.Metrics.RecordModelLoaded(format, status)
	}

	logger := telemetry.FromContext(ctx).NewComponentLogger("config").WithField("path", path)
	if err != nil {
		logger.WithError(err).Debug("model file rejected")
		return nil, err
	}
	logger.WithModel(spec.Name).
		WithField("variables", len(spec.Variables)).
		WithField("queries", len(spec.Queries)).
		Debug("model file loaded")

	return spec, nil
}

// Parse parses model data in the given format. Source names the data in
// error messages.
func (l *Loader) Parse(ctx context.Context, data []byte, format, source string) (*ModelSpec, error) {
	var (
		spec *ModelSpec
		err  error
	)

	switch format {
	case FormatYAML:
		spec, err = l.parseYAML(data, source)
	case FormatCUE:
		spec, err = l.parseCUE(data, source)
	default:
		return nil, fmt.Errorf("unsupported model format %q", format)
	}
	if err != nil {
		return nil, err
	}

	if err := l.Validate(ctx, spec); err != nil {
		return nil, err
	}
	return spec, nil
}

// parseYAML decodes YAML (or JSON) strictly: unknown fields are errors.
func (l *Loader) parseYAML(data []byte, source string) (*ModelSpec, error) {
	var spec ModelSpec

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, &LoadError{Errors: yamlErrors(source, err)}
	}

	return &spec, nil
}

func yamlErrors(source string, err error) []ValidationError {
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		out := make([]ValidationError, len(typeErr.Errors))
		for i, msg := range typeErr.Errors {
			out[i] = ValidationError{File: source, Message: msg}
		}
		return out
	}
	return []ValidationError{{File: source, Message: err.Error()}}
}

// parseCUE compiles CUE source, unifies it with the model schema and decodes
// the result.
func (l *Loader) parseCUE(data []byte, source string) (*ModelSpec, error) {
	val := l.ctx.CompileBytes(data, cue.Filename(source))
	if err := val.Err(); err != nil {
		return nil, &LoadError{Errors: convertCUEErrors(err)}
	}

	unified, err := l.schemas.Unify("model", val)
	if err != nil {
		return nil, &LoadError{Errors: convertCUEErrors(err)}
	}

	var spec ModelSpec
	if err := unified.Decode(&spec); err != nil {
		return nil, &LoadError{Errors: []ValidationError{{
			File:    source,
			Message: fmt.Sprintf("failed to decode model: %v", err),
		}}}
	}

	return &spec, nil
}

// convertCUEErrors converts CUE errors to ValidationError slice.
func convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	for _, e := range cueerrors.Errors(err) {
		pos := cueerrors.Positions(e)
		var file string
		var line, column int

		if len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ValidationError{
			File:    file,
			Line:    line,
			Column:  column,
			Path:    strings.Join(e.Path(), "."),
			Message: strings.TrimSpace(cueerrors.Details(e, nil)),
		})
	}

	return validationErrors
}

// Validate checks struct tags and the cross references of a model.
func (l *Loader) Validate(ctx context.Context, spec *ModelSpec) error {
	var errs []ValidationError

	if err := l.validator.Struct(spec); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validation failed: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, ValidationError{
				Path:    strings.TrimPrefix(fe.Namespace(), "ModelSpec."),
				Message: describeFieldError(fe),
			})
		}
	}

	errs = append(errs, checkReferences(spec)...)

	if len(errs) > 0 {
		sort.SliceStable(errs, func(i, j int) bool { return errs[i].Path < errs[j].Path })
		return &LoadError{Errors: errs}
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "min":
		return fmt.Sprintf("needs at least %s entries", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// definitionForms lists the definition forms set on a variable.
func definitionForms(v VariableSpec) []string {
	var forms []string
	if v.Atomic != nil {
		forms = append(forms, "atomic")
	}
	if v.Entries != nil {
		forms = append(forms, "entries")
	}
	if v.Uniform != nil {
		forms = append(forms, "uniform")
	}
	if v.Certain != nil {
		forms = append(forms, "certain")
	}
	if v.Bernoulli != nil {
		forms = append(forms, "bernoulli")
	}
	if v.Expr != "" && v.Times == 0 {
		forms = append(forms, "expr")
	}
	if v.Switch != "" {
		forms = append(forms, "switch")
	}
	if v.Given != "" {
		forms = append(forms, "given")
	}
	if v.Joint != nil {
		forms = append(forms, "joint")
	}
	if v.Times > 0 {
		forms = append(forms, "times")
	}
	return forms
}

// Form returns the definition form of v, or "" when v has none or several.
func (v VariableSpec) Form() string {
	if forms := definitionForms(v); len(forms) == 1 {
		return forms[0]
	}
	return ""
}

// checkReferences verifies that each variable has exactly one definition
// form and that every referenced variable exists.
func checkReferences(spec *ModelSpec) []ValidationError {
	var errs []ValidationError
	add := func(path, format string, args ...any) {
		errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
	}
	ref := func(path, name string) {
		if _, ok := spec.Variables[name]; !ok {
			add(path, "unknown variable %q", name)
		}
	}

	for name, v := range spec.Variables {
		path := "variables." + name

		forms := definitionForms(v)
		switch len(forms) {
		case 0:
			add(path, "no definition (want one of atomic, entries, uniform, certain, bernoulli, expr, switch, given, joint, times)")
			continue
		case 1:
		default:
			add(path, "conflicting definitions: %s", strings.Join(forms, ", "))
			continue
		}

		switch forms[0] {
		case "atomic":
			if len(v.Atomic) == 0 {
				add(path+".atomic", "needs at least one value")
			}
		case "entries":
			if len(v.Entries) == 0 {
				add(path+".entries", "needs at least one value")
			}
		case "uniform":
			if len(v.Uniform) == 0 {
				add(path+".uniform", "needs at least one value")
			}
		case "expr":
			if len(v.Args) == 0 {
				add(path+".args", "expr needs at least one argument")
			}
			if len(v.Params) > 0 && len(v.Params) != len(v.Args) {
				add(path+".params", "has %d names for %d arguments", len(v.Params), len(v.Args))
			}
		case "switch":
			ref(path+".switch", v.Switch)
			if len(v.Cases) == 0 && v.Default == "" {
				add(path+".cases", "switch needs cases or a default")
			}
			for k, target := range v.Cases {
				ref(path+".cases."+k, target)
			}
			if v.Default != "" {
				ref(path+".default", v.Default)
			}
		case "given":
			ref(path+".given", v.Given)
		case "joint":
			if len(v.Joint) == 0 {
				add(path+".joint", "needs at least one variable")
			}
			for i, j := range v.Joint {
				ref(fmt.Sprintf("%s.joint[%d]", path, i), j)
			}
		case "times":
			if v.Expr == "" {
				add(path+".expr", "times needs an expr combining two values")
			}
			if len(v.Args) != 1 {
				add(path+".args", "times needs exactly one argument, got %d", len(v.Args))
			}
		}

		for i, a := range v.Args {
			ref(fmt.Sprintf("%s.args[%d]", path, i), a)
		}
		for i, e := range v.Evidence {
			ref(fmt.Sprintf("%s.evidence[%d]", path, i), e)
		}
		if len(v.Evidence) > 0 && forms[0] != "given" {
			add(path+".evidence", "evidence is only valid with given")
		}
		if v.Type != "" && forms[0] != "atomic" {
			add(path+".type", "type is only valid with atomic")
		}
	}

	seen := make(map[string]bool, len(spec.Queries))
	for i, q := range spec.Queries {
		path := fmt.Sprintf("queries[%d]", i)
		if seen[q.Name] {
			add(path+".name", "duplicate query name %q", q.Name)
		}
		seen[q.Name] = true

		if q.Target != "" {
			ref(path+".target", q.Target)
		}
		for j, g := range q.Given {
			ref(fmt.Sprintf("%s.given[%d]", path, j), g)
		}
		if q.Value != nil && q.Kind != KindProbability {
			add(path+".value", "value is only valid with probability queries")
		}
		if (q.Kind == KindSample || q.Kind == KindEstimate) && q.Trials <= 0 {
			add(path+".trials", "%s queries need a positive number of trials", q.Kind)
		}
	}

	return errs
}
