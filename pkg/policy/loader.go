package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Loader reads policies from .rego files.
type Loader struct {
	logger zerolog.Logger
}

// NewLoader creates a new policy loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger: logger.With().Str("component", "policy-loader").Logger(),
	}
}

// LoadFromPaths loads policies from a list of file or directory paths.
func (l *Loader) LoadFromPaths(ctx context.Context, paths []string) ([]Policy, error) {
	var allPolicies []Policy

	for _, path := range paths {
		policies, err := l.loadFromPath(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to load from path %s: %w", path, err)
		}
		allPolicies = append(allPolicies, policies...)
	}

	l.logger.Debug().
		Int("total", len(allPolicies)).
		Int("sources", len(paths)).
		Msg("Policies loaded from paths")

	return allPolicies, nil
}

// loadFromPath loads policies from a single path (file or directory).
func (l *Loader) loadFromPath(ctx context.Context, path string) ([]Policy, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	if info.IsDir() {
		return l.loadFromDirectory(ctx, path)
	}

	policy, err := l.loadFromFile(path)
	if err != nil {
		return nil, err
	}

	return []Policy{*policy}, nil
}

// loadFromDirectory loads all .rego files below a directory.
func (l *Loader) loadFromDirectory(ctx context.Context, dirPath string) ([]Policy, error) {
	var policies []Policy

	err := filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.HasSuffix(path, ".rego") {
			return nil
		}

		policy, err := l.loadFromFile(path)
		if err != nil {
			return err
		}
		policies = append(policies, *policy)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return policies, nil
}

// loadFromFile reads one .rego file. The policy is named after the file.
// Leading comments become the description, and a "# severity: <level>"
// comment line sets the default severity.
func (l *Loader) loadFromFile(filePath string) (*Policy, error) {
	if !strings.HasSuffix(filePath, ".rego") {
		return nil, fmt.Errorf("unsupported file type: %s", filePath)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	description, severity := parseHeader(string(data))
	policy := &Policy{
		Name:        strings.TrimSuffix(filepath.Base(filePath), ".rego"),
		Description: description,
		Rego:        string(data),
		Severity:    severity,
		Enabled:     true,
		Source:      filePath,
	}

	l.logger.Debug().
		Str("path", filePath).
		Str("policy", policy.Name).
		Msg("Policy loaded from file")

	return policy, nil
}

// parseHeader reads the comment block at the top of a Rego file.
func parseHeader(content string) (string, Severity) {
	var description strings.Builder
	severity := SeverityWarning

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if description.Len() > 0 {
				break
			}
			continue
		}
		if !strings.HasPrefix(trimmed, "#") {
			break
		}

		comment := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
		if level, ok := strings.CutPrefix(comment, "severity:"); ok {
			switch s := Severity(strings.TrimSpace(level)); s {
			case SeverityInfo, SeverityWarning, SeverityError:
				severity = s
			}
			continue
		}
		if comment == "" {
			continue
		}
		if description.Len() > 0 {
			description.WriteString(" ")
		}
		description.WriteString(comment)
	}

	return description.String(), severity
}
