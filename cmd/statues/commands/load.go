package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/openfroyo/statues/pkg/config"
	"github.com/openfroyo/statues/pkg/stores"
)

// loadModel reads, validates and builds a model file.
func loadModel(ctx context.Context, path string) (*config.Built, error) {
	spec, err := config.NewLoader().Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return config.Build(ctx, spec)
}

// openStore opens the result history and applies pending migrations.
func openStore(ctx context.Context) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: dbPath})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printLoadErrors lists model file problems one per line. It reports
// whether err was a load error.
func printLoadErrors(w io.Writer, err error) bool {
	var le *config.LoadError
	if !errors.As(err, &le) {
		return false
	}
	for _, ve := range le.Errors {
		fmt.Fprintf(w, "  %s\n", ve)
	}
	return true
}
