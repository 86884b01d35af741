package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/openfroyo/statues/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a new SQLite store.
func ExampleNewSQLiteStore() {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path:            ":memory:", // Use in-memory database for example
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}

	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	defer store.Close()

	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleSQLiteStore_SaveResult demonstrates recording a query run.
func ExampleSQLiteStore_SaveResult() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	result := &stores.Result{
		RunID:          "run-001",
		Model:          "dice",
		Query:          "seven",
		Kind:           "probability",
		Target:         "sum",
		Representation: "rational",
		Status:         stores.ResultStatusSuccess,
		Paths:          36,
		Outcome:        `{"probability":"1/6"}`,
	}
	if err := store.SaveResult(ctx, result); err != nil {
		log.Fatal(err)
	}

	history, err := store.ListResults(ctx, stores.ResultFilter{Model: "dice", Limit: 10})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%s %s %d paths\n", history[0].Query, history[0].Status, history[0].Paths)
	// Output: seven success 36 paths
}
