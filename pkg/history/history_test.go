package history

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rubiojr/fmsearch/pkg/log"
	"github.com/rubiojr/fmsearch/pkg/storage"
)

type brokenStore struct{}

var errBroken = errors.New("quota exceeded")

func (brokenStore) Get(context.Context, string) (string, error) { return "", errBroken }
func (brokenStore) Set(context.Context, string, string) error   { return errBroken }
func (brokenStore) Delete(context.Context, string) error        { return errBroken }
func (brokenStore) Close() error                                { return nil }

func TestAddDedupesAndBounds(t *testing.T) {
	ctx := context.Background()
	h := New(storage.NewMemoryStore(), 3, 4)

	for _, q := range []string{"Bague", "bague", "Collier", "Bracelet", "Perle"} {
		h.Add(ctx, q)
	}

	want := []string{"Perle", "Bracelet", "Collier"}
	if got := h.List(ctx); !reflect.DeepEqual(got, want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
}

func TestAddCaseInsensitiveMovesToFront(t *testing.T) {
	ctx := context.Background()
	h := New(storage.NewMemoryStore(), 3, 4)

	h.Add(ctx, "Bague")
	h.Add(ctx, "Collier")
	h.Add(ctx, "BAGUE")

	want := []string{"BAGUE", "Collier"}
	if got := h.List(ctx); !reflect.DeepEqual(got, want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
}

func TestAddIgnoresShortQueries(t *testing.T) {
	ctx := context.Background()
	h := New(storage.NewMemoryStore(), 3, 4)

	h.Add(ctx, "abc")
	h.Add(ctx, "")
	if got := h.List(ctx); len(got) != 0 {
		t.Fatalf("short queries must not be stored, got %v", got)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	h := New(storage.NewMemoryStore(), 3, 4)
	h.Add(ctx, "Perle")
	h.Clear(ctx)
	if got := h.List(ctx); len(got) != 0 {
		t.Fatalf("expected empty history after Clear, got %v", got)
	}
}

func TestCorruptValueReadsAsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	if err := kv.Set(ctx, StorageKey, "{not json"); err != nil {
		t.Fatal(err)
	}
	h := New(kv, 3, 4)
	if got := h.List(ctx); len(got) != 0 {
		t.Fatalf("expected empty history, got %v", got)
	}
	h.Add(ctx, "Perle")
	if got := h.List(ctx); !reflect.DeepEqual(got, []string{"Perle"}) {
		t.Fatalf("expected history to recover, got %v", got)
	}
}

func TestStorageFailuresAreSwallowed(t *testing.T) {
	log.SetOutput(io.Discard)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	ctx := context.Background()
	h := New(brokenStore{}, 3, 4)

	h.Add(ctx, "Perle")
	h.Clear(ctx)
	if got := h.List(ctx); got == nil || len(got) != 0 {
		t.Fatalf("expected non-nil empty list, got %#v", got)
	}
}

func TestPersistsAcrossSQLiteReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fmsearch.db")

	kv, err := storage.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	New(kv, 3, 4).Add(ctx, "Améthyste")
	if err := kv.Close(); err != nil {
		t.Fatal(err)
	}

	kv, err = storage.OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer kv.Close()

	if got := New(kv, 3, 4).List(ctx); !reflect.DeepEqual(got, []string{"Améthyste"}) {
		t.Fatalf("List() = %v", got)
	}
}
