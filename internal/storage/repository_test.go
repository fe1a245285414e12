package storage

import (
	"context"
	"errors"
	"testing"
)

// fakeRepo is a minimal Repository implementation for tests.
type fakeRepo struct {
	closed bool
	execs  []string
}

func (f *fakeRepo) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	return int64(len(rows)), nil
}
func (f *fakeRepo) Exec(ctx context.Context, sql string) error { f.execs = append(f.execs, sql); return nil }
func (f *fakeRepo) Close()                                     { f.closed = true }

// TestRegisterAndNew_Success verifies that registering a backend enables New()
// to return the corresponding repository.
func TestRegisterAndNew_Success(t *testing.T) {
	t.Parallel()

	var got Config
	Register("fake", func(ctx context.Context, cfg Config) (Repository, error) {
		got = cfg
		return &fakeRepo{}, nil
	})

	repo, err := New(context.Background(), Config{Kind: "fake", DSN: "d", Table: "t"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if repo == nil || got.DSN != "d" || got.Table != "t" {
		t.Fatalf("factory saw %+v", got)
	}

	found := false
	for _, k := range ListKinds() {
		if k == "fake" {
			found = true
		}
	}
	if !found {
		t.Fatalf("registered kind not present in ListKinds: %v", ListKinds())
	}
}

// TestNew_Unsupported verifies that unsupported kinds return a helpful error.
func TestNew_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Kind: "does-not-exist"})
	if err == nil {
		t.Fatalf("expected error for unsupported kind")
	}
	if got, want := err.Error(), "unsupported storage.kind=does-not-exist"; got != want {
		t.Fatalf("error = %q, want %q", got, want)
	}
}

func TestNew_FactoryError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	Register("failing", func(ctx context.Context, cfg Config) (Repository, error) { return nil, boom })
	if _, err := New(context.Background(), Config{Kind: "failing"}); !errors.Is(err, boom) {
		t.Fatalf("err=%v; want boom", err)
	}
}

// TestListKinds_Snapshot checks that ListKinds returns a copy.
func TestListKinds_Snapshot(t *testing.T) {
	t.Parallel()

	Register("snap", func(ctx context.Context, cfg Config) (Repository, error) { return &fakeRepo{}, nil })
	a := ListKinds()
	if len(a) == 0 {
		t.Fatalf("ListKinds empty after registration")
	}
	a[0] = "mutated"
	if b := ListKinds(); b[0] == "mutated" {
		t.Fatalf("ListKinds returned shared slice")
	}
}

func TestEnsureTable(t *testing.T) {
	t.Parallel()

	RegisterDDL("ddlkind", func(ctx context.Context, repo Repository, table string) error {
		return repo.Exec(ctx, "CREATE "+table)
	})
	repo := &fakeRepo{}
	if err := EnsureTable(context.Background(), Config{Kind: "ddlkind", Table: "rejects"}, repo); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	if len(repo.execs) != 1 || repo.execs[0] != "CREATE rejects" {
		t.Fatalf("execs=%v", repo.execs)
	}
	if err := EnsureTable(context.Background(), Config{Kind: "none-registered"}, repo); err == nil {
		t.Fatalf("expected error without bootstrapper")
	}
}

func TestReject_Values(t *testing.T) {
	t.Parallel()

	v := "abc"
	got := Reject{RunID: "r", Job: "j", Line: 7, Field: "f", Code: "c", Value: &v, Message: "m"}.Values()
	if len(got) != len(RejectColumns) || got[2] != int64(7) || got[5] != "abc" {
		t.Fatalf("Values()=%v", got)
	}
	if absent := (Reject{}).Values(); absent[5] != nil {
		t.Fatalf("absent value=%v; want nil", absent[5])
	}
}
