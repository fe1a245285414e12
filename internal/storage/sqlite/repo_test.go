package sqlite

import (
	"context"
	"strings"
	"testing"

	"rawcheck/internal/storage"
)

func newRepo(tb testing.TB, table string) *Repository {
	tb.Helper()
	r, closeFn, err := NewRepository(context.Background(), Config{DSN: ":memory:", Table: table})
	if err != nil {
		tb.Fatalf("open sqlite :memory:: %v", err)
	}
	tb.Cleanup(closeFn)
	return r
}

func countRows(t *testing.T, r *Repository, table string) int {
	t.Helper()
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM " + quoteFQN(table)).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

// TestCopyFrom_Rejects creates the reject table and inserts a batch,
// including an absent value stored as NULL.
func TestCopyFrom_Rejects(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t, "rejects")
	if err := r.Exec(ctx, CreateTableSQL("rejects")); err != nil {
		t.Fatalf("create: %v", err)
	}
	// Idempotent.
	if err := r.Exec(ctx, CreateTableSQL("rejects")); err != nil {
		t.Fatalf("create again: %v", err)
	}

	v := "-5"
	rows := [][]any{
		storage.Reject{RunID: "r1", Job: "j", Line: 2, Field: "age", Code: "negative_value_for_unsigned", Value: &v, Message: "m"}.Values(),
		storage.Reject{RunID: "r1", Job: "j", Line: 3, Field: "name", Code: "required_field_missing", Message: "m"}.Values(),
	}
	n, err := r.CopyFrom(ctx, storage.RejectColumns, rows)
	if err != nil || n != 2 {
		t.Fatalf("CopyFrom n=%d err=%v", n, err)
	}
	if got := countRows(t, r, "rejects"); got != 2 {
		t.Fatalf("rows=%d", got)
	}

	var nulls int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM "rejects" WHERE "value" IS NULL`).Scan(&nulls); err != nil || nulls != 1 {
		t.Fatalf("null values=%d err=%v", nulls, err)
	}
}

func TestCopyFrom_Errors(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t, "rejects")
	if _, err := r.CopyFrom(ctx, nil, [][]any{{1}}); err == nil {
		t.Fatalf("expected error for empty columns")
	}
	if n, err := r.CopyFrom(ctx, []string{"a"}, nil); err != nil || n != 0 {
		t.Fatalf("empty batch n=%d err=%v", n, err)
	}
	if err := r.Exec(ctx, CreateTableSQL("rejects")); err != nil {
		t.Fatal(err)
	}
	_, err := r.CopyFrom(ctx, storage.RejectColumns, [][]any{{"short"}})
	if err == nil || !strings.Contains(err.Error(), "row length") {
		t.Fatalf("err=%v; want row length error", err)
	}
	if got := countRows(t, r, "rejects"); got != 0 {
		t.Fatalf("partial batch committed: %d rows", got)
	}
	if _, err := r.CopyFrom(ctx, storage.RejectColumns, [][]any{storage.Reject{}.Values()}); err != nil {
		t.Fatalf("valid row after rollback: %v", err)
	}
}

func TestNewRepository_EmptyDSN(t *testing.T) {
	if _, _, err := NewRepository(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}

func TestQuoteFQN(t *testing.T) {
	tests := map[string]string{
		"rejects":      `"rejects"`,
		"main.rejects": `"main"."rejects"`,
		`we"ird`:       `"we""ird"`,
	}
	for in, want := range tests {
		if got := quoteFQN(in); got != want {
			t.Errorf("quoteFQN(%q)=%s; want %s", in, got, want)
		}
	}
}
