package tx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is a minimal Snapshotter: a map restored wholesale on rollback,
// the same shape the in-memory ledger stores use.
type fakeStore struct {
	rows map[string]string
}

func (f *fakeStore) Snapshot() any {
	cp := make(map[string]string, len(f.rows))
	for k, v := range f.rows {
		cp[k] = v
	}
	return cp
}

func (f *fakeStore) Restore(snapshot any) {
	if m, ok := snapshot.(map[string]string); ok {
		f.rows = m
	}
}

func TestMemoryRunner_CommitKeepsWrites(t *testing.T) {
	store := &fakeStore{rows: map[string]string{}}
	runner := NewMemoryRunner(store)

	err := runner.RunInTx(context.Background(), func(context.Context) error {
		store.rows["a"] = "1"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "1", store.rows["a"])
}

func TestMemoryRunner_RollsBackAllStoresOnError(t *testing.T) {
	first := &fakeStore{rows: map[string]string{"keep": "old"}}
	second := &fakeStore{rows: map[string]string{}}
	runner := NewMemoryRunner(first, second)

	boom := errors.New("second write failed")
	err := runner.RunInTx(context.Background(), func(context.Context) error {
		first.rows["keep"] = "new"
		first.rows["added"] = "1"
		second.rows["other"] = "1"
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, "old", first.rows["keep"], "mutated row must revert")
	assert.NotContains(t, first.rows, "added", "inserted row must disappear")
	assert.Empty(t, second.rows, "every registered store rolls back")
}

func TestMemoryRunner_IgnoresNonSnapshotters(t *testing.T) {
	// SQL store implementations land here; they roll back via SQLRunner.
	runner := NewMemoryRunner("not a store", nil)

	err := runner.RunInTx(context.Background(), func(context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestMemoryRunner_CancelledContext(t *testing.T) {
	runner := NewMemoryRunner()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runner.RunInTx(ctx, func(context.Context) error {
		t.Fatal("callback must not run after cancellation")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
