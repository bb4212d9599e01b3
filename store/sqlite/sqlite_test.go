package sqlite_test

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herbcabinet/inventory-engine/docstore"
	"github.com/herbcabinet/inventory-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sourceDoc(name string) docstore.Document {
	return docstore.Document{"name": name, "remark": ""}
}

// =============================================================================
// CREATE / ID ASSIGNMENT
// =============================================================================

func TestCreate_AssignsSequentialIDsPerCollection(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: Creating documents in two collections
	// THEN: Each collection counts ids independently, starting at 1

	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, docstore.CollectionSources, sourceDoc("alpha"))
	require.NoError(t, err)
	second, err := store.Create(ctx, docstore.CollectionSources, sourceDoc("beta"))
	require.NoError(t, err)
	other, err := store.Create(ctx, docstore.CollectionDrugs, docstore.Document{"name": "ginseng"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), docstore.ID(first))
	assert.Equal(t, int64(2), docstore.ID(second))
	assert.Equal(t, int64(1), docstore.ID(other), "collections count independently")
}

func TestCreate_StampsCreateTime(t *testing.T) {
	// GIVEN: A store with a fixed clock
	// WHEN: Creating a document
	// THEN: createTime carries the clock's instant in RFC 3339 form

	store := newTestStore(t)
	at := time.Date(2025, time.June, 1, 9, 30, 0, 0, time.UTC)
	store.Clock = func() time.Time { return at }

	doc, err := store.Create(context.Background(), docstore.CollectionSources, sourceDoc("alpha"))
	require.NoError(t, err)

	assert.Equal(t, at, docstore.Time(doc, "createTime"))
}

func TestCreate_UnknownCollection_Rejected(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create(context.Background(), "ghosts", docstore.Document{})
	assert.ErrorIs(t, err, docstore.ErrUnknownCollection)
}

// =============================================================================
// UNIQUE INDEXES
// =============================================================================

func TestCreate_DuplicateUniqueValue_Rejected(t *testing.T) {
	// GIVEN: A source named "alpha"
	// WHEN: Creating a second source with the same name
	// THEN: The unique index rejects it and nothing extra is stored

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, docstore.CollectionSources, sourceDoc("alpha"))
	require.NoError(t, err)

	_, err = store.Create(ctx, docstore.CollectionSources, sourceDoc("alpha"))
	assert.True(t, docstore.IsDuplicate(err), "expected duplicate error, got %v", err)

	docs, err := store.GetAll(ctx, docstore.CollectionSources)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestCreate_AbsentUniqueValue_NotIndexed(t *testing.T) {
	// GIVEN: A collection with a unique index on prescriptionId
	// WHEN: Creating two documents without that field
	// THEN: Both are accepted; null values do not collide

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, docstore.CollectionDiagnosisLogs, docstore.Document{"other": "a"})
	require.NoError(t, err)
	_, err = store.Create(ctx, docstore.CollectionDiagnosisLogs, docstore.Document{"other": "b"})
	assert.NoError(t, err)
}

func TestGetByIndex_NumericFormsCollide(t *testing.T) {
	// GIVEN: A stock-in indexed by drugId stored as an integer
	// WHEN: Looking it up with int, int64 and float64 forms of the id
	// THEN: All forms find the same document

	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, docstore.CollectionStockIns, docstore.Document{"drugId": 7, "drugName": "ginseng"})
	require.NoError(t, err)

	for _, value := range []any{7, int64(7), float64(7)} {
		doc, err := store.GetByIndex(ctx, docstore.CollectionStockIns, "drugId", value)
		require.NoError(t, err, "lookup with %T", value)
		assert.Equal(t, docstore.ID(created), docstore.ID(doc))
	}
}

func TestGetByIndex_UndeclaredField_Rejected(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetByIndex(context.Background(), docstore.CollectionSources, "remark", "x")
	assert.Error(t, err)
}

// =============================================================================
// UPDATE / DELETE
// =============================================================================

func TestUpdate_ReplacesDocumentAndStampsUpdateTime(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, docstore.CollectionSources, sourceDoc("alpha"))
	require.NoError(t, err)

	created["remark"] = "changed"
	updated, err := store.Update(ctx, docstore.CollectionSources, created)
	require.NoError(t, err)

	assert.Equal(t, "changed", docstore.String(updated, "remark"))
	assert.False(t, docstore.Time(updated, "updateTime").IsZero())

	loaded, err := store.GetByID(ctx, docstore.CollectionSources, docstore.ID(created))
	require.NoError(t, err)
	assert.Equal(t, "changed", docstore.String(loaded, "remark"))
}

func TestUpdate_MissingDocument_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Update(context.Background(), docstore.CollectionSources, docstore.Document{"id": int64(99), "name": "ghost"})
	assert.True(t, docstore.IsNotFound(err))
}

func TestUpdate_WithoutID_Rejected(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Update(context.Background(), docstore.CollectionSources, sourceDoc("alpha"))
	assert.ErrorIs(t, err, docstore.ErrMissingID)
}

func TestUpdate_ReindexesChangedValues(t *testing.T) {
	// GIVEN: A source named "alpha"
	// WHEN: Renaming it to "beta"
	// THEN: The old name is free again and the new name resolves

	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, docstore.CollectionSources, sourceDoc("alpha"))
	require.NoError(t, err)

	created["name"] = "beta"
	_, err = store.Update(ctx, docstore.CollectionSources, created)
	require.NoError(t, err)

	_, err = store.GetByIndex(ctx, docstore.CollectionSources, "name", "alpha")
	assert.True(t, docstore.IsNotFound(err))

	_, err = store.Create(ctx, docstore.CollectionSources, sourceDoc("alpha"))
	assert.NoError(t, err, "old value released by the reindex")
}

func TestDelete_ReportsExistence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, docstore.CollectionSources, sourceDoc("alpha"))
	require.NoError(t, err)

	existed, err := store.Delete(ctx, docstore.CollectionSources, docstore.ID(created))
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = store.Delete(ctx, docstore.CollectionSources, docstore.ID(created))
	require.NoError(t, err)
	assert.False(t, existed, "second delete finds nothing")
}

// =============================================================================
// SCAN / CLEAR
// =============================================================================

func TestScan_FiltersInInsertionOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"alpha", "beta", "gamma"} {
		_, err := store.Create(ctx, docstore.CollectionSources, sourceDoc(name))
		require.NoError(t, err)
	}

	docs, err := store.Scan(ctx, docstore.CollectionSources, func(doc docstore.Document) bool {
		return docstore.String(doc, "name") != "beta"
	})
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, "alpha", docstore.String(docs[0], "name"))
	assert.Equal(t, "gamma", docstore.String(docs[1], "name"))
}

func TestClear_KeepsIDSequence(t *testing.T) {
	// GIVEN: Two stored sources (ids 1, 2)
	// WHEN: Clearing the collection and creating another source
	// THEN: The new id continues at 3; ids are never reused

	store := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"alpha", "beta"} {
		_, err := store.Create(ctx, docstore.CollectionSources, sourceDoc(name))
		require.NoError(t, err)
	}
	require.NoError(t, store.Clear(ctx, docstore.CollectionSources))

	docs, err := store.GetAll(ctx, docstore.CollectionSources)
	require.NoError(t, err)
	assert.Empty(t, docs)

	created, err := store.Create(ctx, docstore.CollectionSources, sourceDoc("gamma"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), docstore.ID(created))
}

// =============================================================================
// BACKUP / RESTORE / RESET
// =============================================================================

func TestBackupRestore_RoundTrip(t *testing.T) {
	// GIVEN: A store with data in two collections
	// WHEN: Dumping, resetting, then restoring
	// THEN: All documents are back and id sequences continue past the
	//       restored maximum

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, docstore.CollectionSources, sourceDoc("alpha"))
	require.NoError(t, err)
	_, err = store.Create(ctx, docstore.CollectionDrugs, docstore.Document{"name": "ginseng"})
	require.NoError(t, err)

	backup, err := store.DumpAll(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, backup.ExportID)

	require.NoError(t, store.Reset(ctx))
	require.NoError(t, store.RestoreAll(ctx, backup))

	sources, err := store.GetAll(ctx, docstore.CollectionSources)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "alpha", docstore.String(sources[0], "name"))

	created, err := store.Create(ctx, docstore.CollectionSources, sourceDoc("beta"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), docstore.ID(created), "sequence continues past restored id")
}

func TestRestore_LastWriteWins(t *testing.T) {
	// GIVEN: A live document and a backup carrying the same id
	// WHEN: Restoring the backup
	// THEN: The backup's version replaces the live one

	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, docstore.CollectionSources, sourceDoc("live"))
	require.NoError(t, err)

	backup, err := store.DumpAll(ctx)
	require.NoError(t, err)
	backup.Collections[docstore.CollectionSources][0]["name"] = "restored"

	require.NoError(t, store.RestoreAll(ctx, backup))

	loaded, err := store.GetByID(ctx, docstore.CollectionSources, docstore.ID(created))
	require.NoError(t, err)
	assert.Equal(t, "restored", docstore.String(loaded, "name"))
}

func TestReset_RestartsIDSequences(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, docstore.CollectionSources, sourceDoc("alpha"))
	require.NoError(t, err)
	require.NoError(t, store.Reset(ctx))

	created, err := store.Create(ctx, docstore.CollectionSources, sourceDoc("alpha"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), docstore.ID(created))
}

// =============================================================================
// QUEUE DISCIPLINE
// =============================================================================

func TestQueue_ConcurrentCreates_AllSerialized(t *testing.T) {
	// GIVEN: Many goroutines creating documents at once
	// WHEN: All of them finish
	// THEN: Every create succeeded and every id is distinct

	store := newTestStore(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	ids := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc, err := store.Create(ctx, docstore.CollectionSources, sourceDoc(fmt.Sprintf("source-%d", i)))
			if assert.NoError(t, err) {
				ids <- docstore.ID(doc)
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		assert.False(t, seen[id], "id %d assigned twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestQueue_ClosedStore_RejectsWork(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	store.Close()

	_, err = store.Create(context.Background(), docstore.CollectionSources, sourceDoc("alpha"))
	assert.ErrorIs(t, err, docstore.ErrStoreClosed)
}

func TestQueue_CanceledContext_RejectedBeforeSubmission(t *testing.T) {
	store := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Create(ctx, docstore.CollectionSources, sourceDoc("alpha"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueue_CloseWaitsForInFlightWork(t *testing.T) {
	// GIVEN: A create parked mid-transaction on a blocking clock
	// WHEN: Close is called while the create is still running
	// THEN: The create commits normally; only later submissions are rejected

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	store.Clock = func() time.Time {
		close(entered)
		<-release
		return time.Now()
	}

	created := make(chan error, 1)
	go func() {
		_, err := store.Create(context.Background(), docstore.CollectionSources, sourceDoc("alpha"))
		created <- err
	}()

	<-entered
	closed := make(chan struct{})
	go func() {
		store.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a task was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	assert.NoError(t, <-created)
	<-closed

	_, err = store.Create(context.Background(), docstore.CollectionSources, sourceDoc("beta"))
	assert.ErrorIs(t, err, docstore.ErrStoreClosed)
}

func TestQueue_CloseStopsWorker(t *testing.T) {
	// Each store runs one worker goroutine; after Close it must be gone.

	before := runtime.NumGoroutine()
	for i := 0; i < 20; i++ {
		store, err := sqlite.New(":memory:")
		require.NoError(t, err)
		_, err = store.Create(context.Background(), docstore.CollectionSources, sourceDoc("alpha"))
		require.NoError(t, err)
		store.Close()
	}

	// Close returns after the task channel is closed; give the workers a
	// beat to fall out of their range loops.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= before+2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.LessOrEqual(t, runtime.NumGoroutine(), before+2)
}
