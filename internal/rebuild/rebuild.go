// Package rebuild implements the index rebuild engine: replay every
// stored document in a collection through the flattener and
// index-table manager, reconciling each field's
// table with the collection's current indexing configuration.
package rebuild

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/docvault-db/docvault/internal/content"
	"github.com/docvault-db/docvault/internal/flatten"
	"github.com/docvault-db/docvault/internal/indexmgr"
	"github.com/docvault-db/docvault/internal/storage"
)

// The three IndexingMode values, mirrored here (rather than importing
// the root package, which would create an import cycle since the root
// package calls into this one).
const (
	ModeAll = iota
	ModeSelective
	ModeNone
)

// Deps are the storage-facing collaborators Run needs.
type Deps struct {
	Store   *storage.Store
	Index   *indexmgr.Manager
	Content *content.Store
}

// Params configures one rebuild run.
type Params struct {
	CollectionID    string
	IndexingMode    int
	SelectiveFields []string
	DropUnused      bool
	// Concurrency is the number of documents streamed through the
	// worker pool at once. Zero means the pool picks a default.
	Concurrency int
}

// Stats is the rebuild report. It is serialized onto the wire as-is by
// the HTTP layer, so the field tags are part of the API contract.
type Stats struct {
	DocumentsProcessed int      `json:"documentsProcessed"`
	IndexesCreated     int      `json:"indexesCreated"`
	IndexesDropped     int      `json:"indexesDropped"`
	ValuesInserted     int      `json:"valuesInserted"`
	DurationMs         int64    `json:"durationMs"`
	Errors             []string `json:"errors,omitempty"`
	Success            bool     `json:"success"`
}

type docRow struct {
	ID   string
	Name string
}

// Run streams every document in params.CollectionID, recomputes each
// one's eligible index entries under params.IndexingMode, replaces its
// prior entries, and optionally drops tables for paths the collection
// no longer wants.
func Run(ctx context.Context, deps Deps, params Params) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}

	docs, err := loadDocuments(ctx, deps.Store, params.CollectionID)
	if err != nil {
		return stats, fmt.Errorf("rebuild: list documents: %w", err)
	}

	initialPaths, err := deps.Index.AllMappedPaths(ctx)
	if err != nil {
		return stats, fmt.Errorf("rebuild: list mapped paths: %w", err)
	}
	initialPathSet := make(map[string]bool, len(initialPaths))
	for _, p := range initialPaths {
		initialPathSet[p] = true
	}

	selective := make(map[string]bool, len(params.SelectiveFields))
	for _, f := range params.SelectiveFields {
		selective[f] = true
	}

	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	var mu sync.Mutex
	activePaths := make(map[string]bool)
	observedPaths := make(map[string]bool)
	aborted := false

	process := func(d docRow) {
		body, err := deps.Content.Get(params.CollectionID, d.ID)
		if err != nil {
			mu.Lock()
			stats.Errors = append(stats.Errors, fmt.Sprintf("document %s: read body: %v", d.ID, err))
			mu.Unlock()
			return
		}
		var parsed interface{}
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&parsed); err != nil {
			mu.Lock()
			stats.Errors = append(stats.Errors, fmt.Sprintf("document %s: parse body: %v", d.ID, err))
			mu.Unlock()
			return
		}
		entries, _ := flatten.Flatten(parsed)

		mu.Lock()
		for _, e := range entries {
			observedPaths[e.Path] = true
		}
		mu.Unlock()

		var eligible flatten.Entries
		switch params.IndexingMode {
		case ModeAll:
			eligible = entries
		case ModeSelective:
			for _, e := range entries {
				if selective[e.Path] {
					eligible = append(eligible, e)
				}
			}
		case ModeNone:
			eligible = nil
		}

		valuesByTable := make(map[string][]indexmgr.Entry)
		for _, e := range eligible {
			tableName, err := deps.Index.EnsureTable(ctx, e.Path)
			if err != nil {
				mu.Lock()
				stats.Errors = append(stats.Errors, fmt.Sprintf("document %s: ensure table for %s: %v", d.ID, e.Path, err))
				mu.Unlock()
				return
			}
			entry := indexmgr.Entry{DocumentID: d.ID, Position: e.Position, Value: e.Value}
			if e.DataType == flatten.TypeInteger || e.DataType == flatten.TypeNumber {
				if n, err := strconv.ParseFloat(e.Value, 64); err == nil {
					entry.Numeric = &n
				}
			}
			valuesByTable[tableName] = append(valuesByTable[tableName], entry)

			mu.Lock()
			activePaths[e.Path] = true
			mu.Unlock()
		}

		mappedPaths, err := deps.Index.AllMappedPaths(ctx)
		if err != nil {
			mu.Lock()
			stats.Errors = append(stats.Errors, fmt.Sprintf("document %s: list mapped paths: %v", d.ID, err))
			mu.Unlock()
			return
		}

		txErr := deps.Store.WithTx(ctx, func(tx *sql.Tx) error {
			for _, path := range mappedPaths {
				tableName, ok, err := deps.Index.TableForPath(ctx, path)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				if err := indexmgr.DeleteForDocumentTx(ctx, tx, deps.Store.Dialect(), tableName, d.ID); err != nil {
					return err
				}
			}
			return indexmgr.InsertValuesTx(ctx, tx, deps.Store.Dialect(), valuesByTable)
		})
		if txErr != nil {
			mu.Lock()
			aborted = true
			stats.Errors = append(stats.Errors, fmt.Sprintf("document %s: storage failure: %v", d.ID, txErr))
			mu.Unlock()
			return
		}

		var inserted int
		for _, rows := range valuesByTable {
			inserted += len(rows)
		}
		mu.Lock()
		stats.DocumentsProcessed++
		stats.ValuesInserted += inserted
		mu.Unlock()
	}

	var wg sync.WaitGroup
	pool, poolErr := ants.NewPoolWithFunc(concurrency, func(arg interface{}) {
		defer wg.Done()
		if ctx.Err() != nil || aborted {
			return
		}
		process(arg.(docRow))
	})
	if poolErr != nil {
		for _, d := range docs {
			if ctx.Err() != nil || aborted {
				break
			}
			process(d)
		}
	} else {
		defer pool.Release()
		for _, d := range docs {
			if ctx.Err() != nil || aborted {
				break
			}
			wg.Add(1)
			if err := pool.Invoke(d); err != nil {
				wg.Done()
				process(d)
			}
		}
		wg.Wait()
	}

	for p := range activePaths {
		if !initialPathSet[p] {
			stats.IndexesCreated++
		}
	}

	if params.DropUnused && !aborted {
		stale := staleFieldPaths(observedPaths, activePaths)
		dropped, err := deps.Index.DropUnused(ctx, stale)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("drop unused: %v", err))
		}
		stats.IndexesDropped = dropped
	}

	stats.DurationMs = time.Since(start).Milliseconds()
	stats.Success = !aborted && ctx.Err() == nil
	return stats, nil
}

// staleFieldPaths computes which of the paths observed while streaming
// this collection's documents did not survive as active under the new
// indexing configuration. Scoping candidates to observed paths keeps
// the drop within this collection's own field set; since
// IndexTableMapping is process-wide, a path another collection also
// indexes can still be dropped here, and that collection must rebuild
// to restore it.
func staleFieldPaths(observedPaths, activePaths map[string]bool) []string {
	var stale []string
	for p := range observedPaths {
		if !activePaths[p] {
			stale = append(stale, p)
		}
	}
	return stale
}

func loadDocuments(ctx context.Context, store *storage.Store, collectionID string) ([]docRow, error) {
	ph := store.Dialect().Placeholder(1)
	rows, err := store.Query(ctx, "SELECT id, name FROM documents WHERE collection_id = "+ph, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []docRow
	for rows.Next() {
		var d docRow
		var name sql.NullString
		if err := rows.Scan(&d.ID, &name); err != nil {
			return nil, err
		}
		d.Name = name.String
		out = append(out, d)
	}
	return out, rows.Err()
}
