// Package trash implements a restorable trash bin. Trashed paths are moved
// under the bin's directory and indexed in a sqlite database so they can be
// listed and restored to where they came from.
package trash

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for unknown item ids.
var ErrNotFound = errors.New("trash item not found")

const schema = `
CREATE TABLE IF NOT EXISTS items (
	id            TEXT PRIMARY KEY,
	original_path TEXT NOT NULL,
	trashed_at    INTEGER NOT NULL,
	size          INTEGER NOT NULL,
	is_dir        INTEGER NOT NULL
)`

// Item is one trashed path.
type Item struct {
	ID           string    `json:"id"`
	OriginalPath string    `json:"original_path"`
	TrashedAt    time.Time `json:"trashed_at"`
	Size         int64     `json:"size"`
	IsDir        bool      `json:"is_dir"`
}

// Bin is a trash bin rooted at a directory of an afero filesystem.
type Bin struct {
	fs    afero.Fs
	files string
	db    *sql.DB
	// mu serializes moves with their index updates
	mu sync.Mutex
}

// Open opens the bin stored under dir, creating it when needed. The index
// lives in the sqlite database at dbPath on the host filesystem.
func Open(fs afero.Fs, dir, dbPath string) (*Bin, error) {
	files := filepath.Join(dir, "files")
	if err := fs.MkdirAll(files, 0o700); err != nil {
		return nil, fmt.Errorf("error: cannot create trash directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("error: cannot create trash index directory: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+dbPath)
	if err != nil {
		return nil, fmt.Errorf("error: cannot open trash index: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error: cannot initialize trash index: %w", err)
	}
	return &Bin{fs: fs, files: files, db: db}, nil
}

// Close closes the index.
func (b *Bin) Close() error {
	return b.db.Close()
}

// Trash moves path into the bin.
func (b *Bin) Trash(path string) error {
	_, err := b.Put(context.Background(), path)
	return err
}

// Put moves path into the bin and records it.
func (b *Bin) Put(ctx context.Context, path string) (Item, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Item{}, err
	}
	fi, err := b.fs.Stat(abs)
	if err != nil {
		return Item{}, err
	}
	item := Item{
		ID:           uuid.NewString(),
		OriginalPath: abs,
		TrashedAt:    time.Now().UTC(),
		IsDir:        fi.IsDir(),
		Size:         b.size(abs, fi),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	stored := b.stored(item.ID)
	if err := b.fs.Rename(abs, stored); err != nil {
		return Item{}, err
	}
	_, err = b.db.ExecContext(ctx,
		`INSERT INTO items (id, original_path, trashed_at, size, is_dir) VALUES (?, ?, ?, ?, ?)`,
		item.ID, item.OriginalPath, item.TrashedAt.UnixNano(), item.Size, item.IsDir)
	if err != nil {
		if rerr := b.fs.Rename(stored, abs); rerr != nil {
			return Item{}, fmt.Errorf("error: failed to index %s (left at %s): %w", abs, stored, err)
		}
		return Item{}, fmt.Errorf("error: failed to index %s: %w", abs, err)
	}
	return item, nil
}

// size returns the total size of the files below path.
func (b *Bin) size(path string, fi os.FileInfo) int64 {
	if !fi.IsDir() {
		return fi.Size()
	}
	var total int64
	afero.Walk(b.fs, path, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}

func (b *Bin) stored(id string) string {
	return filepath.Join(b.files, id)
}

// List returns every item, most recently trashed first.
func (b *Bin) List(ctx context.Context) ([]Item, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, original_path, trashed_at, size, is_dir
		FROM items
		ORDER BY trashed_at DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("error: failed to query trash: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error: failed to iterate trash rows: %w", err)
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (Item, error) {
	var (
		item  Item
		at    int64
		isDir int
	)
	if err := s.Scan(&item.ID, &item.OriginalPath, &at, &item.Size, &isDir); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, fmt.Errorf("error: failed to scan trash row: %w", err)
	}
	item.TrashedAt = time.Unix(0, at).UTC()
	item.IsDir = isDir != 0
	return item, nil
}

// Get returns one item.
func (b *Bin) Get(ctx context.Context, id string) (Item, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT id, original_path, trashed_at, size, is_dir FROM items WHERE id = ?`, id)
	return scanItem(row)
}

// Restore moves an item back to its original path. It fails with an error
// matching os.ErrExist when that path is taken.
func (b *Bin) Restore(ctx context.Context, id string) (Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	item, err := b.Get(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if ok, _ := afero.Exists(b.fs, item.OriginalPath); ok {
		return Item{}, &os.PathError{Op: "restore", Path: item.OriginalPath, Err: os.ErrExist}
	}
	if err := b.fs.MkdirAll(filepath.Dir(item.OriginalPath), 0o755); err != nil {
		return Item{}, err
	}
	if err := b.fs.Rename(b.stored(id), item.OriginalPath); err != nil {
		return Item{}, err
	}
	if _, err := b.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return Item{}, fmt.Errorf("error: failed to unindex %s: %w", id, err)
	}
	return item, nil
}

// Purge deletes an item for good.
func (b *Bin) Purge(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.Get(ctx, id); err != nil {
		return err
	}
	if err := b.fs.RemoveAll(b.stored(id)); err != nil {
		return err
	}
	_, err := b.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	return err
}
