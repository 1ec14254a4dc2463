// Package snapshot persists periodic zstd-compressed dumps of the active
// event registry. Snapshots are a recovery fallback, not the source of
// truth: the SQLite mirror stays authoritative, but a lost-write scenario
// (zero active rows when events were known to be live) can be repaired from
// the latest snapshot.
package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/events"
)

// Header identifies a snapshot file.
type Header struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	Count   int       `json:"count"`
}

// SnapshotV1 is the on-disk layout.
type SnapshotV1 struct {
	Header Header          `json:"header"`
	Events []events.Record `json:"events"`
}

// Write atomically saves the given records to path (tmp file + rename).
func Write(path string, recs []events.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	snap := SnapshotV1{
		Header: Header{Version: 1, SavedAt: time.Now(), Count: len(recs)},
		Events: recs,
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}

	bw := bufio.NewWriter(f)
	zw, err := zstd.NewWriter(bw)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}

	if err := json.NewEncoder(zw).Encode(&snap); err != nil {
		zw.Close()
		f.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush zstd stream: %w", err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	return nil
}

// Read loads the snapshot at path. A missing file returns (nil, nil).
func Read(path string) (*SnapshotV1, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	var snap SnapshotV1
	if err := json.NewDecoder(zr).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Header.Version != 1 {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return &snap, nil
}
