package snapshot

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/events"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world", "registry.snap")
	now := time.Now().UTC().Truncate(time.Second)

	recs := []events.Record{
		{
			ID:           "minion_1.000",
			Type:         "minion",
			ChannelRef:   "patio",
			StartTime:    now,
			EndTime:      now.Add(5 * time.Minute),
			Participants: []string{},
			Data:         json.RawMessage(`{"name":"Capanga"}`),
		},
		{
			ID:           "villain_2.000",
			Type:         "villain",
			ChannelRef:   "patio",
			StartTime:    now,
			EndTime:      now.Add(2 * time.Hour),
			Participants: []string{"u1", "u2"},
			Data:         json.RawMessage(`{"name":"Sombra","tier":2}`),
		},
	}

	if err := Write(path, recs); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	snap, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if snap == nil {
		t.Fatal("Expected a snapshot, got nil")
	}
	if snap.Header.Version != 1 || snap.Header.Count != 2 {
		t.Errorf("Expected header version 1 count 2, got %+v", snap.Header)
	}
	if len(snap.Events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(snap.Events))
	}
	if snap.Events[1].ID != "villain_2.000" || len(snap.Events[1].Participants) != 2 {
		t.Errorf("Expected villain row round-tripped, got %+v", snap.Events[1])
	}
	if !snap.Events[0].StartTime.Equal(now) {
		t.Errorf("Expected start time %v, got %v", now, snap.Events[0].StartTime)
	}
}

func TestReadMissingFile(t *testing.T) {
	snap, err := Read(filepath.Join(t.TempDir(), "absent.snap"))
	if err != nil {
		t.Fatalf("Expected missing file tolerated, got %v", err)
	}
	if snap != nil {
		t.Errorf("Expected nil snapshot for missing file, got %+v", snap)
	}
}

func TestWriteReplacesPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.snap")

	if err := Write(path, []events.Record{{ID: "a", Type: "minion"}}); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if err := Write(path, nil); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	snap, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if snap.Header.Count != 0 || len(snap.Events) != 0 {
		t.Errorf("Expected empty snapshot after rewrite, got %+v", snap.Header)
	}
}
