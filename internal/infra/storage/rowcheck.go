package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/events"
)

// eventRecordSchema rejects malformed rows before they can poison the
// in-memory registry during recovery.
const eventRecordSchema = `{
	"type": "object",
	"required": ["id", "event_type", "start_time", "end_time", "participants", "data"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"event_type": {
			"type": "string",
			"enum": ["minion", "villain", "collectible", "tournament", "turf_wars", "daily_subject", "dia_de_materia", "narrative"]
		},
		"channel_ref": {"type": "string"},
		"message_ref": {"type": "string"},
		"start_time": {"type": "string"},
		"end_time": {"type": "string"},
		"completed": {"type": "boolean"},
		"participants": {
			"type": "array",
			"items": {"type": "string"}
		},
		"data": {"type": "object"}
	}
}`

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("event_record.json", strings.NewReader(eventRecordSchema)); err != nil {
			compileErr = err
			return
		}
		compiled, compileErr = c.Compile("event_record.json")
	})
	return compiled, compileErr
}

// ValidateEventRecord checks one durable event row against the embedded
// schema. Recovery skips (and logs) rows that fail.
func ValidateEventRecord(rec events.Record) error {
	s, err := schema()
	if err != nil {
		return fmt.Errorf("event record schema: %w", err)
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", rec.ID, err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode record %s: %w", rec.ID, err)
	}

	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("event record %s failed validation: %w", rec.ID, err)
	}
	return nil
}
