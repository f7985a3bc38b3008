// Package bridge defines the narrow contract the gate uses to drive an answer
// pipeline: named actions that take a payload plus conversation state and
// return the updated state, and an append-only record store that is queried
// oldest first.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

//go:generate go tool mockgen -source=bridge.go -destination=../evaluation/mock_bridge_test.go -package=evaluation

// Action types exposed by a pipeline manifest.
const (
	ActionTypeUploadSelect = "upload_select"
	ActionTypeCallFlow     = "call_flow"
)

// Flow names the gate looks up on call_flow actions.
const (
	FlowSyncLibrary    = "sync_library"
	FlowIngestSelected = "ingest_selected"
	FlowAskQuestion    = "ask_question"
)

// Record schemas the gate reads back after asking a question.
const (
	SchemaAnswer             = "Answer"
	SchemaRetrievalCandidate = "RetrievalCandidate"
)

// ErrActionNotFound is returned by FindAction when no registered action matches.
var ErrActionNotFound = errors.New("action not found")

// Payload is the input of one action invocation.
type Payload map[string]any

// Record is one persisted row as returned by a RecordStore.
type Record map[string]any

// Action describes one invocable entry of the pipeline manifest.
type Action struct {
	ID   string `json:"id" mapstructure:"id"`
	Type string `json:"type" mapstructure:"type"`
	Flow string `json:"flow,omitempty" mapstructure:"flow"`
}

// Manifest lists the actions a pipeline exposes, keyed by action id.
type Manifest struct {
	Actions map[string]Action `json:"actions"`
}

// Response is the result of one action invocation. State is owned by the
// caller after return and must be threaded into the next call.
type Response struct {
	State  State
	Result any
}

// Bridge invokes named pipeline actions.
type Bridge interface {
	// Manifest returns the actions currently registered.
	Manifest(ctx context.Context) (*Manifest, error)

	// Invoke runs actionID with payload against state. The input state is not
	// modified; the updated state is returned in the response.
	Invoke(ctx context.Context, actionID string, payload Payload, state State) (*Response, error)
}

// RecordStore reads persisted records of a schema, oldest first. The last
// element of the returned slice is the most recently appended record. A limit
// of zero or less returns every record.
type RecordStore interface {
	ListRecords(ctx context.Context, schema string, limit int) ([]Record, error)
}

// FindAction returns the id of the first action (in sorted id order) whose
// type matches typeName and, when flow is non-empty, whose flow matches.
func FindAction(m *Manifest, typeName, flow string) (string, error) {
	if m == nil {
		return "", fmt.Errorf("%w: type=%s flow=%s (empty manifest)", ErrActionNotFound, typeName, flow)
	}

	ids := make([]string, 0, len(m.Actions))
	for id := range m.Actions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		entry := m.Actions[id]
		if entry.Type != typeName {
			continue
		}
		if flow != "" && entry.Flow != flow {
			continue
		}
		return id, nil
	}
	return "", fmt.Errorf("%w: type=%s flow=%s", ErrActionNotFound, typeName, flow)
}

// LatestRecord returns the most recently appended record of schema, or false
// when the store holds none.
func LatestRecord(ctx context.Context, store RecordStore, schema string, limit int) (Record, bool, error) {
	rows, err := store.ListRecords(ctx, schema, limit)
	if err != nil {
		return nil, false, fmt.Errorf("listing %s records: %w", schema, err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[len(rows)-1], true, nil
}
