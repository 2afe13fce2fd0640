package cognitive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// schemaVersion is bumped whenever the persisted document shape changes.
const schemaVersion = 1

// persistedState is the single JSON document covering MAB arm statistics,
// golden templates, and the trial ground's culled-path history, versioned so
// a future format change can detect and migrate old snapshots. Learned-path
// metadata, exploration boosts, culling candidates, and the watch list are
// not part of it.
type persistedState struct {
	SchemaVersion int                        `json:"schema_version"`
	Round         int                        `json:"round"`
	Arms          map[string]*MABArm         `json:"arms"`
	Golden        map[string]*GoldenTemplate `json:"golden_templates"`
	CulledPaths   []culledEntry              `json:"culled_paths"`
}

// Snapshot serializes the core's full decision-relevant state as one JSON
// document. Restoring this document on a fresh Core reproduces identical
// arm counts and golden-template membership.
func (c *Core) Snapshot() ([]byte, error) {
	c.Selector.mu.RLock()
	state := persistedState{
		SchemaVersion: schemaVersion,
		Arms:          make(map[string]*MABArm, len(c.Selector.arms)),
		Golden:        make(map[string]*GoldenTemplate, len(c.Selector.golden.templates)),
		CulledPaths:   append([]culledEntry{}, c.Selector.trial.culledPaths...),
	}
	for id, arm := range c.Selector.arms {
		cp := *arm
		state.Arms[id] = &cp
	}
	for id, t := range c.Selector.golden.templates {
		cp := *t
		state.Golden[id] = &cp
	}
	c.Selector.mu.RUnlock()

	c.mu.Lock()
	state.Round = c.round
	c.mu.Unlock()

	return json.Marshal(state)
}

// Restore loads a snapshot produced by Snapshot, replacing current arm,
// golden-template, and culled-path history state; the rest of the trial
// ground state is left as it was. Absence of a document (pass nil/empty
// data) is treated as cold start and is a no-op.
func (c *Core) Restore(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}

	c.Selector.mu.Lock()
	c.Selector.arms = state.Arms
	if c.Selector.arms == nil {
		c.Selector.arms = make(map[string]*MABArm)
	}
	c.Selector.golden.templates = state.Golden
	if c.Selector.golden.templates == nil {
		c.Selector.golden.templates = make(map[string]*GoldenTemplate)
	}
	c.Selector.trial.culledPaths = state.CulledPaths
	c.Selector.mu.Unlock()

	c.mu.Lock()
	c.round = state.Round
	c.mu.Unlock()

	return nil
}

// Store is the persistence backend contract; FileStore and FirestoreStore
// both implement it.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// FileStore persists the snapshot document to a local file, grounded on
// pkg/config.SaveConfig's plain os.WriteFile pattern. A missing file is
// cold start, not an error.
type FileStore struct {
	Path string
}

func (f *FileStore) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return data, err
}

func (f *FileStore) Save(ctx context.Context, data []byte) error {
	return os.WriteFile(f.Path, data, 0o644)
}

// FirestoreStore persists the snapshot document as a single Firestore
// document, for deployments that already depend on Firestore elsewhere.
// Grounded on pkg/vectorstore/firestore's client-construction pattern.
type FirestoreStore struct {
	Client     *firestore.Client
	Collection string
	Document   string
}

type firestoreSnapshot struct {
	Data []byte `firestore:"data"`
}

func (f *FirestoreStore) Load(ctx context.Context) ([]byte, error) {
	ref := f.Client.Collection(f.Collection).Doc(f.Document)
	snap, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cognitive: load firestore snapshot: %w", err)
	}
	var doc firestoreSnapshot
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("cognitive: decode firestore snapshot: %w", err)
	}
	return doc.Data, nil
}

func (f *FirestoreStore) Save(ctx context.Context, data []byte) error {
	ref := f.Client.Collection(f.Collection).Doc(f.Document)
	_, err := ref.Set(ctx, firestoreSnapshot{Data: data})
	return err
}
