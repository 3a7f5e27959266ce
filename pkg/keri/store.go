package keri

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/twinlabs/twinlink/pkg/artifact"
	"github.com/twinlabs/twinlink/pkg/cesr"
)

// KeyState is the current signing authority of an AID.
type KeyState struct {
	AID      string
	Keys     []*cesr.Verfer
	Sequence string
}

// Habitat is one entry of the published AID directory.
type Habitat struct {
	Name string `json:"name"`
	AID  string `json:"aid"`
}

type entry struct {
	state *KeyState
	log   []*SignedEvent
}

// Store resolves AIDs to verified key states. Events are fetched from the
// artifact source on first use and cached; Seed warms the cache from the
// published AID directory. Every admitted state has had its event
// signatures and self-addressing binding verified.
type Store struct {
	src artifact.Source

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewStore creates a store backed by the given artifact source.
func NewStore(src artifact.Source) *Store {
	return &Store{
		src:     src,
		entries: make(map[string]*entry),
	}
}

// Seed fetches the AID directory and loads every listed inception event in
// parallel. A single bad or missing event fails the whole seed; a store
// that silently drops identifiers would turn later verifications into
// ISSUER_UNRESOLVED noise.
func (s *Store) Seed(ctx context.Context) error {
	data, err := s.src.Fetch(ctx, artifact.HabitatsPath)
	if err != nil {
		return fmt.Errorf("fetching AID directory: %w", err)
	}

	var habitats []Habitat
	if err := json.Unmarshal(data, &habitats); err != nil {
		return fmt.Errorf("parsing AID directory: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, h := range habitats {
		h := h
		g.Go(func() error {
			if _, err := s.Resolve(ctx, h.AID); err != nil {
				return fmt.Errorf("seeding %s (%s): %w", h.Name, h.AID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Resolve returns the verified key state for an AID, fetching and
// verifying its inception event on first use.
func (s *Store) Resolve(ctx context.Context, aid string) (*KeyState, error) {
	if aid == "" {
		return nil, fmt.Errorf("%w: empty AID", ErrUnknownAID)
	}

	s.mu.RLock()
	e, ok := s.entries[aid]
	s.mu.RUnlock()
	if ok {
		return e.state, nil
	}

	raw, err := s.src.Fetch(ctx, artifact.InceptionPath(aid))
	if errors.Is(err, artifact.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAID, aid)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching inception event for %s: %w", aid, err)
	}

	se, err := ParseSignedEvent(raw)
	if err != nil {
		return nil, err
	}
	state, err := se.Verify()
	if err != nil {
		return nil, err
	}
	if state.AID != aid {
		return nil, fmt.Errorf("%w: event carries AID %s, expected %s", ErrEventInvalid, state.AID, aid)
	}

	s.mu.Lock()
	// A concurrent resolve of the same AID may have won; both verified the
	// same published bytes, so either result serves.
	if existing, ok := s.entries[aid]; ok {
		s.mu.Unlock()
		return existing.state, nil
	}
	s.entries[aid] = &entry{state: state, log: []*SignedEvent{se}}
	s.mu.Unlock()

	return state, nil
}

// VerifyLog re-verifies every signature along an AID's cached event log
// against the event's own keys.
func (s *Store) VerifyLog(ctx context.Context, aid string) error {
	if _, err := s.Resolve(ctx, aid); err != nil {
		return err
	}

	s.mu.RLock()
	e := s.entries[aid]
	s.mu.RUnlock()

	for i, se := range e.log {
		if _, err := se.Verify(); err != nil {
			return fmt.Errorf("event %d of %s: %w", i, aid, err)
		}
	}
	return nil
}

// Known returns the AIDs currently held by the store.
func (s *Store) Known() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	aids := make([]string, 0, len(s.entries))
	for aid := range s.entries {
		aids = append(aids, aid)
	}
	return aids
}
