// Package notes keeps one free-form text blob per identity.
package notes

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/accessally/accessally/internal/identity"
	"github.com/accessally/accessally/internal/store"
)

type Store struct {
	records store.Store
}

func NewStore(records store.Store) *Store {
	return &Store{records: records}
}

// Load returns the saved notes, or "" when none exist or the read fails.
func (s *Store) Load(ctx context.Context, id identity.Token) string {
	data, err := s.records.Get(ctx, store.NamespaceNotes, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error().Err(err).Str("identity", id.String()).Str("op", "notes.load").Msg("failed to load notes")
		}
		return ""
	}
	return string(data)
}

// Save replaces the notes wholesale.
func (s *Store) Save(ctx context.Context, id identity.Token, content string) error {
	if !id.Valid() {
		log.Error().Str("op", "notes.save").Msg("aborting notes save due to invalid username")
		return identity.ErrInvalid
	}
	if err := s.records.Put(ctx, store.NamespaceNotes, id, []byte(content)); err != nil {
		log.Error().Err(err).Str("identity", id.String()).Str("op", "notes.save").Msg("failed to save notes")
		return fmt.Errorf("save notes: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, id identity.Token) (bool, error) {
	return s.records.Delete(ctx, store.NamespaceNotes, id)
}
