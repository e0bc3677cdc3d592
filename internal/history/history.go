// Package history loads and saves per-identity conversation turns.
package history

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/accessally/accessally/internal/identity"
	"github.com/accessally/accessally/internal/policy"
	"github.com/accessally/accessally/internal/store"
)

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Label is the role as shown to people: first letter upper, rest lower.
func (r Role) Label() string {
	s := string(r)
	if s == "" {
		return "Unknown"
	}
	first, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(first)) + strings.ToLower(s[size:])
}

// TimestampLayout is the ISO-8601 layout rows are stamped with.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// Turn is one message of a conversation.
type Turn struct {
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp,omitempty"`
}

var header = []string{"timestamp", "role", "text"}

// Store persists histories as CSV records in a store.Store.
type Store struct {
	records store.Store
	now     func() time.Time
}

func NewStore(records store.Store) *Store {
	return &Store{records: records, now: time.Now}
}

// Load returns the identity's turns in chronological order. A missing record
// and read failures both yield an empty history; failures are logged.
func (s *Store) Load(ctx context.Context, id identity.Token) []Turn {
	data, err := s.records.Get(ctx, store.NamespaceHistory, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error().Err(err).Str("identity", id.String()).Str("op", "history.load").Msg("failed to load history")
		}
		return []Turn{}
	}
	turns, err := Decode(bytes.NewReader(data))
	if err != nil {
		log.Error().Err(err).Str("identity", id.String()).Str("op", "history.load").Msg("failed to parse history")
		return []Turn{}
	}
	return turns
}

// Save rewrites the whole record. Each row gets the wall-clock time at which it
// is serialized, so timestamps reflect save time rather than turn time.
func (s *Store) Save(ctx context.Context, id identity.Token, turns []Turn) error {
	if !id.Valid() {
		log.Error().Str("op", "history.save").Msg("aborting history save due to invalid username")
		return identity.ErrInvalid
	}
	var buf bytes.Buffer
	if err := s.encode(&buf, turns); err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := s.records.Put(ctx, store.NamespaceHistory, id, buf.Bytes()); err != nil {
		log.Error().Err(err).Str("identity", id.String()).Str("op", "history.save").Msg("failed to save history")
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// Clear deletes the record and reports whether one existed.
func (s *Store) Clear(ctx context.Context, id identity.Token) (bool, error) {
	return s.records.Delete(ctx, store.NamespaceHistory, id)
}

func (s *Store) encode(w io.Writer, turns []Turn) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, t := range turns {
		if strings.TrimSpace(string(t.Role)) == "" {
			log.Warn().Str("text", policy.LogPreview(t.Text)).Msg("skipping history entry without role")
			continue
		}
		row := []string{s.now().Format(TimestampLayout), string(t.Role), t.Text}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Decode reads a CSV history. Column positions come from the header; unknown
// columns are ignored and rows missing role or text are skipped.
func Decode(r io.Reader) ([]Turn, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []Turn{}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(head))
	for i, name := range head {
		cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	roleIdx, hasRole := cols["role"]
	textIdx, hasText := cols["text"]
	tsIdx, hasTS := cols["timestamp"]

	turns := []Turn{}
	for rowNum := 1; ; rowNum++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				log.Warn().Err(err).Int("row", rowNum).Msg("skipping unparseable history row")
				continue
			}
			return nil, err
		}
		if !hasRole || !hasText || roleIdx >= len(rec) || textIdx >= len(rec) || strings.TrimSpace(rec[roleIdx]) == "" {
			log.Warn().Int("row", rowNum).Strs("fields", rec).Msg("skipping malformed history row")
			continue
		}
		t := Turn{Role: Role(rec[roleIdx]), Text: rec[textIdx]}
		if hasTS && tsIdx < len(rec) {
			t.Timestamp = rec[tsIdx]
		}
		turns = append(turns, t)
	}
	return turns, nil
}
