// Package memory is an in-process RowAppender used when no spreadsheet is
// configured.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ports "finwise/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows [][]any
}

var _ ports.RowAppender = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendRows stores rows and returns a synthetic range reference.
func (s *Store) AppendRows(_ context.Context, rows [][]any) (string, error) {
	if len(rows) == 0 {
		return "", errors.New("no rows to append")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	first := len(s.rows) + 1
	for _, r := range rows {
		s.rows = append(s.rows, append([]any(nil), r...))
	}
	return fmt.Sprintf("mem!A%d:D%d", first, len(s.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	copy(out, s.rows)
	return out
}
