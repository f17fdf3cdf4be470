package memory

import (
	"context"
	"testing"
)

func TestStore_AppendRows(t *testing.T) {
	s := New()
	ref, err := s.AppendRows(context.Background(), [][]any{{"2024-01", "Food", "10.00", "100"}})
	if err != nil || ref != "mem!A1:D1" {
		t.Fatalf("AppendRows() = %s, %v", ref, err)
	}
	ref, _ = s.AppendRows(context.Background(), [][]any{{"2024-02", "Rent", "5.00", "50"}, {"2024-02", "Net", "1.00", ""}})
	if ref != "mem!A2:D3" {
		t.Errorf("second ref = %s", ref)
	}
	if rows := s.Rows(); len(rows) != 3 || rows[2][1] != "Net" {
		t.Errorf("Rows() = %v", rows)
	}
	if _, err := s.AppendRows(context.Background(), nil); err == nil {
		t.Errorf("expected error for empty append")
	}
}
