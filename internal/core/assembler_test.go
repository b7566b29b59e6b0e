package core

import (
	"sync"
	"testing"
	"time"
)

func asmKey(label string) VersionKey {
	return VersionKey{Source: "EDIT_TEST", Variant: "PRACTITIONER", Label: label}
}

func asmRows(n int) []*Row {
	rows := make([]*Row, n)
	for i := range rows {
		rows[i] = &Row{Ref: RowRef{File: "part.csv", Line: i + 2},
			Values: map[string]Value{"code": TextValue("X")}}
	}
	return rows
}

// ----------------------------------------------------------------------------
// SubmitPart Tests
// ----------------------------------------------------------------------------

func TestAssemblerSinglePart(t *testing.T) {
	a := NewAssembler()
	key := asmKey("2025Q1")

	status, err := a.SubmitPart(key, 1, 1, asmRows(3))
	if err != nil {
		t.Fatalf("SubmitPart: %v", err)
	}
	if !status.Complete || status.PartsReceived != 1 || status.PartsExpected != 1 {
		t.Fatalf("status = %+v, want complete 1/1", status)
	}

	rows, ok := a.Rows(key)
	if !ok || len(rows) != 3 {
		t.Fatalf("Rows = %d rows ok=%v, want 3 rows", len(rows), ok)
	}
	if a.PendingCount() != 0 {
		t.Error("pending state should be dropped after Rows")
	}
}

func TestAssemblerMultiPartOutOfOrder(t *testing.T) {
	a := NewAssembler()
	key := asmKey("2025Q2")

	// Parts can land in any order; the first fixes the expected count.
	status, err := a.SubmitPart(key, 3, 3, asmRows(2))
	if err != nil {
		t.Fatalf("part 3: %v", err)
	}
	if status.Complete {
		t.Fatal("one of three parts must not be complete")
	}

	if _, err := a.SubmitPart(key, 1, 3, asmRows(1)); err != nil {
		t.Fatalf("part 1: %v", err)
	}
	status, err = a.SubmitPart(key, 2, 3, asmRows(4))
	if err != nil {
		t.Fatalf("part 2: %v", err)
	}
	if !status.Complete {
		t.Fatalf("status = %+v, want complete", status)
	}

	rows, ok := a.Rows(key)
	if !ok || len(rows) != 7 {
		t.Fatalf("Rows = %d ok=%v, want 7", len(rows), ok)
	}
	// Rows come back in part order regardless of arrival order
	if rows[0].Ref.Line != 2 || len(rows) < 2 {
		t.Errorf("rows not ordered by part index")
	}
}

func TestAssemblerPartCountMismatch(t *testing.T) {
	a := NewAssembler()
	key := asmKey("2025Q3")

	if _, err := a.SubmitPart(key, 1, 3, asmRows(1)); err != nil {
		t.Fatalf("first part: %v", err)
	}

	_, err := a.SubmitPart(key, 2, 4, asmRows(1))
	mismatch, ok := err.(*PartCountMismatchError)
	if !ok {
		t.Fatalf("err = %v, want PartCountMismatchError", err)
	}
	if mismatch.Expected != 3 || mismatch.Declared != 4 {
		t.Errorf("mismatch = %+v, want expected 3 declared 4", mismatch)
	}
}

func TestAssemblerPartIndexOutOfRange(t *testing.T) {
	a := NewAssembler()
	key := asmKey("2025Q4")

	if _, err := a.SubmitPart(key, 1, 2, asmRows(1)); err != nil {
		t.Fatalf("first part: %v", err)
	}

	if _, err := a.SubmitPart(key, 3, 2, asmRows(1)); err == nil {
		t.Fatal("part index beyond declared count must fail")
	}
	if _, err := a.SubmitPart(key, 0, 2, asmRows(1)); err == nil {
		t.Fatal("part index zero must fail")
	}
}

func TestAssemblerResubmissionReplaces(t *testing.T) {
	a := NewAssembler()
	key := asmKey("2026Q1")

	if _, err := a.SubmitPart(key, 1, 2, asmRows(5)); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	// Same part again with different rows: replaces, does not double
	if _, err := a.SubmitPart(key, 1, 2, asmRows(2)); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	status, err := a.SubmitPart(key, 2, 2, asmRows(3))
	if err != nil {
		t.Fatalf("part 2: %v", err)
	}
	if !status.Complete {
		t.Fatal("expected complete after both parts")
	}

	rows, _ := a.Rows(key)
	if len(rows) != 5 {
		t.Errorf("rows = %d, want 5 (2 replaced + 3)", len(rows))
	}
}

func TestAssemblerConcurrentSubmissions(t *testing.T) {
	a := NewAssembler()
	key := asmKey("2026Q2")

	const parts = 8
	var wg sync.WaitGroup
	for i := 1; i <= parts; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if _, err := a.SubmitPart(key, idx, parts, asmRows(1)); err != nil {
				t.Errorf("part %d: %v", idx, err)
			}
		}(i)
	}
	wg.Wait()

	rows, ok := a.Rows(key)
	if !ok || len(rows) != parts {
		t.Fatalf("Rows = %d ok=%v, want %d", len(rows), ok, parts)
	}
}

// ----------------------------------------------------------------------------
// Staleness Tests
// ----------------------------------------------------------------------------

func TestAssemblerStaleSince(t *testing.T) {
	a := NewAssembler()
	stale := asmKey("old")
	fresh := asmKey("new")

	if _, err := a.SubmitPart(stale, 1, 2, asmRows(1)); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	cutoff := time.Now()
	if _, err := a.SubmitPart(fresh, 1, 2, asmRows(1)); err != nil {
		t.Fatal(err)
	}

	keys := a.StaleSince(cutoff)
	if len(keys) != 1 || keys[0] != stale {
		t.Fatalf("StaleSince = %v, want [%v]", keys, stale)
	}

	a.Drop(stale)
	if a.PendingCount() != 1 {
		t.Errorf("PendingCount = %d after drop, want 1", a.PendingCount())
	}
}
