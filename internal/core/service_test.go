package core

import (
	"context"
	"errors"
	"testing"
)

func serviceFeeConfig() SourceConfig {
	return SourceConfig{
		Code:  "SVC_FEE_TEST",
		Name:  "Service Fee Schedule Test",
		Table: "svc_fee_test",
		Columns: []ColumnSpec{
			{Name: "hcpcs_code", Type: KindText, Required: true, Code: true,
				Aliases: []string{"HCPCS"}},
			{Name: "modifier", Type: KindText, Code: true,
				Aliases: []string{"MOD"}},
			{Name: "work_rvu", Type: KindNumeric, Required: true,
				Aliases: []string{"WORK RVU"}},
		},
		UniqueKey: []string{"hcpcs_code", "modifier"},
	}
}

func servicePTPConfig() SourceConfig {
	return SourceConfig{
		Code:  "SVC_PTP_TEST",
		Name:  "Service Edit Pair Test",
		Table: "svc_ptp_test",
		Columns: []ColumnSpec{
			{Name: "comprehensive_code", Type: KindText, Required: true, Code: true,
				Aliases: []string{"COLUMN 1"}},
			{Name: "component_code", Type: KindText, Required: true, Code: true,
				Aliases: []string{"COLUMN 2"}},
		},
		UniqueKey: []string{"comprehensive_code", "component_code"},
		Variants:  []string{"HOSPITAL", "PRACTITIONER"},
		MultiPart: true,
	}
}

func newTestService(st Store) *Service {
	registerOnce(serviceFeeConfig())
	registerOnce(servicePTPConfig())
	return NewService(st, Options{})
}

// ----------------------------------------------------------------------------
// IngestFile Tests
// ----------------------------------------------------------------------------

func TestServiceIngestFile(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	svc := newTestService(st)

	records := [][]string{
		{"Physician Fee Schedule", "", "", ""},
		{"", "", "", ""},
		{"HCPCS", "MOD", "WORK RVU", "EXTRA"},
		{"99213", "", "1.5", "x"},
		{"99213", "25", "2.1", "x"},
		{"g0463", "", "0.0", "x"},
		{"", "", "", ""},
		{"BADROW", "", "not a number", "x"},
		{"99213", "", "9.9", "x"}, // duplicate of line 4
	}

	res, err := svc.IngestFile(ctx, IngestRequest{
		SourceCode:   "SVC_FEE_TEST",
		VersionLabel: "2025Q1",
		FileName:     "pfs.csv",
		Records:      records,
	})
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}

	if res.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", res.Status)
	}
	if res.AcceptedRows != 3 {
		t.Errorf("accepted = %d, want 3", res.AcceptedRows)
	}
	if res.Report.RowsAttempted != 5 {
		t.Errorf("attempted = %d, want 5", res.Report.RowsAttempted)
	}
	if res.Report.RowsRejected != 2 {
		t.Errorf("rejected = %d, want 2 (type error + duplicate)", res.Report.RowsRejected)
	}
	if res.Report.RowsSkipped == 0 {
		t.Error("blank data row should be counted as skipped")
	}
	if res.IngestID == "" {
		t.Error("ingest id must be set")
	}

	kinds := res.Report.ByKind()
	if kinds[IssueUnmappedHeader] != 1 {
		t.Errorf("unmapped header issues = %d, want 1 (EXTRA)", kinds[IssueUnmappedHeader])
	}
	if kinds[IssueTypeError] != 1 {
		t.Errorf("type error issues = %d, want 1", kinds[IssueTypeError])
	}
	if kinds[IssueDuplicateKey] != 1 {
		t.Errorf("duplicate issues = %d, want 1", kinds[IssueDuplicateKey])
	}
	if res.Report.Fatal() {
		t.Error("a within-part duplicate is a warning, not fatal")
	}

	// Code cleaning applies on the way in
	key := VersionKey{Source: "SVC_FEE_TEST", Label: "2025Q1"}
	var sawUpper bool
	for _, row := range st.rows[key] {
		if v := row.Values["hcpcs_code"]; v.Text == "G0463" {
			sawUpper = true
		}
	}
	if !sawUpper {
		t.Error("lowercase code g0463 should be stored as G0463")
	}
}

func TestServiceIngestValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFakeStore())
	good := [][]string{{"HCPCS", "WORK RVU"}, {"99213", "1.5"}}

	t.Run("unknown source", func(t *testing.T) {
		_, err := svc.IngestFile(ctx, IngestRequest{
			SourceCode: "NOT_A_SOURCE", VersionLabel: "v1", Records: good,
		})
		var unknown *UnknownSourceError
		if !errors.As(err, &unknown) {
			t.Fatalf("err = %v, want UnknownSourceError", err)
		}
	})

	t.Run("unknown variant", func(t *testing.T) {
		_, err := svc.IngestFile(ctx, IngestRequest{
			SourceCode: "SVC_FEE_TEST", Variant: "HOSPITAL",
			VersionLabel: "v1", Records: good,
		})
		var structural *StructuralError
		if !errors.As(err, &structural) {
			t.Fatalf("err = %v, want StructuralError", err)
		}
	})

	t.Run("variant case insensitive", func(t *testing.T) {
		_, err := svc.IngestFile(ctx, IngestRequest{
			SourceCode: "SVC_PTP_TEST", Variant: "hospital",
			VersionLabel: "v-case", PartIndex: 1, DeclaredParts: 1,
			FileName: "ptp.csv",
			Records:  [][]string{{"COLUMN 1", "COLUMN 2"}, {"99213", "99212"}},
		})
		if err != nil {
			t.Fatalf("lowercase variant should resolve: %v", err)
		}
	})

	t.Run("missing version label", func(t *testing.T) {
		_, err := svc.IngestFile(ctx, IngestRequest{
			SourceCode: "SVC_FEE_TEST", VersionLabel: "  ", Records: good,
		})
		var structural *StructuralError
		if !errors.As(err, &structural) {
			t.Fatalf("err = %v, want StructuralError", err)
		}
	})

	t.Run("no header row", func(t *testing.T) {
		_, err := svc.IngestFile(ctx, IngestRequest{
			SourceCode: "SVC_FEE_TEST", VersionLabel: "v2",
			FileName: "garbage.csv",
			Records:  [][]string{{"no", "headers"}, {"at", "all"}},
		})
		var structural *StructuralError
		if !errors.As(err, &structural) {
			t.Fatalf("err = %v, want StructuralError", err)
		}
		if len(structural.Missing) == 0 {
			t.Error("structural error should name the missing required columns")
		}
	})
}

// ----------------------------------------------------------------------------
// Multi-Part and Promotion Tests
// ----------------------------------------------------------------------------

func TestServiceMultiPartLifecycle(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	svc := newTestService(st)

	part := func(idx int, rows ...[]string) IngestRequest {
		records := [][]string{{"COLUMN 1", "COLUMN 2"}}
		records = append(records, rows...)
		return IngestRequest{
			SourceCode:    "SVC_PTP_TEST",
			Variant:       "PRACTITIONER",
			VersionLabel:  "2025Q1",
			PartIndex:     idx,
			DeclaredParts: 2,
			FileName:      "ptp.csv",
			Records:       records,
		}
	}

	res, err := svc.IngestFile(ctx, part(1, []string{"99213", "99212"}, []string{"99214", "99212"}))
	if err != nil {
		t.Fatalf("part 1: %v", err)
	}
	if res.Status != StatusProcessing || res.Assembly.Complete {
		t.Fatalf("after part 1: status=%s complete=%v, want processing incomplete",
			res.Status, res.Assembly.Complete)
	}

	res, err = svc.IngestFile(ctx, part(2, []string{"99215", "99212"}))
	if err != nil {
		t.Fatalf("part 2: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("after part 2: status = %s, want completed", res.Status)
	}

	key := VersionKey{Source: "SVC_PTP_TEST", Variant: "PRACTITIONER", Label: "2025Q1"}
	if len(st.rows[key]) != 3 {
		t.Errorf("persisted rows = %d, want 3", len(st.rows[key]))
	}

	if err := svc.PromoteVersion(ctx, "SVC_PTP_TEST", "practitioner", "2025Q1"); err != nil {
		t.Fatalf("PromoteVersion: %v", err)
	}
	if cur, ok := st.current("SVC_PTP_TEST", "PRACTITIONER"); !ok || cur != key {
		t.Errorf("current = %v, want %v", cur, key)
	}

	versions, err := svc.ListVersions(ctx, "SVC_PTP_TEST", "PRACTITIONER")
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 1 || !versions[0].IsCurrent {
		t.Errorf("versions = %+v, want one current entry", versions)
	}
}

func TestServicePromoteIncomplete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFakeStore())

	err := svc.PromoteVersion(ctx, "SVC_FEE_TEST", "", "never-ingested")
	var notCompleted *VersionNotCompletedError
	if !errors.As(err, &notCompleted) {
		t.Fatalf("err = %v, want VersionNotCompletedError", err)
	}
}

func TestServiceListVersionsUnknownSource(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFakeStore())

	_, err := svc.ListVersions(ctx, "NOT_A_SOURCE", "")
	var unknown *UnknownSourceError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownSourceError", err)
	}
}
