package core

// service.go is the main entry point for ingestion operations. The service
// wires the registry, header resolver, row transformer, and version manager
// together and is transport-agnostic: web handlers, CLI tools, and tests all
// drive the same methods.

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Default service tuning values, overridable via Options.
const (
	DefaultHeaderScanRows  = 15
	DefaultAssemblyMaxWait = 30 * time.Minute
)

// Options tunes service behavior. Zero values fall back to defaults.
type Options struct {
	// HeaderScanRows caps how deep the header resolver searches for the
	// real header row beneath title and legend rows.
	HeaderScanRows int

	// AssemblyMaxWait is how long a multi-part version may sit without a
	// new part before the sweeper fails it.
	AssemblyMaxWait time.Duration

	// MaxConcurrent and MaxWait configure the ingest limiter.
	MaxConcurrent int
	MaxWait       time.Duration
}

func (o Options) withDefaults() Options {
	if o.HeaderScanRows <= 0 {
		o.HeaderScanRows = DefaultHeaderScanRows
	}
	if o.AssemblyMaxWait <= 0 {
		o.AssemblyMaxWait = DefaultAssemblyMaxWait
	}
	return o
}

// Service exposes the ingestion and versioning operations.
type Service struct {
	mgr     *Manager
	limiter *IngestLimiter
	opts    Options
}

// NewService creates a service over the given store.
func NewService(store Store, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		mgr:     NewManager(store),
		limiter: NewIngestLimiter(opts.MaxConcurrent, opts.MaxWait),
		opts:    opts,
	}
}

// Limiter exposes the ingest limiter for monitoring and shutdown draining.
func (s *Service) Limiter() *IngestLimiter { return s.limiter }

// IngestRequest describes one uploaded file, already parsed to records.
type IngestRequest struct {
	SourceCode   string
	Variant      string
	VersionLabel string

	// PartIndex and DeclaredParts position this file within a multi-part
	// version. Ignored for single-part sources.
	PartIndex     int
	DeclaredParts int

	FileName string
	Records  [][]string
}

// IngestFile processes one uploaded file end to end: resolve the source,
// find and map the header row, transform rows, and submit the result as a
// version part. Row-level problems are reported, not returned as errors;
// the returned error is reserved for structural and state-conflict failures.
func (s *Service) IngestFile(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	cfg, err := Resolve(req.SourceCode)
	if err != nil {
		return nil, err
	}

	variant := strings.ToUpper(strings.TrimSpace(req.Variant))
	if !cfg.HasVariant(variant) {
		return nil, &StructuralError{
			Reason: fmt.Sprintf("source %s has no variant %q", cfg.Code, req.Variant),
		}
	}
	label := strings.TrimSpace(req.VersionLabel)
	if label == "" {
		return nil, &StructuralError{Reason: "version label is required"}
	}
	key := VersionKey{Source: cfg.Code, Variant: variant, Label: label}

	partIdx, declared := req.PartIndex, req.DeclaredParts
	if !cfg.MultiPart {
		partIdx, declared = 1, 1
	}
	if partIdx < 1 {
		partIdx = 1
	}
	if declared < 1 {
		declared = 1
	}

	start := time.Now()
	headerIdx, resolution, found := FindHeaderRow(req.Records, cfg, s.opts.HeaderScanRows)
	if !found {
		structural := &StructuralError{
			Reason: fmt.Sprintf("no usable header row in the first %d rows of %s",
				min(s.opts.HeaderScanRows, len(req.Records)), req.FileName),
			Missing: missingRequired(req.Records, cfg),
		}
		// A structural failure in a later part poisons the whole version.
		if err := s.mgr.FailStructural(ctx, key, structural.Error()); err != nil {
			slog.Error("failed to fail version after structural error",
				"version", key.String(), "error", err)
		}
		return nil, structural
	}

	report := &IngestReport{}
	for _, h := range resolution.Unmatched {
		report.Add(ValidationIssue{
			File:    req.FileName,
			Line:    headerIdx + 1,
			Kind:    IssueUnmappedHeader,
			Message: fmt.Sprintf("header %q matched no known column", h),
		})
	}

	var rows []*Row
	for i := headerIdx + 1; i < len(req.Records); i++ {
		raw := req.Records[i]
		if IsEmptyRow(raw) {
			report.RowsSkipped++
			continue
		}
		report.RowsAttempted++

		ref := RowRef{File: req.FileName, Line: i + 1}
		row, issues := TransformRow(raw, resolution.Mapping, cfg, ref)
		report.AddAll(issues)
		if row == nil {
			report.RowsRejected++
			continue
		}
		rows = append(rows, row)
	}

	rows, dupIssues := DedupeRows(rows, cfg.UniqueKey)
	report.AddAll(dupIssues)
	report.RowsRejected += len(dupIssues)
	report.RowsAccepted = len(rows)

	submit, err := s.mgr.SubmitPart(ctx, cfg, key, partIdx, declared, rows)
	if err != nil {
		return nil, err
	}
	report.AddAll(submit.Issues)

	slog.Info("file ingested",
		"source", cfg.Code,
		"version", key.String(),
		"file", req.FileName,
		"part", partIdx,
		"rows_accepted", report.RowsAccepted,
		"rows_rejected", report.RowsRejected,
		"status", string(submit.Meta.Status),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &IngestResult{
		IngestID:     uuid.NewString(),
		Version:      key,
		Status:       submit.Meta.Status,
		Assembly:     submit.Assembly,
		AcceptedRows: report.RowsAccepted,
		Report:       report,
	}, nil
}

// PromoteVersion makes a completed version current for its source+variant.
func (s *Service) PromoteVersion(ctx context.Context, source, variant, label string) error {
	cfg, err := Resolve(source)
	if err != nil {
		return err
	}
	variant = strings.ToUpper(strings.TrimSpace(variant))
	if !cfg.HasVariant(variant) {
		return &StructuralError{
			Reason: fmt.Sprintf("source %s has no variant %q", cfg.Code, variant),
		}
	}
	key := VersionKey{Source: cfg.Code, Variant: variant, Label: strings.TrimSpace(label)}
	return s.mgr.Promote(ctx, key)
}

// ListVersions returns version metadata for a source, newest first. An empty
// variant lists all variants.
func (s *Service) ListVersions(ctx context.Context, source, variant string) ([]VersionMeta, error) {
	if _, err := Resolve(source); err != nil {
		return nil, err
	}
	return s.mgr.List(ctx, source, strings.ToUpper(strings.TrimSpace(variant)))
}

// Sources returns all registered source configurations, sorted by code.
func (s *Service) Sources() []SourceConfig {
	return AllSources()
}

// missingRequired reports which required columns never resolved in any
// scanned row, for structural error diagnostics.
func missingRequired(records [][]string, cfg SourceConfig) []string {
	found := make(map[string]bool)
	for _, raw := range records {
		res := ResolveHeaders(raw, cfg)
		for name := range res.Mapping {
			found[name] = true
		}
	}
	var missing []string
	for _, col := range cfg.Columns {
		if col.Required && !found[col.Name] {
			missing = append(missing, col.Name)
		}
	}
	return missing
}
