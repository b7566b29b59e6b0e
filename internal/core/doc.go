// Package core provides the business logic for reference table ingestion.
//
// This package contains all domain logic independent of any transport layer.
// It can be driven by web handlers, CLI tools, or tests without modification.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Source Registry: data sources (fee schedules, code lists, bundling
//     edits) are registered via [Register], each as a pure-data
//     [SourceConfig] with canonical columns, header aliases, special-value
//     rules, and uniqueness constraints.
//   - Header Resolution: published files rename columns between releases and
//     bury the header under title rows. [FindHeaderRow] scans for a row
//     where every required column resolves through the alias table.
//   - Row Transformation: [TransformRow] coerces raw cells to typed values,
//     applies special-value substitutions, and computes derived columns.
//     Failures are row-granular and collected on an [IngestReport].
//   - Part Assembly: sources published as several files per release
//     accumulate in an [Assembler] until all declared parts arrive.
//   - Version Lifecycle: the [Manager] moves versions through
//     processing -> completed/failed and promotes exactly one completed
//     version per source+variant to current, atomically.
//
// # Source Registry
//
// Sources are registered at init time. A registration is configuration, not
// code:
//
//	core.Register(SourceConfig{
//	    Code:  "PFS_RVU",
//	    Table: "cms.pfs_rvu",
//	    Columns: []ColumnSpec{
//	        {Name: "hcpcs_code", Type: KindText, Required: true,
//	            Aliases: []string{"HCPCS", "HCPC", "CPT"}, Code: true},
//	        {Name: "work_rvu", Type: KindNumeric, Aliases: []string{"WORK RVU"}},
//	    },
//	    UniqueKey: []string{"hcpcs_code", "modifier"},
//	})
//
// # Ingestion Flow
//
//  1. Client calls [Service.IngestFile] with parsed records
//  2. The registry resolves the source code and variant
//  3. The header resolver locates and maps the header row
//  4. Each row is transformed, validated, and deduplicated
//  5. The part is submitted to the version manager; when the final part
//     lands, all rows are persisted atomically and the version completes
//
// # Error Handling
//
// Structural problems (unknown source, missing headers, part count
// disagreement, closed version) are typed errors returned to the caller.
// Row-level problems never abort a file; they are collected as
// [ValidationIssue] values on the report, with Fatal issues failing the
// version at completion time.
package core
