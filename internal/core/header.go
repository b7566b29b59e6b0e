package core

// header.go resolves raw file headers to canonical columns.
//
// Published reference files rename their columns between releases ("HCPCS",
// "HCPC", "PROCEDURE CODE"), bury the header under title rows, and append
// legend text. Resolution is alias-table driven: aliases are enumerated per
// source and compared exact-match on the normalized form. No fuzzy matching.

// HeaderMapping maps canonical column names to raw column indices.
type HeaderMapping map[string]int

// HeaderResolution is the outcome of resolving one raw header row.
type HeaderResolution struct {
	Mapping   HeaderMapping
	Unmatched []string // non-empty raw headers with no canonical match (warnings)
	Missing   []string // required canonical columns with no matching header (fatal)
}

// OK reports whether every required column resolved.
func (r HeaderResolution) OK() bool { return len(r.Missing) == 0 }

// ResolveHeaders maps each raw header to a canonical column using the
// source's alias table. The first raw header matching a canonical column
// wins; later duplicates are reported as unmatched.
func ResolveHeaders(raw []string, cfg SourceConfig) HeaderResolution {
	aliasToCanonical := make(map[string]string)
	for _, col := range cfg.Columns {
		aliasToCanonical[NormalizeHeader(col.Name)] = col.Name
		for _, a := range col.Aliases {
			aliasToCanonical[NormalizeHeader(a)] = col.Name
		}
	}

	res := HeaderResolution{Mapping: make(HeaderMapping)}
	for i, h := range raw {
		norm := NormalizeHeader(h)
		if norm == "" {
			continue
		}
		canonical, ok := aliasToCanonical[norm]
		if !ok {
			res.Unmatched = append(res.Unmatched, CleanCell(h))
			continue
		}
		if _, taken := res.Mapping[canonical]; taken {
			res.Unmatched = append(res.Unmatched, CleanCell(h))
			continue
		}
		res.Mapping[canonical] = i
	}

	for _, col := range cfg.Columns {
		if !col.Required {
			continue
		}
		if _, ok := res.Mapping[col.Name]; !ok {
			res.Missing = append(res.Missing, col.Name)
		}
	}
	return res
}

// FindHeaderRow scans the first maxScan records for a row where every
// required canonical column resolves. Reference files routinely carry title
// and legend rows above the real header, so row 0 cannot be assumed.
// Returns the header row index and its resolution, or ok=false.
func FindHeaderRow(records [][]string, cfg SourceConfig, maxScan int) (int, HeaderResolution, bool) {
	if maxScan <= 0 || maxScan > len(records) {
		maxScan = len(records)
	}
	for i := 0; i < maxScan; i++ {
		res := ResolveHeaders(records[i], cfg)
		if res.OK() && len(res.Mapping) > 0 {
			return i, res, true
		}
	}
	return -1, HeaderResolution{}, false
}
