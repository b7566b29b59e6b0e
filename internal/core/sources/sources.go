// Package sources registers the CMS reference data sources.
//
// Each registration is pure configuration: canonical columns with their
// accepted header spellings, special-value rules, derived columns, and
// uniqueness. Adding a source is an entry here, not a code change elsewhere.
//
// Header aliases come from published CMS file layouts, which rename columns
// between releases.
package sources

import "github.com/kingsfoil/refdata/internal/core"

func init() {
	core.Register(pfsRVU())
	core.Register(pfsGPCI())
	core.Register(pfsLocality())
	core.Register(pfsAnesCF())
	core.Register(pfsOPPSCap())
	core.Register(hcpcs())
	core.Register(ncciPTP())
	core.Register(ncciMUE("NCCI_MUE_DME", "NCCI MUE - DME Supplier",
		[]string{"DME SUPPLIER SERVICES MUE VALUES", "DME MUE VALUES", "MUE VALUES", "DME SUPPLIER MUE"}))
	core.Register(ncciMUE("NCCI_MUE_PRAC", "NCCI MUE - Practitioner",
		[]string{"PRACTITIONER SERVICES MUE VALUES", "PRACTITIONER MUE VALUES", "MUE VALUES", "PRACTITIONER MUE"}))
	core.Register(ncciMUE("NCCI_MUE_OPH", "NCCI MUE - Outpatient Hospital",
		[]string{"OUTPATIENT HOSPITAL SERVICES MUE VALUES", "OUTPATIENT HOSPITAL MUE VALUES", "HOSPITAL MUE VALUES", "MUE VALUES"}))
}

// pfsRVU is the Physician Fee Schedule RVU file: base RVU values, status
// codes, and policy indicators per HCPCS code. Primary file for Medicare fee
// calculation.
func pfsRVU() core.SourceConfig {
	return core.SourceConfig{
		Code:  "PFS_RVU",
		Name:  "PFS - Relative Value Units",
		Table: "cms.pfs_rvu",
		Columns: []core.ColumnSpec{
			{Name: "hcpcs_code", Type: core.KindText, Required: true, Code: true,
				Aliases: []string{"HCPCS", "HCPC", "CPT", "HCPCS CODE", "PROCEDURE CODE"}},
			{Name: "modifier", Type: core.KindText, Code: true,
				Aliases: []string{"MOD", "MODIFIER", "MOD."}},
			{Name: "description", Type: core.KindText,
				Aliases: []string{"DESCRIPTION", "DESC", "DESCRIPTOR", "SHORT DESCRIPTION"}},
			{Name: "status_code", Type: core.KindText, Code: true,
				Aliases: []string{"STATUS CODE", "STATUS", "STAT", "STS"}},
			{Name: "work_rvu", Type: core.KindNumeric,
				Aliases: []string{"WORK RVU", "WORK_RVU", "WRVU", "PHYSICIAN WORK"}},
			{Name: "non_fac_pe_rvu", Type: core.KindNumeric,
				Aliases: []string{"NON-FAC PE RVU", "NON-FACILITY PE RVU", "NFPE RVU", "NON FAC PE RVU", "FULLY IMPL NON-FAC PE RVUS"}},
			{Name: "facility_pe_rvu", Type: core.KindNumeric,
				Aliases: []string{"FAC PE RVU", "FACILITY PE RVU", "FPE RVU", "FAC_PE_RVU", "FULLY IMPL FAC PE RVUS"}},
			{Name: "mp_rvu", Type: core.KindNumeric,
				Aliases: []string{"MP RVU", "MALPRACTICE RVU", "MAL PRAC RVU", "MPRVU", "MALPRACTICE"}},
			{Name: "non_fac_total", Type: core.KindNumeric,
				Aliases: []string{"NON-FAC TOTAL", "NON-FACILITY TOTAL", "NF TOTAL"}},
			{Name: "facility_total", Type: core.KindNumeric,
				Aliases: []string{"FAC TOTAL", "FACILITY TOTAL", "FAC_TOTAL"}},
			{Name: "pctc_indicator", Type: core.KindText, Code: true,
				Aliases: []string{"PCTC IND", "PC/TC IND", "PCTC INDICATOR", "PC/TC INDICATOR"}},
			{Name: "global_days", Type: core.KindText, Code: true,
				Aliases: []string{"GLOB DAYS", "GLOBAL DAYS", "GLOBAL PERIOD", "GLOB"}},
			{Name: "conversion_factor", Type: core.KindNumeric,
				Aliases: []string{"CONV FACTOR", "CF", "CONVERSION FACTOR", "GPCI CF"}},
		},
		UniqueKey: []string{"hcpcs_code", "modifier"},
	}
}

// pfsGPCI holds geographic adjustment factors (work, PE, MP) by locality.
func pfsGPCI() core.SourceConfig {
	return core.SourceConfig{
		Code:  "PFS_GPCI",
		Name:  "PFS - Geographic Practice Cost Index",
		Table: "cms.pfs_gpci",
		Columns: []core.ColumnSpec{
			{Name: "mac_locality", Type: core.KindText, Required: true, Code: true,
				Aliases: []string{"MAC LOCALITY", "LOCALITY", "CARRIER LOCALITY", "MAC/LOCALITY"}},
			{Name: "locality_name", Type: core.KindText,
				Aliases: []string{"LOCALITY NAME", "NAME", "LOCALITY DESCRIPTION"}},
			{Name: "work_gpci", Type: core.KindNumeric, Required: true,
				Aliases: []string{"WORK GPCI", "PW GPCI", "WORK", "PHYSICIAN WORK GPCI"}},
			{Name: "pe_gpci", Type: core.KindNumeric, Required: true,
				Aliases: []string{"PE GPCI", "PRACTICE EXPENSE GPCI", "PE", "PRACTICE EXPENSE"}},
			{Name: "mp_gpci", Type: core.KindNumeric, Required: true,
				Aliases: []string{"MP GPCI", "MALPRACTICE GPCI", "MP", "PLI GPCI"}},
		},
		UniqueKey: []string{"mac_locality"},
	}
}

// pfsLocality maps counties and states to MAC localities. mac_locality is
// derived from carrier_number + locality_code when the file does not carry
// it pre-populated.
func pfsLocality() core.SourceConfig {
	return core.SourceConfig{
		Code:  "PFS_LOCALITY",
		Name:  "PFS - Locality Mapping",
		Table: "cms.pfs_locality",
		Columns: []core.ColumnSpec{
			{Name: "state_code", Type: core.KindText, Required: true, Code: true,
				Aliases: []string{"STATE", "STATE CODE", "ST"}},
			{Name: "county_code", Type: core.KindText, Code: true,
				Aliases: []string{"COUNTY CODE", "FIPS", "FIPS CODE"}},
			{Name: "county_name", Type: core.KindText,
				Aliases: []string{"COUNTY", "COUNTY NAME"}},
			{Name: "carrier_number", Type: core.KindText, Required: true, Code: true,
				Aliases: []string{"CARRIER", "CARRIER NUMBER", "MAC", "MAC NUMBER"}},
			{Name: "locality_code", Type: core.KindText, Required: true, Code: true,
				Aliases: []string{"LOCALITY", "LOCALITY CODE", "LOC"}},
			{Name: "mac_locality", Type: core.KindText, Code: true,
				Aliases: []string{"MAC LOCALITY", "CARRIER LOCALITY"}},
		},
		Derived: []core.DerivedColumn{
			{Name: "mac_locality", Type: core.KindText,
				Concat: []string{"carrier_number", "locality_code"}},
		},
		UniqueKey: []string{"state_code", "county_code", "carrier_number", "locality_code"},
	}
}

// pfsAnesCF holds locality-specific anesthesia conversion factors.
func pfsAnesCF() core.SourceConfig {
	return core.SourceConfig{
		Code:  "PFS_ANES_CF",
		Name:  "PFS - Anesthesia Conversion Factor",
		Table: "cms.pfs_anes_cf",
		Columns: []core.ColumnSpec{
			{Name: "mac_locality", Type: core.KindText, Required: true, Code: true,
				Aliases: []string{"MAC LOCALITY", "LOCALITY", "CARRIER LOCALITY"}},
			{Name: "locality_name", Type: core.KindText,
				Aliases: []string{"LOCALITY NAME", "NAME"}},
			{Name: "anes_conversion_factor", Type: core.KindNumeric, Required: true,
				Aliases: []string{"ANESTHESIA CF", "ANES CF", "CONVERSION FACTOR", "CF"}},
		},
		UniqueKey: []string{"mac_locality"},
	}
}

// pfsOPPSCap holds imaging technical-component cap amounts.
func pfsOPPSCap() core.SourceConfig {
	return core.SourceConfig{
		Code:  "PFS_OPPS_CAP",
		Name:  "PFS - OPPS Imaging Cap",
		Table: "cms.pfs_opps_cap",
		Columns: []core.ColumnSpec{
			{Name: "hcpcs_code", Type: core.KindText, Required: true, Code: true,
				Aliases: []string{"HCPCS", "HCPC", "HCPCS CODE", "CODE"}},
			{Name: "opps_cap_amount", Type: core.KindNumeric, Required: true,
				Aliases: []string{"OPPS CAP", "CAP AMOUNT", "OPPS CAP AMOUNT", "CAP"}},
		},
		UniqueKey: []string{"hcpcs_code"},
	}
}

// hcpcs is the HCPCS Level II code list.
func hcpcs() core.SourceConfig {
	return core.SourceConfig{
		Code:  "HCPCS",
		Name:  "HCPCS Level II Codes",
		Table: "cms.hcpcs_codes",
		Columns: []core.ColumnSpec{
			{Name: "hcpcs_code", Type: core.KindText, Required: true, Code: true,
				Aliases: []string{"HCPC", "HCPCS", "HCPCS CODE", "CODE"}},
			{Name: "short_description", Type: core.KindText,
				Aliases: []string{"SHORT DESCRIPTION", "SHORT DESC", "SHORTDESCRIPTION"}},
			{Name: "long_description", Type: core.KindText,
				Aliases: []string{"LONG DESCRIPTION", "LONG DESC", "LONGDESCRIPTION", "DESCRIPTION"}},
			{Name: "add_date", Type: core.KindDate,
				Aliases: []string{"ADD DT", "ADD DATE", "ADDED DATE"}},
			{Name: "effective_date", Type: core.KindDate,
				Aliases: []string{"ACT EFF DT", "EFFECTIVE DATE", "EFF DATE", "ACTION EFFECTIVE DATE"}},
			{Name: "termination_date", Type: core.KindDate,
				Aliases: []string{"TERM DT", "TERMINATION DATE", "TERM DATE", "END DATE"}},
			{Name: "betos_code", Type: core.KindText, Code: true,
				Aliases: []string{"BETOS", "BETOS CODE", "TOS"}},
			{Name: "coverage_code", Type: core.KindText, Code: true,
				Aliases: []string{"COV", "COVERAGE", "COV CODE", "COVERAGE CODE"}},
		},
		UniqueKey: []string{"hcpcs_code"},
	}
}

// ncciPTP is the procedure-to-procedure bundling edit list. Published
// quarterly as several files split by code range, in Hospital and
// Practitioner variants. Deletion date uses "*" for still-active edits, the
// pre-1996 flag uses "*" for presence, and the modifier indicator column
// appends legend text after the digit.
func ncciPTP() core.SourceConfig {
	return core.SourceConfig{
		Code:  "NCCI_PTP",
		Name:  "NCCI PTP Edits",
		Table: "cms.ncci_ptp",
		Columns: []core.ColumnSpec{
			{Name: "comprehensive_code", Type: core.KindText, Required: true, Code: true,
				Aliases: []string{"COLUMN 1", "COLUMN1", "CODE 1", "COMPREHENSIVE CODE"}},
			{Name: "component_code", Type: core.KindText, Required: true, Code: true,
				Aliases: []string{"COLUMN 2", "COLUMN2", "CODE 2", "COMPONENT CODE"}},
			{Name: "modifier_indicator", Type: core.KindInteger, Required: true,
				Special:     core.SpecialLeadingDigit,
				AllowedInts: []int64{0, 1, 9},
				Aliases:     []string{"MODIFIER", "MOD IND", "MODIFIER INDICATOR", "MODIFIER 0=NOT ALLOWED"}},
			{Name: "effective_date", Type: core.KindDate, Required: true,
				Aliases: []string{"EFFECTIVE DATE", "EFFECTIVEDATE", "EFF DATE", "EFF_DATE"}},
			{Name: "deletion_date", Type: core.KindDate,
				Special: core.SpecialStarNull,
				Aliases: []string{"DELETION DATE", "DELETIONDATE", "DEL DATE", "DEL_DATE", "END DATE"}},
			{Name: "rationale", Type: core.KindText,
				Aliases: []string{"PTP EDIT RATIONALE", "RATIONALE", "PTP RATIONALE", "EDIT RATIONALE"}},
			{Name: "prior_1996_flag", Type: core.KindBool,
				Special: core.SpecialStarTrue,
				Aliases: []string{"*=IN EXISTENCE PRIOR TO 1996", "*=IN EXISTENCE", "PRIOR 1996", "PRE-1996"}},
		},
		UniqueKey: []string{"comprehensive_code", "component_code"},
		Variants:  []string{"HOSPITAL", "PRACTITIONER"},
		MultiPart: true,
	}
}

// ncciMUE builds a medically-unlikely-edit source. The three MUE files share
// a schema and differ only in the value column heading; mai_id is extracted
// from the leading integer of the MAI description and a zero MUE value is a
// real limit, never a null.
func ncciMUE(code, name string, valueAliases []string) core.SourceConfig {
	return core.SourceConfig{
		Code:  code,
		Name:  name,
		Table: "cms.ncci_mue",
		Columns: []core.ColumnSpec{
			{Name: "hcpcs_code", Type: core.KindText, Required: true, Code: true,
				Aliases: []string{"HCPCS/CPT CODE", "HCPCS CODE", "CPT/HCPCS CODE", "HCPCS", "CPT CODE"}},
			{Name: "mue_value", Type: core.KindInteger, Required: true,
				Aliases: valueAliases},
			{Name: "mai_description", Type: core.KindText, Required: true,
				Aliases: []string{"MUE ADJUDICATION INDICATOR", "MAI", "ADJUDICATION INDICATOR"}},
			{Name: "mue_rationale", Type: core.KindText,
				Aliases: []string{"MUE RATIONALE", "RATIONALE", "MUE RATIONALE CODE"}},
		},
		Derived: []core.DerivedColumn{
			{Name: "mai_id", Type: core.KindInteger,
				LeadingIntFrom: "mai_description",
				AllowedInts:    []int64{1, 2, 3}},
		},
		UniqueKey: []string{"hcpcs_code"},
	}
}
