package recon

// Schema versions accepted for each extract. Extraction collaborators declare
// the version of the grid they scraped; anything else is rejected up front
// rather than best-effort parsed.
const (
	PayablesSchemaVersion = 1
	LedgerSchemaVersion   = 1
)

// Column names of the payables register extract (schema v1).
const (
	ColVendor      = "fornecedor"
	ColDocument    = "titulo"
	ColInstallment = "parcela"
	ColDocType     = "tipo"
	ColIssueDate   = "emissao"
	ColDueDate     = "vencimento"
	ColAmount      = "valor"
	ColStatus      = "situacao"
)

// Column names of the trial-balance extract (schema v1).
const (
	ColAccount        = "conta_contabil"
	ColVendorCode     = "codigo_fornecedor"
	ColVendorDesc     = "descricao_fornecedor"
	ColPostingDate    = "data_lancamento"
	ColCurrentBalance = "saldo_atual"
)

// RawRow is one row scraped from a source report grid: an opaque mapping of
// column name to string value. Rows are produced by the extraction
// collaborator, consumed once by the Normalizer, and never retained.
type RawRow struct {
	Source        Source
	SchemaVersion int
	Fields        map[string]string
}

// Field returns the named column value, empty when absent.
func (r RawRow) Field(name string) string {
	return r.Fields[name]
}

// ExpectedSchemaVersion returns the schema version the Normalizer accepts for
// a source.
func ExpectedSchemaVersion(s Source) int {
	if s == SourceLedger {
		return LedgerSchemaVersion
	}
	return PayablesSchemaVersion
}
