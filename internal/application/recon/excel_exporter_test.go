package recon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/recon/backend/internal/domain/recon"
)

func sampleReport() *Report {
	payables := decimal.RequireFromString("350.00")
	ledger := decimal.RequireFromString("400.00")
	return &Report{
		RunID:      7,
		ExecutedAt: time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC),
		Rows: []ReportRow{
			{
				PriorityRank:   1,
				Kind:           recon.KindPayablesOrphan.String(),
				VendorID:       "V002",
				VendorName:     "Beta Ltda",
				DocumentRef:    "NF-77",
				PayablesAmount: &payables,
				Delta:          decimal.RequireFromString("-350.00"),
				AgeDays:        12,
				IsNew:          true,
			},
			{
				PriorityRank:   2,
				Kind:           recon.KindAmountMismatch.String(),
				VendorID:       "V001",
				VendorName:     "Alfa SA",
				DocumentRef:    "NF-10",
				PayablesAmount: &payables,
				LedgerAmount:   &ledger,
				Delta:          decimal.RequireFromString("50.00"),
				AgeDays:        3,
				IsNew:          false,
			},
		},
		Summaries: []KindSummary{
			{Kind: recon.KindPayablesOrphan.String(), Count: 1, TotalAbsDelta: decimal.RequireFromString("350.00")},
			{Kind: recon.KindAmountMismatch.String(), Count: 1, TotalAbsDelta: decimal.RequireFromString("50.00")},
		},
	}
}

func TestExcelExporter_Build(t *testing.T) {
	t.Run("writes header, data rows, and summary block", func(t *testing.T) {
		exporter := NewExcelExporter("Divergencias")
		f, err := exporter.Build(sampleReport())
		require.NoError(t, err)
		defer f.Close()

		assert.Equal(t, "Divergencias", f.GetSheetName(0))

		cell := func(ref string) string {
			v, err := f.GetCellValue("Divergencias", ref)
			require.NoError(t, err)
			return v
		}

		assert.Equal(t, "Prioridade", cell("A1"))
		assert.Equal(t, "Diferenca", cell("H1"))
		assert.Equal(t, "Novo", cell("J1"))

		assert.Equal(t, "1", cell("A2"))
		assert.Equal(t, "PAYABLES_ORPHAN", cell("B2"))
		assert.Equal(t, "V002", cell("C2"))
		assert.Equal(t, "NF-77", cell("E2"))
		assert.Equal(t, "350", cell("F2"))
		assert.Equal(t, "", cell("G2"), "orphan has no ledger amount")
		assert.Equal(t, "-350", cell("H2"))
		assert.Equal(t, "12", cell("I2"))
		assert.Equal(t, "TRUE", cell("J2"))

		assert.Equal(t, "AMOUNT_MISMATCH", cell("B3"))
		assert.Equal(t, "400", cell("G3"))
		assert.Equal(t, "FALSE", cell("J3"))

		assert.Equal(t, "Resumo", cell("A6"))
		assert.Equal(t, "PAYABLES_ORPHAN", cell("A7"))
		assert.Equal(t, "1", cell("B7"))
		assert.Equal(t, "350", cell("C7"))
		assert.Equal(t, "AMOUNT_MISMATCH", cell("A8"))
	})

	t.Run("empty report still carries headers and summary caption", func(t *testing.T) {
		exporter := NewExcelExporter("")
		f, err := exporter.Build(&Report{RunID: 1})
		require.NoError(t, err)
		defer f.Close()

		assert.Equal(t, "Divergencias", f.GetSheetName(0))
		v, err := f.GetCellValue("Divergencias", "A1")
		require.NoError(t, err)
		assert.Equal(t, "Prioridade", v)
		v, err = f.GetCellValue("Divergencias", "A4")
		require.NoError(t, err)
		assert.Equal(t, "Resumo", v)
	})
}

func TestExcelExporter_Export(t *testing.T) {
	exporter := NewExcelExporter("Divergencias")
	path := t.TempDir() + "/report.xlsx"
	require.NoError(t, exporter.Export(sampleReport(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue("Divergencias", "C2")
	require.NoError(t, err)
	assert.Equal(t, "V002", v)
}
