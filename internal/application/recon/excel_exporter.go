package recon

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// reportHeaders are the spreadsheet column captions, in the vocabulary the
// finance team reads.
var reportHeaders = []string{
	"Prioridade",
	"Tipo",
	"Fornecedor",
	"Nome Fornecedor",
	"Documento",
	"Valor Financeiro",
	"Valor Contabil",
	"Diferenca",
	"Dias",
	"Novo",
}

// ExcelExporter writes a Report to an xlsx workbook: one row per discrepancy
// in priority order, followed by a per-kind summary block.
type ExcelExporter struct {
	sheetName string
}

// NewExcelExporter creates an exporter writing to the named sheet.
func NewExcelExporter(sheetName string) *ExcelExporter {
	if sheetName == "" {
		sheetName = "Divergencias"
	}
	return &ExcelExporter{sheetName: sheetName}
}

// Export builds the workbook and saves it to path.
func (e *ExcelExporter) Export(report *Report, path string) error {
	f, err := e.Build(report)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report workbook: %w", err)
	}
	return nil
}

// Build renders the report into an in-memory workbook.
func (e *ExcelExporter) Build(report *Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", e.sheetName); err != nil {
		f.Close()
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	for col, caption := range reportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetCellValue(e.sheetName, cell, caption); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetCellStyle(e.sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, err
		}
	}

	for i, row := range report.Rows {
		values := []any{
			row.PriorityRank,
			row.Kind,
			row.VendorID,
			row.VendorName,
			row.DocumentRef,
			nil,
			nil,
			row.Delta.InexactFloat64(),
			row.AgeDays,
			row.IsNew,
		}
		if row.PayablesAmount != nil {
			values[5] = row.PayablesAmount.InexactFloat64()
		}
		if row.LedgerAmount != nil {
			values[6] = row.LedgerAmount.InexactFloat64()
		}
		if err := e.setRow(f, i+2, values); err != nil {
			f.Close()
			return nil, err
		}
	}

	// Summary block two rows below the data.
	summaryRow := len(report.Rows) + 4
	if err := e.setRow(f, summaryRow, []any{"Resumo"}); err != nil {
		f.Close()
		return nil, err
	}
	cell, err := excelize.CoordinatesToCellName(1, summaryRow)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetCellStyle(e.sheetName, cell, cell, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	for i, summary := range report.Summaries {
		values := []any{summary.Kind, summary.Count, summary.TotalAbsDelta.InexactFloat64()}
		if err := e.setRow(f, summaryRow+1+i, values); err != nil {
			f.Close()
			return nil, err
		}
	}

	return f, nil
}

func (e *ExcelExporter) setRow(f *excelize.File, row int, values []any) error {
	for col, v := range values {
		if v == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(e.sheetName, cell, v); err != nil {
			return err
		}
	}
	return nil
}
