package services

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/iota-uz/clientdesk/modules/clients/domain/entities/client"
	"github.com/iota-uz/clientdesk/modules/clients/domain/entities/importrow"
)

const (
	TemplateFileName = "clients_import_template.csv"
	exportPageSize   = 1000
	exportSheet      = "Clients"
	XLSXMIMEType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ExportFileName returns "clients_export_YYYY-MM-DD.<ext>".
func ExportFileName(now time.Time, ext string) string {
	return fmt.Sprintf("clients_export_%s.%s", now.Format(time.DateOnly), ext)
}

type ExportService struct {
	repo client.Repository
}

func NewExportService(repo client.Repository) *ExportService {
	return &ExportService{repo: repo}
}

// Rows lists every client of the tenant in import layout.
func (s *ExportService) Rows(ctx context.Context) ([]importrow.Row, error) {
	var out []importrow.Row
	for offset := 0; ; offset += exportPageSize {
		page, err := s.repo.List(ctx, &client.FindParams{Limit: exportPageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("list clients: %w", err)
		}
		for _, c := range page {
			out = append(out, importrow.FromClient(c))
		}
		if len(page) < exportPageSize {
			return out, nil
		}
	}
}

// CSV renders the export in the import dialect, so it can be re-imported.
func (s *ExportService) CSV(ctx context.Context) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "clients.export.csv")
	defer span.End()

	rows, err := s.Rows(ctx)
	if err != nil {
		return nil, err
	}
	return importrow.Serialize(rows), nil
}

func (s *ExportService) XLSX(ctx context.Context) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "clients.export.xlsx")
	defer span.End()

	rows, err := s.Rows(ctx)
	if err != nil {
		return nil, err
	}
	return renderXLSX(importrow.Header(), rows)
}

func renderXLSX(header []string, rows []importrow.Row) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("stream writer: %w", err)
	}

	headerCells := make([]interface{}, len(header))
	for i, h := range header {
		headerCells[i] = excelize.Cell{StyleID: bold, Value: h}
	}
	if err := sw.SetRow("A1", headerCells); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		record := row.Record()
		values := make([]interface{}, len(record))
		for j, v := range record {
			values[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("flush sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
