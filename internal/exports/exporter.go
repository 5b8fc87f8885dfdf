// Package exports builds XLSX workbooks of measurement jobs, served either
// as MinIO downloads over the API or written to disk by the export CLI.
package exports

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"measurehub_backend/internal/measurements/domain"
	"measurehub_backend/internal/measurements/repository"
	"measurehub_backend/platform/logger"
)

// SheetName is the single sheet all measurement exports use.
const SheetName = "Measurements"

const (
	exportBatchSize = 500
	cellTimeLayout  = "2006-01-02 15:04"
)

// MeasurementSource lists the jobs to export.
type MeasurementSource interface {
	List(ctx context.Context, params repository.ListParams) ([]domain.Job, int, error)
}

// NameLookup resolves user ids to display names. Implemented by the
// directory module's adapter.
type NameLookup interface {
	UserName(ctx context.Context, id int64) (string, error)
}

// Filter narrows the exported set.
type Filter struct {
	Status     *domain.Status
	MeasurerID *int64
}

// Exporter assembles measurement workbooks.
type Exporter struct {
	repo  MeasurementSource
	names NameLookup
	log   *logger.Logger
}

// NewExporter creates a measurement exporter.
func NewExporter(repo MeasurementSource, names NameLookup, log *logger.Logger) *Exporter {
	return &Exporter{repo: repo, names: names, log: log}
}

var headers = []string{
	"ID", "Lead ID", "Name", "Contact", "Phone", "Address", "Order Code",
	"Dealer", "Zone", "Status", "Assignment", "Measurer", "Confirmed By",
	"Confirmed At", "Completed At", "Created At",
}

var columnWidths = []float64{
	8, 10, 30, 20, 16, 40, 14, 18, 14, 12, 12, 20, 20, 18, 18, 18,
}

// Workbook loads all matching jobs and renders them into a workbook. The
// returned row count excludes the header. The caller owns the file and must
// Close it when done.
func (e *Exporter) Workbook(ctx context.Context, filter Filter) (*excelize.File, int, error) {
	jobs, err := e.loadAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	f := excelize.NewFile()
	index, err := f.NewSheet(SheetName)
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("drop default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := e.writeHeader(f); err != nil {
		f.Close()
		return nil, 0, err
	}

	nameCache := make(map[int64]string)
	for i, job := range jobs {
		if err := e.writeRow(ctx, f, i+2, job, nameCache); err != nil {
			f.Close()
			return nil, 0, err
		}
	}

	e.log.Info("export workbook built", "rows", len(jobs))
	return f, len(jobs), nil
}

// loadAll pages through the repository until the listing is exhausted.
func (e *Exporter) loadAll(ctx context.Context, filter Filter) ([]domain.Job, error) {
	params := repository.ListParams{
		Status:     filter.Status,
		MeasurerID: filter.MeasurerID,
		Limit:      exportBatchSize,
	}

	var jobs []domain.Job
	for {
		page, _, err := e.repo.List(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("list measurements: %w", err)
		}
		jobs = append(jobs, page...)
		if len(page) < exportBatchSize {
			return jobs, nil
		}
		params.Offset += exportBatchSize
	}
}

func (e *Exporter) writeHeader(f *excelize.File) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(SheetName, cell, header); err != nil {
			return fmt.Errorf("set header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(SheetName, cell, cell, style); err != nil {
			return fmt.Errorf("style header %s: %w", cell, err)
		}

		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("column name: %w", err)
		}
		if err := f.SetColWidth(SheetName, name, name, columnWidths[col]); err != nil {
			return fmt.Errorf("set column width %s: %w", name, err)
		}
	}
	return nil
}

func (e *Exporter) writeRow(ctx context.Context, f *excelize.File, row int, job domain.Job, nameCache map[int64]string) error {
	values := []interface{}{
		job.ID,
		job.ExternalLeadID,
		job.Name,
		job.ContactName,
		job.ContactPhone,
		job.Address,
		strOrEmpty(job.OrderCode),
		strOrEmpty(job.DealerName),
		strOrEmpty(job.ZoneHint),
		string(job.Status),
		string(job.AssignmentReason),
		e.userName(ctx, job.AssignedMeasurerID, nameCache),
		e.userName(ctx, job.ConfirmedByUserID, nameCache),
		timeOrEmpty(job.ConfirmedAt),
		timeOrEmpty(job.CompletedAt),
		job.CreatedAt.Format(cellTimeLayout),
	}

	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("row cell: %w", err)
		}
		if err := f.SetCellValue(SheetName, cell, value); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	return nil
}

// userName resolves the user's display name, falling back to the raw id
// when the directory lookup fails.
func (e *Exporter) userName(ctx context.Context, id *int64, cache map[int64]string) string {
	if id == nil {
		return ""
	}
	if name, ok := cache[*id]; ok {
		return name
	}

	name, err := e.names.UserName(ctx, *id)
	if err != nil || name == "" {
		name = "#" + strconv.FormatInt(*id, 10)
	}
	cache[*id] = name
	return name
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func timeOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(cellTimeLayout)
}
