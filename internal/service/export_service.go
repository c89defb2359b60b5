package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/polaris-foundation/polaris-locations-api/internal/dto"
)

// ErrExportGenerateFail reports a workbook that could not be built or written.
var ErrExportGenerateFail = errors.New("failed to generate export file")

// ExportService renders location searches as spreadsheets.
//
// The workbook has one sheet, Locations, one row per location ordered by
// display name. Parent Path lists the chain nearest first.
type ExportService interface {
	ExportLocations(ctx context.Context, q *dto.LocationSearchQuery, vis *Visibility) (*bytes.Buffer, string, error)
}

type exportService struct {
	locations LocationService
	logger    *zap.Logger
}

// NewExportService creates an ExportService over locations.
func NewExportService(locations LocationService, logger *zap.Logger) ExportService {
	return &exportService{locations: locations, logger: logger}
}

const exportSheet = "Locations"

var exportHeaders = []string{
	"UUID", "Display Name", "Type", "ODS Code", "Active", "Parent Path", "Products", "Score System",
}

func (s *exportService) ExportLocations(ctx context.Context, q *dto.LocationSearchQuery, vis *Visibility) (*bytes.Buffer, string, error) {
	full := *q
	full.Compact = false
	full.Children = false

	found, err := s.locations.Search(ctx, &full, vis)
	if err != nil {
		return nil, "", err
	}

	rows := make([]*dto.LocationResponse, 0, len(found))
	for _, loc := range found {
		if loc != nil {
			rows = append(rows, loc)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].DisplayName != rows[j].DisplayName {
			return rows[i].DisplayName < rows[j].DisplayName
		}
		return rows[i].UUID < rows[j].UUID
	})

	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(exportSheet)
	if err != nil {
		s.logger.Error("create export sheet failed", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	for i, h := range exportHeaders {
		f.SetCellValue(exportSheet, cellName(i+1, 1), h)
	}
	f.SetCellStyle(exportSheet, cellName(1, 1), cellName(len(exportHeaders), 1), headerStyle)
	f.SetColWidth(exportSheet, "A", "A", 38)
	f.SetColWidth(exportSheet, "B", "B", 30)
	f.SetColWidth(exportSheet, "F", "F", 60)

	for r, loc := range rows {
		row := r + 2
		values := []any{
			loc.UUID,
			loc.DisplayName,
			loc.LocationType,
			deref(loc.ODSCode),
			loc.Active,
			parentPath(loc.Parent),
			openProducts(loc),
			deref(loc.ScoreSystemDefault),
		}
		for c, v := range values {
			f.SetCellValue(exportSheet, cellName(c+1, row), v)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("write export workbook failed", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	return buf, filenameFor(q), nil
}

func parentPath(ref *dto.ParentRef) string {
	if ref == nil {
		return ""
	}
	var names []string
	for node := ref.Chain; node != nil; node = node.Parent {
		names = append(names, node.DisplayName)
	}
	return strings.Join(names, " > ")
}

func openProducts(loc *dto.LocationResponse) string {
	if loc.LocationDetail == nil {
		return ""
	}
	var names []string
	for _, p := range loc.Products {
		if p.ClosedDate == nil {
			names = append(names, p.ProductName)
		}
	}
	return strings.Join(names, ", ")
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// filenameFor names the attachment after the type filter, if any.
func filenameFor(q *dto.LocationSearchQuery) string {
	if len(q.LocationTypes) == 0 {
		return "locations.xlsx"
	}
	return fmt.Sprintf("locations_%s.xlsx", strings.Join(q.LocationTypes, "_"))
}
