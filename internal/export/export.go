// Package export renders stored access points as JSON, spreadsheet and
// plain-text tables.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/sebasr/wifi-registry/internal/models"
)

// SheetName is the worksheet holding the exported records
const SheetName = "Access Points"

// Column is one exported field
type Column struct {
	Header string
	Width  float64
	Value  func(ap *models.AccessPoint) any
}

// Columns is the spreadsheet layout, one row per record
var Columns = []Column{
	{Header: "BSSID", Width: 20, Value: func(ap *models.AccessPoint) any { return ap.BSSID }},
	{Header: "SSID", Width: 25, Value: func(ap *models.AccessPoint) any { return ap.SSID }},
	{Header: "Frequency (MHz)", Width: 16, Value: func(ap *models.AccessPoint) any { return ap.Frequency }},
	{Header: "RSSI (dBm)", Width: 12, Value: func(ap *models.AccessPoint) any { return ap.RSSI }},
	{Header: "Timestamp", Width: 14, Value: func(ap *models.AccessPoint) any { return ap.Timestamp }},
	{Header: "Channel Bandwidth", Width: 18, Value: func(ap *models.AccessPoint) any { return ap.ChannelBandwidth }},
	{Header: "Capabilities", Width: 30, Value: func(ap *models.AccessPoint) any { return ap.Capabilities }},
	{Header: "Password", Width: 18, Value: func(ap *models.AccessPoint) any { return derefString(ap.Password) }},
	{Header: "DNS Server", Width: 16, Value: func(ap *models.AccessPoint) any { return derefString(ap.DNSServer) }},
	{Header: "Gateway", Width: 16, Value: func(ap *models.AccessPoint) any { return derefString(ap.Gateway) }},
	{Header: "My IP", Width: 16, Value: func(ap *models.AccessPoint) any { return derefString(ap.MyIP) }},
	{Header: "Signal Level", Width: 12, Value: func(ap *models.AccessPoint) any { return derefInt(ap.SignalLevel) }},
	{Header: "Pavilion", Width: 10, Value: func(ap *models.AccessPoint) any { return derefInt(ap.PavilionNumber) }},
	{Header: "Floor", Width: 8, Value: func(ap *models.AccessPoint) any { return derefInt(ap.Floor) }},
}

// WriteJSON writes the records as an indented JSON array
func WriteJSON(w io.Writer, records []*models.AccessPoint) error {
	if records == nil {
		records = []*models.AccessPoint{}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	return nil
}

// WriteXLSX writes the records as a single-sheet workbook with a frozen
// header row
func WriteXLSX(w io.Writer, records []*models.AccessPoint) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, col := range Columns {
		if err := setCell(f, i+1, 1, col.Header); err != nil {
			return err
		}
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(SheetName, name, name, col.Width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	last, err := excelize.CoordinatesToCellName(len(Columns), 1)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}

	for r, ap := range records {
		for c, col := range Columns {
			value := col.Value(ap)
			if value == nil {
				continue
			}
			if err := setCell(f, c+1, r+2, value); err != nil {
				return err
			}
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellValue(SheetName, cell, value); err != nil {
		return fmt.Errorf("failed to set cell %s: %w", cell, err)
	}
	return nil
}

// tableColumns are the narrow columns shown in chat listings
var tableColumns = []struct {
	header string
	width  int
	value  func(ap *models.AccessPoint) string
}{
	{"BSSID", 17, func(ap *models.AccessPoint) string { return ap.BSSID }},
	{"SSID", 20, func(ap *models.AccessPoint) string { return ap.SSID }},
	{"RSSI", 4, func(ap *models.AccessPoint) string { return fmt.Sprint(ap.RSSI) }},
	{"FREQ", 5, func(ap *models.AccessPoint) string { return fmt.Sprint(ap.Frequency) }},
	{"TIMESTAMP", 10, func(ap *models.AccessPoint) string { return fmt.Sprint(ap.Timestamp) }},
}

// Table renders a compact pipe-separated listing, one line per record,
// truncating long values with an ellipsis
func Table(records []*models.AccessPoint) string {
	headers := make([]string, len(tableColumns))
	for i, c := range tableColumns {
		headers[i] = c.header
	}

	lines := make([]string, 0, len(records)+1)
	lines = append(lines, strings.Join(headers, " | "))
	for _, ap := range records {
		cells := make([]string, len(tableColumns))
		for i, c := range tableColumns {
			cells[i] = truncate(c.value(ap), c.width)
		}
		lines = append(lines, strings.Join(cells, " | "))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-1]) + "…"
}

func derefString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func derefInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
