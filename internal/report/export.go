package report

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// BuildReportPDF renders a daily compliance report as PDF.
func BuildReportPDF(report DailyReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Daily Temperature Compliance Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Restaurant: %s", report.RestaurantID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Day: %s", report.Day.Format("2006-01-02")))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(35, 6, "Device", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Location", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Readings", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Violations", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Min/Max (F)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Score", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, device := range report.Devices {
		name := device.Name
		if name == "" {
			name = device.DeviceID
		}
		pdf.CellFormat(35, 6, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, device.Location, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", device.Readings), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", device.Violations), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.1f / %.1f", device.MinTempF, device.MaxTempF), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%.1f", device.Score), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReportXLSX renders a daily compliance report as XLSX.
func BuildReportXLSX(report DailyReport) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "compliance"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Daily Temperature Compliance Report")
	_ = f.SetCellValue(sheet, "A2", "Restaurant")
	_ = f.SetCellValue(sheet, "B2", report.RestaurantID)
	_ = f.SetCellValue(sheet, "A3", "Day")
	_ = f.SetCellValue(sheet, "B3", report.Day.Format("2006-01-02"))

	headers := []string{"Device", "Location", "Readings", "Violations", "Min (F)", "Max (F)", "Score"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 5)
		_ = f.SetCellValue(sheet, cell, header)
	}
	for i, device := range report.Devices {
		row := i + 6
		name := device.Name
		if name == "" {
			name = device.DeviceID
		}
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), name)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), device.Location)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), device.Readings)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), device.Violations)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), device.MinTempF)
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), device.MaxTempF)
		_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", row), device.Score)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
