// Package export renders ledger reservations as Excel workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"barberbook/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	scheduleSheet = "Schedule"
	listSheet     = "Reservations"
)

var listHeaders = []string{"ID", "Barber", "Service", "Start", "End", "Customer", "Phone", "Status", "Notes"}

// Workbook builds a workbook with a barber-by-day schedule grid and a flat list
// of every reservation starting in [from, to).
func Workbook(reservations []models.Reservation, barbers []models.Barber, from, to time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(scheduleSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	if _, err := f.NewSheet(listSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	names := make(map[int64]string, len(barbers))
	for _, b := range barbers {
		names[b.ID] = b.Name
	}

	if err := writeSchedule(f, reservations, barbers, from, to); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeList(f, reservations, names); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Write renders the workbook straight to w.
func Write(w io.Writer, reservations []models.Reservation, barbers []models.Barber, from, to time.Time) error {
	f, err := Workbook(reservations, barbers, from, to)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func writeSchedule(f *excelize.File, reservations []models.Reservation, barbers []models.Barber, from, to time.Time) error {
	_ = f.SetCellValue(scheduleSheet, "A1", fmt.Sprintf("Period: %s - %s",
		from.Format("2006-01-02"), to.Add(-time.Nanosecond).Format("2006-01-02")))

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}
	cellStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}

	columns := make(map[string]int)
	col := 2
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(scheduleSheet, cell, d.Format("02.01"))
		_ = f.SetCellStyle(scheduleSheet, cell, cell, headerStyle)
		columns[d.Format("2006-01-02")] = col
		col++
	}

	rows := make(map[int64]int, len(barbers))
	for i, b := range barbers {
		row := i + 3
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(scheduleSheet, cell, b.Name)
		_ = f.SetCellStyle(scheduleSheet, cell, cell, headerStyle)
		rows[b.ID] = row
	}

	cells := make(map[string]string)
	for _, r := range reservations {
		if r.Status == models.StatusCanceled {
			continue
		}
		c, ok := columns[r.StartTime.Format("2006-01-02")]
		row, known := rows[r.BarberID]
		if !ok || !known {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(c, row)
		cells[cell] += fmt.Sprintf("%s-%s %s (%s)\n",
			r.StartTime.Format("15:04"), r.EndTime.Format("15:04"), r.CustomerName, r.ServiceName)
	}
	for cell, value := range cells {
		_ = f.SetCellValue(scheduleSheet, cell, value)
		_ = f.SetCellStyle(scheduleSheet, cell, cell, cellStyle)
	}

	_ = f.SetColWidth(scheduleSheet, "A", "A", 25)
	if col > 2 {
		last, _ := excelize.ColumnNumberToName(col - 1)
		_ = f.SetColWidth(scheduleSheet, "B", last, 30)
		_ = f.MergeCell(scheduleSheet, "A1", last+"1")
	}
	return nil
}

func writeList(f *excelize.File, reservations []models.Reservation, names map[int64]string) error {
	for i, h := range listHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(listSheet, cell, h)
	}
	for i, r := range reservations {
		barber := names[r.BarberID]
		if barber == "" {
			barber = fmt.Sprintf("#%d", r.BarberID)
		}
		values := []interface{}{
			r.ID, barber, r.ServiceName,
			r.StartTime.Format(time.RFC3339), r.EndTime.Format(time.RFC3339),
			r.CustomerName, r.CustomerPhone, r.Status, r.Notes,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(listSheet, cell, &values); err != nil {
			return fmt.Errorf("error writing row %d: %w", i+2, err)
		}
	}
	return f.AutoFilter(listSheet, fmt.Sprintf("A1:I%d", len(reservations)+1), nil)
}
