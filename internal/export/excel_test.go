package export

import (
	"bytes"
	"testing"
	"time"

	"barberbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWorkbook(t *testing.T) {
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 2)
	barbers := []models.Barber{{ID: 1, Name: "Alex"}, {ID: 2, Name: "Sam"}}
	reservations := []models.Reservation{
		{
			ID: 1, BarberID: 1, ServiceName: "Haircut", CustomerName: "Ann", CustomerPhone: "+1",
			StartTime: from.Add(10 * time.Hour), EndTime: from.Add(10*time.Hour + 30*time.Minute), Status: models.StatusBooked,
		},
		{
			ID: 2, BarberID: 2, ServiceName: "Shave", CustomerName: "Bob", CustomerPhone: "+2",
			StartTime: from.Add(34 * time.Hour), EndTime: from.Add(35 * time.Hour), Status: models.StatusCanceled,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, reservations, barbers, from, to))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{scheduleSheet, listSheet}, f.GetSheetList())

	header, err := f.GetCellValue(scheduleSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "01.06", header)

	booked, err := f.GetCellValue(scheduleSheet, "B3")
	require.NoError(t, err)
	assert.Contains(t, booked, "10:00-10:30 Ann (Haircut)")

	// canceled reservations stay off the grid
	canceled, err := f.GetCellValue(scheduleSheet, "C4")
	require.NoError(t, err)
	assert.Empty(t, canceled)

	rows, err := f.GetRows(listSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, listHeaders, rows[0])
	assert.Equal(t, "Alex", rows[1][1])
	assert.Equal(t, models.StatusCanceled, rows[2][7])
}
