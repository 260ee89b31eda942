package audit

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"adminpanel/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func exportFixture() []models.ActivityLog {
	kind := "user"
	id := "3"
	ip := "10.0.0.1"
	return []models.ActivityLog{
		{
			ID:            1,
			User:          models.User{Username: "admin"},
			Action:        models.ActionUpdate,
			TargetType:    &kind,
			TargetID:      &id,
			TargetSummary: "ann (a@x.com)",
			Changes:       map[string]models.FieldChange{"email": {Old: "a@x.com", New: "b@x.com"}},
			Timestamp:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			IPAddress:     &ip,
			UserAgent:     "curl/8",
		},
		{
			ID:        2,
			User:      models.User{Username: "admin"},
			Action:    models.ActionLogin,
			Timestamp: time.Date(2024, 5, 1, 12, 5, 0, 0, time.UTC),
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, exportFixture()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exportColumns, rows[0])
	assert.Equal(t, "2024-05-01T12:00:00Z", rows[1][1])
	assert.Equal(t, "admin", rows[1][2])
	assert.JSONEq(t, `{"email":{"old":"a@x.com","new":"b@x.com"}}`, rows[1][7])
	assert.Equal(t, "", rows[2][4])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, exportFixture()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Activity")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "TargetSummary", rows[0][6])
	assert.Equal(t, "ann (a@x.com)", rows[1][6])
	assert.Equal(t, "login", rows[2][3])
}
