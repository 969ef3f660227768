package dates

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfIgnoresTimeOfDay(t *testing.T) {
	morning := time.Date(2025, 6, 1, 0, 5, 0, 0, time.UTC)
	evening := time.Date(2025, 6, 1, 23, 55, 0, 0, time.UTC)

	assert.Equal(t, Of(morning), Of(evening))
	assert.Equal(t, "2025-06-01", Of(evening).String())
}

func TestRangeInclusive(t *testing.T) {
	days := Range(MustParse("2025-01-30"), MustParse("2025-02-02"))

	require.Len(t, days, 4)
	assert.Equal(t, "2025-01-30", days[0].String())
	assert.Equal(t, "2025-02-02", days[3].String())
	assert.Nil(t, Range(MustParse("2025-02-02"), MustParse("2025-01-30")))
}

func TestDaysUntil(t *testing.T) {
	assert.Equal(t, 30, MustParse("2025-06-01").DaysUntil(MustParse("2025-07-01")))
	assert.Equal(t, -1, MustParse("2025-06-01").DaysUntil(MustParse("2025-05-31")))
}

func TestJSONRoundTrip(t *testing.T) {
	var payload struct {
		Due *Date `json:"due"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"due":"2025-06-01"}`), &payload))
	require.NotNil(t, payload.Due)
	assert.Equal(t, MustParse("2025-06-01"), *payload.Due)

	assert.Error(t, json.Unmarshal([]byte(`{"due":"06/01/2025"}`), &payload))
}

func TestScan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan("2025-06-01"))
	assert.Equal(t, "2025-06-01", d.String())

	require.NoError(t, d.Scan([]byte("2025-06-02T00:00:00Z")))
	assert.Equal(t, "2025-06-02", d.String())

	require.NoError(t, d.Scan(time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-06-03", d.String())

	assert.Error(t, d.Scan(42))
}
