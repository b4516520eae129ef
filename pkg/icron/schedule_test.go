package icron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTriggerInfo(t *testing.T) {
	ref := time.Date(2025, 5, 10, 12, 30, 0, 0, time.UTC)

	info, err := GetTriggerInfo("0 * * * *", ref)
	require.NoError(t, err)
	assert.Equal(t, "0 * * * *", info.Expression)
	assert.Equal(t, time.Date(2025, 5, 10, 13, 0, 0, 0, time.UTC), info.Next)
	assert.Equal(t, time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC), info.Last)
	assert.Equal(t, 30*time.Minute, info.UntilNext)
	assert.Equal(t, 30*time.Minute, info.SinceLast)
}

func TestGetTriggerInfo_LastIsLatestRun(t *testing.T) {
	ref := time.Date(2025, 5, 10, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		expr string
		last time.Time
		next time.Time
	}{
		{"*/5 * * * *", time.Date(2025, 5, 10, 12, 30, 0, 0, time.UTC), time.Date(2025, 5, 10, 12, 35, 0, 0, time.UTC)},
		{"30 0 12 * * *", time.Date(2025, 5, 10, 12, 0, 30, 0, time.UTC), time.Date(2025, 5, 11, 12, 0, 30, 0, time.UTC)},
		{"@daily", time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC), time.Date(2025, 5, 11, 0, 0, 0, 0, time.UTC)},
		{"0 3 1 * *", time.Date(2025, 5, 1, 3, 0, 0, 0, time.UTC), time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			info, err := GetTriggerInfo(tt.expr, ref)
			require.NoError(t, err)
			assert.Equal(t, tt.last, info.Last)
			assert.Equal(t, tt.next, info.Next)
		})
	}
}

func TestGetTriggerInfo_NoRecentRun(t *testing.T) {
	ref := time.Date(2025, 5, 10, 12, 30, 0, 0, time.UTC)

	info, err := GetTriggerInfo("0 0 29 2 *", ref)
	require.NoError(t, err)
	assert.True(t, info.Last.IsZero())
	assert.Zero(t, info.SinceLast)
	assert.Equal(t, time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC), info.Next)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("*/15 * * * *"))
	assert.NoError(t, Validate("@every 1h"))
	assert.Error(t, Validate("not a cron"))
	assert.Error(t, Validate("61 * * * *"))

	_, err := GetTriggerInfo("not a cron", time.Now())
	assert.ErrorContains(t, err, "invalid cron expression")
}
