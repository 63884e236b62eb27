package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTaskIDFormat(t *testing.T) {
	day := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)

	require.Equal(t, "card-1-2024-03-07", TaskID("card-1", day, 0))
	require.Equal(t, "card-1-2024-03-07-2", TaskID("card-1", day, 2))
	require.Equal(t, "checklist-obj-9-2024-03-07", ChecklistID("obj-9", day))
}

func TestParseTaskIDRoundTrip(t *testing.T) {
	ids := []string{
		"T1-2024-05-01",
		"0b0c6a52-4f6e-4a2c-9f1e-2f5d8a7c1e11-2024-12-31",
		"card-2024-01-01-2024-01-02",
		"T1-2024-05-01-3",
	}

	for _, id := range ids {
		ref, err := ParseTaskID(id)
		require.NoError(t, err, id)
		require.Equal(t, id, ref.ID())
	}

	ref, err := ParseTaskID("card-2024-01-01-2024-01-02")
	require.NoError(t, err)
	require.Equal(t, "card-2024-01-01", ref.TechCardID)
	require.Equal(t, "2024-01-02", ref.DateKey())
}

func TestParseTaskIDMalformed(t *testing.T) {
	for _, id := range []string{
		"",
		"no-date",
		"-2024-05-01",
		"T1-2024-13-01",
		"T1-2024-05-01-0",
		"checklist-obj-2024-05-01",
		"T1-20240501",
	} {
		_, err := ParseTaskID(id)
		require.Error(t, err, id)
		require.True(t, errors.Is(err, ErrMalformedID), id)
	}
}
