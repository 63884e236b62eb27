package schedule

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFrequencyKnownForms(t *testing.T) {
	tests := []struct {
		text string
		days float64
	}{
		{"ежедневно", 1},
		{"Ежедневно ", 1},
		{"каждый день", 1},
		{"1 раз в день", 1},
		{"2 раза в день", 0.5},
		{"3 раза в день", 1.0 / 3},
		{"через день", 2},
		{"раз в неделю", 7},
		{"еженедельно", 7},
		{"2 раза в неделю", 3.5},
		{"раз в 2 недели", 14},
		{"раз в месяц", 30},
		{"2 раза в месяц", 15},
		{"ежеквартально", 90},
		{"раз в год", 365},
		{"каждые 3 дня", 3},
		{"раз в 3 месяца", 90},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := ParseFrequency(tt.text, "")
			require.Equal(t, Parsed, got.Outcome)
			require.InDelta(t, tt.days, got.Days, 1e-9)
		})
	}
}

func TestParseFrequencyFallback(t *testing.T) {
	for _, text := range []string{"", "по требованию", "0 раз в день", "???"} {
		got := ParseFrequency(text, "")
		require.Equal(t, Fallback, got.Outcome, "text %q", text)
		require.True(t, got.IsFallback())
		require.Equal(t, 1.0, got.Days)
		require.Equal(t, 4, got.MaxDelayHours)
	}
}

func TestDefaultTimeFor(t *testing.T) {
	require.Equal(t, "08:00", DefaultTimeFor("Влажная уборка пола"))
	require.Equal(t, "08:00", DefaultTimeFor("Протирка поверхностей"))
	require.Equal(t, "18:00", DefaultTimeFor("Вынос мусора"))
	require.Equal(t, "12:00", DefaultTimeFor("Проверка санузлов"))
	require.Equal(t, DefaultTime, DefaultTimeFor("Полив растений"))
}

func TestMaxDelayScalesWithCadence(t *testing.T) {
	require.Equal(t, 2, ParseFrequency("2 раза в день", "").MaxDelayHours)
	require.Equal(t, 4, ParseFrequency("ежедневно", "").MaxDelayHours)
	require.Equal(t, 24, ParseFrequency("раз в неделю", "").MaxDelayHours)
	require.Equal(t, 72, ParseFrequency("раз в месяц", "").MaxDelayHours)
	require.Equal(t, 168, ParseFrequency("ежеквартально", "").MaxDelayHours)
}

func TestBand(t *testing.T) {
	require.Equal(t, "multiple_daily", Band(0.5))
	require.Equal(t, "daily", Band(1))
	require.Equal(t, "weekly", Band(3.5))
	require.Equal(t, "weekly", Band(7))
	require.Equal(t, "monthly", Band(30))
	require.Equal(t, "quarterly", Band(90))
	require.Equal(t, "yearly", Band(365))
}
