package domain_test

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/cadence/internal/planning/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		in       string
		expected time.Duration
		wantErr  bool
	}{
		{"07:00", 7 * time.Hour, false},
		{"07:00:01", 7*time.Hour + time.Second, false},
		{"24:00", 24 * time.Hour, false},
		{"24:01", 0, true},
		{"07:60", 0, true},
		{"seven", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := domain.ParseClockTime(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidClock)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.ClockTime(tt.expected), c)
		})
	}
}

func TestClockTime_String(t *testing.T) {
	c, err := domain.NewClockTime(9, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, "09:05", c.String())

	c, err = domain.NewClockTime(9, 5, 30)
	require.NoError(t, err)
	assert.Equal(t, "09:05:30", c.String())
}

func TestDate_At(t *testing.T) {
	d := domain.NewDate(2024, time.February, 28)

	assert.Equal(t, time.Date(2024, 2, 28, 7, 30, 0, 0, time.UTC), d.At(domain.ClockTime(7*time.Hour+30*time.Minute), time.UTC))
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), d.At(domain.ClockTime(24*time.Hour), time.UTC))
}

func TestDate_AddDays(t *testing.T) {
	d := domain.NewDate(2024, time.February, 28)

	assert.Equal(t, "2024-02-29", d.AddDays(1).String())
	assert.Equal(t, "2024-03-01", d.AddDays(2).String())
	assert.Equal(t, "2024-02-21", d.AddDays(-7).String())
}

func TestParseDate(t *testing.T) {
	d, err := domain.ParseDate("2024-03-04")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d.Weekday())

	_, err = domain.ParseDate("04/03/2024")
	assert.Error(t, err)
}
