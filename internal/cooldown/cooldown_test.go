package cooldown_test

import (
	"testing"
	"time"

	"osrs-tracker/internal/cooldown"
	"osrs-tracker/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	cases := []struct {
		name  string
		guard cooldown.Guard
		last  *time.Time
		want  error
	}{
		{"never tracked", cooldown.NewTrackGuard(time.Minute), nil, nil},
		{"never imported", cooldown.NewImportGuard(24 * time.Hour), nil, nil},
		{"track elapsed", cooldown.NewTrackGuard(time.Minute), at(2 * time.Minute), nil},
		{"track exactly elapsed", cooldown.NewTrackGuard(time.Minute), at(time.Minute), nil},
		{"track too soon", cooldown.NewTrackGuard(time.Minute), at(10 * time.Second), domain.ErrTooSoon},
		{"import too soon", cooldown.NewImportGuard(24 * time.Hour), at(time.Hour), domain.ErrImportTooSoon},
		{"import elapsed", cooldown.NewImportGuard(24 * time.Hour), at(25 * time.Hour), nil},
		{"zero window", cooldown.NewTrackGuard(0), at(0), nil},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			err := c.guard.Check(c.last, now)
			if c.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, c.want)
		})
	}
}

func TestGuardMessages(t *testing.T) {
	t.Parallel()

	now := time.Now()
	last := now.Add(-20 * time.Second)

	err := cooldown.NewTrackGuard(time.Minute).Check(&last, now)
	assert.Equal(t, "Last update was 20 seconds ago, please wait another 40 seconds.", err.Error())

	err = cooldown.NewImportGuard(time.Hour).Check(&last, now)
	assert.Contains(t, err.Error(), domain.MsgImportTooSoon)
	assert.NotErrorIs(t, err, domain.ErrTooSoon)
}
