package chrono

import (
	"auctionscout/internal/components/telemetry"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFakeClock(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := NewFakeClock(start)

	require.NoError(t, clock.Sleep(context.Background(), time.Second))
	require.NoError(t, clock.Sleep(context.Background(), 0))
	clock.Advance(time.Minute)
	require.Equal(t, start.Add(time.Minute+time.Second), clock.Now())
	require.Equal(t, []time.Duration{time.Second, 0}, clock.Sleeps())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, clock.Sleep(ctx, time.Hour), context.Canceled)
	require.Len(t, clock.Sleeps(), 2)
}

func TestStandardSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := NewStandardImpl().Sleep(ctx, time.Minute)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 10*time.Second)
}

func TestStandardCron(t *testing.T) {
	tel := telemetry.NewMemoryAPI()
	cron := NewStandardCron(tel)
	defer cron.Stop()

	require.Error(t, cron.Cron("every now and then", func() {}))

	ran := make(chan struct{}, 1)
	require.NoError(t, cron.Cron("@every 1s", func() {
		select {
		case ran <- struct{}{}:
		default:
		}
	}))

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}
}
