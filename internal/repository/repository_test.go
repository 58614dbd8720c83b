package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PatternScope/internal/domain/models"
)

func TestMemoryHistoryAppendAndTrend(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	h := NewMemoryHistory()
	h.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, h.Append(ctx, models.PatternHistoryEntry{Symbol: "AAPL", PatternsFound: 1, Timestamp: now.AddDate(0, 0, -40)}))
	require.NoError(t, h.Append(ctx, models.PatternHistoryEntry{Symbol: "AAPL", PatternsFound: 2, Timestamp: now.AddDate(0, 0, -10)}))
	require.NoError(t, h.Append(ctx, models.PatternHistoryEntry{Symbol: "AAPL", PatternsFound: 3, Timestamp: now.AddDate(0, 0, -1)}))
	require.NoError(t, h.Append(ctx, models.PatternHistoryEntry{Symbol: "MSFT", PatternsFound: 9, Timestamp: now}))

	got, err := h.QueryTrend(ctx, "AAPL", 30)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].PatternsFound)
	assert.Equal(t, 3, got[1].PatternsFound)

	empty, err := h.QueryTrend(ctx, "TSLA", 30)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryHistorySnapshotIsStable(t *testing.T) {
	h := NewMemoryHistory()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, h.Append(ctx, models.PatternHistoryEntry{Symbol: "X", PatternsFound: 1, Timestamp: now}))
	before, err := h.QueryTrend(ctx, "X", 1)
	require.NoError(t, err)

	require.NoError(t, h.Append(ctx, models.PatternHistoryEntry{Symbol: "X", PatternsFound: 2, Timestamp: now}))
	assert.Len(t, before, 1)

	after, err := h.QueryTrend(ctx, "X", 1)
	require.NoError(t, err)
	assert.Len(t, after, 2)
}

func TestMemoryHistoryConcurrentAppends(t *testing.T) {
	h := NewMemoryHistory()
	ctx := context.Background()
	now := time.Now().UTC()

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = h.Append(ctx, models.PatternHistoryEntry{Symbol: "SPY", PatternsFound: i, Timestamp: now})
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, _ = h.QueryTrend(ctx, "SPY", 1)
			}
		}()
	}
	wg.Wait()

	got, err := h.QueryTrend(ctx, "SPY", 1)
	require.NoError(t, err)
	assert.Len(t, got, writers*perWriter)
}

type fakeProducer struct {
	topic string
	key   []byte
	value interface{}
	err   error
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	f.topic, f.key, f.value = topic, key, value
	return f.err
}

func TestKafkaReportPublisherKeysBySymbol(t *testing.T) {
	fp := &fakeProducer{}
	p := NewKafkaReportPublisher(fp, "pattern-reports")
	r := &models.PatternReport{ID: "r1", Symbol: "BTCUSD"}

	require.NoError(t, p.Publish(context.Background(), r))
	assert.Equal(t, "pattern-reports", fp.topic)
	assert.Equal(t, []byte("BTCUSD"), fp.key)
	assert.Same(t, r, fp.value)
}

func TestMultiPublisherJoinsErrors(t *testing.T) {
	ok := &fakeProducer{}
	bad := &fakeProducer{err: errors.New("broker down")}
	m := MultiPublisher{
		NewKafkaReportPublisher(ok, "a"),
		nil,
		NewKafkaReportPublisher(bad, "b"),
	}

	err := m.Publish(context.Background(), &models.PatternReport{Symbol: "ETH"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Equal(t, "a", ok.topic, "healthy publisher still receives the report")
}

func TestTrendStart(t *testing.T) {
	now := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	for _, days := range []int{1, 7, 30} {
		t.Run(fmt.Sprintf("%dd", days), func(t *testing.T) {
			assert.Equal(t, now.AddDate(0, 0, -days), trendStart(now, days))
		})
	}
}
