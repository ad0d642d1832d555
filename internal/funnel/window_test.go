package funnel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSinceToday(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	midnight := time.Date(2024, 3, 10, 0, 0, 0, 0, loc)
	for _, hour := range []int{0, 1, 12, 23} {
		now := time.Date(2024, 3, 10, hour, 17, 42, 0, loc)
		assert.True(t, Since(1, now).Equal(midnight), "hour %d", hour)
	}
}

func TestSinceRolling(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, now.Add(-7*24*time.Hour), Since(7, now))
	assert.Equal(t, now.Add(-30*24*time.Hour), Since(30, now))
}

func TestParseDays(t *testing.T) {
	assert.Equal(t, 7, ParseDays("7"))
	assert.Equal(t, 1, ParseDays(" 1 "))
	assert.Equal(t, DefaultDays, ParseDays(""))
	assert.Equal(t, DefaultDays, ParseDays("week"))
	assert.Equal(t, DefaultDays, ParseDays("0"))
	assert.Equal(t, DefaultDays, ParseDays("-3"))
}

func TestCompletion(t *testing.T) {
	assert.InDelta(t, 66.666, Completion(2, 3), 0.001)
	assert.Equal(t, float64(0), Completion(3, 0))
	assert.Equal(t, float64(25), Completion(2, 8))
	assert.Equal(t, float64(150), Completion(3, 2))
}

func TestBucketOf(t *testing.T) {
	assert.Equal(t, BucketHigh, BucketOf(90))
	assert.Equal(t, BucketHigh, BucketOf(100))
	assert.Equal(t, BucketMedium, BucketOf(89.99))
	assert.Equal(t, BucketMedium, BucketOf(50))
	assert.Equal(t, BucketLow, BucketOf(12.5))
	assert.Equal(t, BucketNone, BucketOf(0))
}

func TestFirstGap(t *testing.T) {
	order := []string{"1", "2", "3"}
	assert.Equal(t, 1, FirstGap(order, []string{"1", "3"}))
	assert.Equal(t, 0, FirstGap(order, nil))
	assert.Equal(t, 2, FirstGap(order, []string{"2", "1"}))
	assert.Equal(t, -1, FirstGap(order, []string{"3", "2", "1"}))
}
