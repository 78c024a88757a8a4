package regent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockTimeProvider(t *testing.T) {
	start := time.Date(2025, 2, 15, 14, 30, 0, 0, time.UTC)

	p := NewMockTimeProvider(start)
	assert.Equal(t, start, p.Now())
	assert.Equal(t, start, p.Now())

	p.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), p.Now())

	p.Set(start)
	p.WithStep(time.Second)
	assert.Equal(t, start, p.Now())
	assert.Equal(t, start.Add(time.Second), p.Now())
}

func TestDefaultTimeProvider(t *testing.T) {
	before := time.Now()
	now := NewDefaultTimeProvider().Now()
	assert.False(t, now.Before(before))
}
