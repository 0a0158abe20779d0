package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeries_Insert(t *testing.T) {
	t.Run("appends a later sample", func(t *testing.T) {
		sr := NewSeries(Sample{Time: 100, Close: 1})

		sr.Insert(Sample{Time: 160, Close: 2})

		assert.Equal(t, 2, sr.Len())
		assert.Equal(t, int64(160), sr.Last().Time)
	})

	t.Run("replaces a sample with the same time", func(t *testing.T) {
		sr := NewSeries(Sample{Time: 100, Close: 1})
		sr.Insert(Sample{Time: 160, Close: 2})

		sr.Insert(Sample{Time: 160, Close: 3})

		assert.Equal(t, []Sample{{Time: 100, Close: 1}, {Time: 160, Close: 3}}, sr.Snapshot())
	})

	t.Run("drops every sample at or after the new time", func(t *testing.T) {
		sr := NewSeries(Sample{Time: 100})
		sr.Insert(Sample{Time: 160})
		sr.Insert(Sample{Time: 220})
		sr.Insert(Sample{Time: 280})

		sr.Insert(Sample{Time: 160, Close: 9})

		assert.Equal(t, []Sample{{Time: 100}, {Time: 160, Close: 9}}, sr.Snapshot())
	})

	t.Run("snapshot is a copy", func(t *testing.T) {
		sr := NewSeries(Sample{Time: 100, Close: 1})

		snap := sr.Snapshot()
		snap[0].Close = 42

		assert.Equal(t, 1.0, sr.Last().Close)
	})
}

func TestSample_Valid(t *testing.T) {
	assert.True(t, Sample{Open: 1, High: 2, Low: 0.5, Close: 1.5}.Valid())
	assert.False(t, Sample{Open: 3, High: 2, Low: 0.5, Close: 1.5}.Valid())
	assert.False(t, Sample{Open: 1, High: 2, Low: 1.2, Close: 1.5}.Valid())
}

func TestParseActionType(t *testing.T) {
	got, err := ParseActionType("pump")
	assert.NoError(t, err)
	assert.Equal(t, ActionPump, got)

	got, err = ParseActionType("dump")
	assert.NoError(t, err)
	assert.Equal(t, ActionDump, got)

	_, err = ParseActionType("hodl")
	assert.Error(t, err)
}
