package mdg

import (
	"testing"

	"gapscan/internal/ingest"
	"gapscan/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeneratorValidates(t *testing.T) {
	_, err := NewGenerator(Config{})
	assert.ErrorIs(t, err, exception.ErrInvalidArgument)

	_, err = NewGenerator(Config{Symbols: []string{"A"}, MalformedRate: 2})
	assert.ErrorIs(t, err, exception.ErrInvalidArgument)
}

func TestGeneratorFirstRecordIsFull(t *testing.T) {
	g, err := NewGenerator(Config{Symbols: []string{"ABC", "DEF"}, Seed: 7})
	require.NoError(t, err)

	first := g.NextUpdate()
	assert.Equal(t, "ABC", first.Symbol)
	require.NotNil(t, first.PrevClose)
	require.NotNil(t, first.AvgVolume)
	require.NotNil(t, first.FloatShares)

	assert.Equal(t, "DEF", g.NextUpdate().Symbol)

	again := g.NextUpdate()
	assert.Equal(t, "ABC", again.Symbol)
	assert.NotNil(t, again.Price)
	assert.NotNil(t, again.Volume)
	assert.Nil(t, again.PrevClose)
	assert.Nil(t, again.News)
}

func TestGeneratorLinesDecode(t *testing.T) {
	g, err := NewGenerator(Config{Symbols: []string{"ABC", "DEF", "GHI"}, Seed: 1, GapperRate: 0.5})
	require.NoError(t, err)

	for i := 0; i < 60; i++ {
		line, err := g.Next()
		require.NoError(t, err)
		symbol, patch, err := ingest.DecodeRecord(line)
		require.NoError(t, err, string(line))
		assert.NotEmpty(t, symbol)
		assert.NotNil(t, patch.Price)
		assert.NotNil(t, patch.Volume)
	}
}

func TestGeneratorIsDeterministic(t *testing.T) {
	cfg := Config{Symbols: []string{"ABC", "DEF"}, Seed: 42, GapperRate: 0.5, MalformedRate: 0.2}
	a, err := NewGenerator(cfg)
	require.NoError(t, err)
	b, err := NewGenerator(cfg)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		la, err := a.Next()
		require.NoError(t, err)
		lb, err := b.Next()
		require.NoError(t, err)
		assert.Equal(t, la, lb)
	}
}

func TestGeneratorMalformedLinesAreDropped(t *testing.T) {
	g, err := NewGenerator(Config{Symbols: []string{"ABC"}, Seed: 3, MalformedRate: 1})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		line, err := g.Next()
		require.NoError(t, err)
		_, _, err = ingest.DecodeRecord(line)
		assert.Error(t, err, string(line))
	}
}
