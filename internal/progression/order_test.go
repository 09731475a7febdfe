package progression

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/wordsync/internal/model"
)

func TestNewSortsAndDedups(t *testing.T) {
	order, err := New([]int{8, 2, 5, 2, 1})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 5, 8}, order.Units())
	assert.Equal(t, 1, order.First())
	assert.Equal(t, 4, order.Len())
}

func TestNewRejectsEmptyAndNonPositive(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, model.ErrEmptyProgression)

	_, err = New([]int{0, 1})
	assert.Error(t, err)
}

func TestNextSkipsGaps(t *testing.T) {
	order, err := New([]int{1, 2, 5, 8})
	require.NoError(t, err)

	tests := []struct {
		after int
		want  int
	}{
		{1, 2},
		{2, 5},
		{3, 5},
		{5, 8},
		{0, 1},
	}
	for _, tt := range tests {
		got, err := order.Next(tt.after)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "after %d", tt.after)
	}

	_, err = order.Next(8)
	assert.ErrorIs(t, err, model.ErrProgressionComplete)
	_, err = order.Next(100)
	assert.ErrorIs(t, err, model.ErrProgressionComplete)
}

func TestContains(t *testing.T) {
	order := Sequential(3)

	assert.True(t, order.Contains(1))
	assert.True(t, order.Contains(3))
	assert.False(t, order.Contains(4))
	assert.False(t, order.Contains(0))
}

func TestUnitsReturnsCopy(t *testing.T) {
	order := Sequential(2)
	units := order.Units()
	units[0] = 42

	assert.Equal(t, 1, order.First())
}

func TestLoad(t *testing.T) {
	order, err := Load(strings.NewReader("units: [3, 1, 10]\n"))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 10}, order.Units())
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(strings.NewReader("units: [1]\nlevels: [2]\n"))
	assert.Error(t, err)
}

func TestLoadEmpty(t *testing.T) {
	_, err := Load(strings.NewReader(""))
	assert.ErrorIs(t, err, model.ErrEmptyProgression)

	_, err = Load(strings.NewReader("units: []\n"))
	assert.ErrorIs(t, err, model.ErrEmptyProgression)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progression.yaml")
	require.NoError(t, os.WriteFile(path, []byte("units:\n  - 1\n  - 2\n  - 4\n"), 0o600))

	order, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 4}, order.Units())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
