package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expcloud/azureform/internal/template"
)

func unitNamed(name string) template.Unit {
	var u template.Unit
	u.MachineName = name
	return u
}

func TestSelectUnits(t *testing.T) {
	t.Parallel()

	units := []template.Unit{unitNamed("web"), unitNamed("db")}

	t.Run("empty name keeps every unit", func(t *testing.T) {
		t.Parallel()
		selected, err := selectUnits(units, "")
		require.NoError(t, err)
		assert.Len(t, selected, 2)
	})

	t.Run("name narrows to one unit", func(t *testing.T) {
		t.Parallel()
		selected, err := selectUnits(units, "db")
		require.NoError(t, err)
		require.Len(t, selected, 1)
		assert.Equal(t, "db", selected[0].MachineName)
	})

	t.Run("unknown name fails", func(t *testing.T) {
		t.Parallel()
		_, err := selectUnits(units, "cache")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cache")
	})
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()

	_, err := loadConfig("/does/not/exist.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}
