package datasource

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaErrorMessage(t *testing.T) {
	err := NewSchemaError(3, "Date", "2023-13-01", errors.New("month out of range"))
	assert.Equal(t, `schema error at row 3, column "Date", value "2023-13-01": month out of range`, err.Error())

	err = MissingColumn("Gender")
	assert.Equal(t, `schema error in column "Gender": required column missing`, err.Error())
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestErrorClassification(t *testing.T) {
	src := NewSourceError("missing.csv", os.ErrNotExist)
	wrapped := fmt.Errorf("load dataset: %w", src)

	assert.True(t, IsSourceError(wrapped))
	assert.False(t, IsSchemaError(wrapped))
	assert.ErrorIs(t, wrapped, os.ErrNotExist)

	var target *DataSourceError
	require.ErrorAs(t, wrapped, &target)
	assert.Equal(t, "missing.csv", target.Path)

	schema := fmt.Errorf("derive: %w", NewSchemaError(1, "Age", "x", errors.New("not a number")))
	assert.True(t, IsSchemaError(schema))
	assert.False(t, IsSourceError(schema))
}
