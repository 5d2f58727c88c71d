package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectorFor(t *testing.T) {
	d, err := dialectorFor("postgres", "postgres://u:p@localhost:5432/reviewhub")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = dialectorFor("mysql", "u:p@tcp(localhost:3306)/reviewhub")
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.Name())

	_, err = dialectorFor("sqlite", "file.db")
	assert.Error(t, err)

	_, err = dialectorFor("postgres", "")
	assert.Error(t, err)
}
