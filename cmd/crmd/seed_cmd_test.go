package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "customers.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadCustomersCSV(t *testing.T) {
	path := writeCSV(t, "name,email,phone\nAda Lovelace,ada@example.com,+4917012345\nBob,bob@example.com,\n")

	customers, err := readCustomersCSV(path)
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, "Ada Lovelace", customers[0].Name)
	assert.Equal(t, "+4917012345", customers[0].Phone)
	assert.Empty(t, customers[1].Phone)
}

func TestReadCustomersCSVColumnOrder(t *testing.T) {
	path := writeCSV(t, "Email,Name\nada@example.com,Ada\n")

	customers, err := readCustomersCSV(path)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, "Ada", customers[0].Name)
	assert.Equal(t, "ada@example.com", customers[0].Email)
}

func TestReadCustomersCSVMissingColumn(t *testing.T) {
	path := writeCSV(t, "name,phone\nAda,+49170\n")

	_, err := readCustomersCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email")
}

func TestReadCustomersCSVShortRow(t *testing.T) {
	path := writeCSV(t, "name,email,phone\nAda,ada@example.com\n")

	customers, err := readCustomersCSV(path)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Empty(t, customers[0].Phone)
}
