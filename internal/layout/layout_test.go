package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLayout(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layout.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultLayout(t *testing.T) {
	l := Default()

	assert.Len(t, l.Columns(), 29)
	assert.Equal(t, 0, l.Index(Timestamp))
	assert.Equal(t, 1, l.Index(Email))
	assert.Equal(t, 2, l.Index(FullName))
	assert.Equal(t, 20, l.Index(TransactionID))
	assert.Equal(t, 28, l.Index(SignatureLink))
	assert.Equal(t, -1, l.Index("nickname"))

	links := 0
	for _, name := range l.Columns() {
		if l.IsLink(name) {
			links++
		}
	}
	assert.Equal(t, 8, links)
	assert.False(t, l.IsLink(Email))
}

func TestCellOnShortRow(t *testing.T) {
	l := Default()
	cells := []string{"2025/08/22", "jane@x.com"}

	assert.Equal(t, "jane@x.com", l.Cell(cells, Email))
	assert.Equal(t, "", l.Cell(cells, FullName))
	assert.Equal(t, "", l.Cell(cells, SignatureLink))

	fields := l.Fields(cells)
	assert.Equal(t, "2025/08/22", fields[Timestamp])
	assert.Equal(t, "", fields[City])
	assert.Len(t, fields, 29)
}

func TestHeader(t *testing.T) {
	l := Default()
	assert.Equal(t, "email", l.Header(1))
	assert.Equal(t, "column_31", l.Header(30))
}

func TestLoadOverride(t *testing.T) {
	path := writeLayout(t, `
columns = ["Email", "full_name", "-", "phone", "photo_link", "signature_link"]
links = ["photo_link"]
`)

	l, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"email", "full_name", "-", "phone", "photo_link", "signature_link"}, l.Columns())
	assert.Equal(t, 0, l.Index(Email))
	assert.Equal(t, 3, l.Index(Phone))
	assert.Equal(t, -1, l.Index(Timestamp))
	assert.True(t, l.IsLink(PhotoLink))
	assert.False(t, l.IsLink(SignatureLink))
	assert.Equal(t, "column_3", l.Header(2))
}

func TestLoadOverrideDefaultsLinks(t *testing.T) {
	path := writeLayout(t, `columns = ["email", "full_name", "payment_receipt_link"]`)

	l, err := Load(path)
	require.NoError(t, err)
	assert.True(t, l.IsLink(PaymentReceiptLink))
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"unknown column":   `columns = ["email", "full_name", "nickname"]`,
		"duplicate column": `columns = ["email", "full_name", "email"]`,
		"missing email":    `columns = ["timestamp", "full_name"]`,
		"non-link link":    "columns = [\"email\", \"full_name\"]\nlinks = [\"email\"]",
		"absent link":      "columns = [\"email\", \"full_name\"]\nlinks = [\"photo_link\"]",
		"unknown key":      "columns = [\"email\", \"full_name\"]\nsheet = \"Form\"",
		"not toml":         `columns = [`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeLayout(t, body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
