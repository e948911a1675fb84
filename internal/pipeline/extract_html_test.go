package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legacyimport/internal"
)

func TestParseHTMLGrid(t *testing.T) {
	html := `<html><body>
<table>
  <tr><th>Timestamp</th><th>Email</th><th>Name</th></tr>
  <tr><td>2025/08/22</td><td> jane@test.com </td><td>Jane <b>Doe</b></td></tr>
  <tr><td>2025/08/23</td><td>ali@test.com</td><td><table><tr><td>nested</td></tr></table></td></tr>
</table>
<table><tr><td>second table</td></tr></table>
</body></html>`

	grid, err := parseHTMLGrid([]byte(html))
	require.NoError(t, err)
	require.Len(t, grid, 3)
	assert.Equal(t, []string{"Timestamp", "Email", "Name"}, grid[0])
	assert.Equal(t, []string{"2025/08/22", "jane@test.com", "Jane Doe"}, grid[1])
	assert.Equal(t, "ali@test.com", grid[2][1])

	_, err = parseHTMLGrid([]byte("<p>no table here</p>"))
	assert.Error(t, err)
}

func TestParseCSVGrid(t *testing.T) {
	blob := []byte("\xEF\xBB\xBFTimestamp,Email,Name\n2025/08/22,jane@test.com,\"Doe, Jane\"\nshort,row\n")

	grid, err := ParseGrid("export.csv", blob, "")
	require.NoError(t, err)
	require.Len(t, grid, 3)
	assert.Equal(t, "Timestamp", grid[0][0])
	assert.Equal(t, "Doe, Jane", grid[1][2])
	assert.Equal(t, []string{"short", "row"}, grid[2])

	grid, err = ParseGrid("export.TSV", []byte("a\tb\tc\n1\t2\t3\n"), "")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"1", "2", "3"}}, grid)
}

func mkEmail(attachmentName string, attachment []byte) []byte {
	var b strings.Builder
	b.WriteString("From: Ops <ops@example.com>\r\n")
	b.WriteString("To: import@example.com\r\n")
	b.WriteString("Subject: Member export\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: multipart/mixed; boundary=\"BOUNDARY\"\r\n\r\n")
	b.WriteString("--BOUNDARY\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString("Export attached.\r\n")
	if attachmentName != "" {
		b.WriteString("--BOUNDARY\r\n")
		b.WriteString("Content-Type: application/octet-stream; name=\"" + attachmentName + "\"\r\n")
		b.WriteString("Content-Disposition: attachment; filename=\"" + attachmentName + "\"\r\n")
		b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		b.WriteString(base64.StdEncoding.EncodeToString(attachment) + "\r\n")
	}
	b.WriteString("--BOUNDARY--\r\n")
	return []byte(b.String())
}

func TestParseEmailGrid(t *testing.T) {
	csv := []byte("Timestamp,Email,Name\n2025/08/22,jane@test.com,Jane Doe\n")

	grid, err := ParseGrid("inbox/export.eml", mkEmail("members.csv", csv), "")
	require.NoError(t, err)
	require.Len(t, grid, 2)
	assert.Equal(t, "jane@test.com", grid[1][1])

	_, err = ParseGrid("export.eml", mkEmail("", nil), "")
	assert.ErrorContains(t, err, "no spreadsheet attachment")

	_, err = ParseGrid("export.eml", mkEmail("scan.pdf", []byte("%PDF")), "")
	assert.ErrorContains(t, err, "no spreadsheet attachment")
}

type fakeObjects struct {
	bucket, key string
	blob        []byte
	err         error
}

func (f *fakeObjects) FetchObject(_ context.Context, bucket, key string) ([]byte, error) {
	f.bucket, f.key = bucket, key
	return f.blob, f.err
}

type fakeSheets struct {
	id, readRange string
	grid          [][]string
}

func (f *fakeSheets) ReadRange(_ context.Context, id, readRange string) ([][]string, error) {
	f.id, f.readRange = id, readRange
	return f.grid, nil
}

func TestLoadGridRemoteSources(t *testing.T) {
	ctx := context.Background()

	objects := &fakeObjects{blob: []byte("Timestamp,Email,Name\n,a@b.com,A\n")}
	grid, kind, err := LoadGrid(ctx, "s3://legacy-exports/2025/members.csv", GridOptions{Objects: objects})
	require.NoError(t, err)
	assert.Equal(t, internal.SourceS3, kind)
	assert.Equal(t, "legacy-exports", objects.bucket)
	assert.Equal(t, "2025/members.csv", objects.key)
	assert.Len(t, grid, 2)

	objects.err = errors.New("access denied")
	_, _, err = LoadGrid(ctx, "s3://legacy-exports/members.csv", GridOptions{Objects: objects})
	assert.ErrorContains(t, err, "access denied")

	sheets := &fakeSheets{grid: [][]string{{"Timestamp"}, {"x"}}}
	grid, kind, err = LoadGrid(ctx, "gsheet://abc123/Form Responses 1!A:AC", GridOptions{Sheets: sheets})
	require.NoError(t, err)
	assert.Equal(t, internal.SourceSheet, kind)
	assert.Equal(t, "abc123", sheets.id)
	assert.Equal(t, "Form Responses 1!A:AC", sheets.readRange)
	assert.Len(t, grid, 2)

	_, _, err = LoadGrid(ctx, "gsheet://abc123", GridOptions{Sheet: "Responses", Sheets: sheets})
	require.NoError(t, err)
	assert.Equal(t, "Responses", sheets.readRange)

	for _, input := range []string{"s3://bucket-only", "s3:///key.csv", "gsheet://"} {
		_, _, err := LoadGrid(ctx, input, GridOptions{Objects: objects, Sheets: sheets})
		assert.Error(t, err, input)
	}

	_, _, err = LoadGrid(ctx, "s3://bucket/key.csv", GridOptions{})
	assert.ErrorContains(t, err, "object fetcher")
}
