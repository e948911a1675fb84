package sheets

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"legacyimport/internal/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(body string) *http.Response {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(body)), Header: h}
}

func TestReadRangeFirstSheet(t *testing.T) {
	var paths []string
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		paths = append(paths, r.URL.Path)
		if strings.Contains(r.URL.Path, "/values/") {
			assert.Equal(t, "FORMATTED_VALUE", r.URL.Query().Get("valueRenderOption"))
			return jsonResponse(`{"range":"'Form Responses 1'!A1:C3","majorDimension":"ROWS","values":[["Timestamp","Email","Name"],["2025/08/22","jane@test.com"],[]]}`), nil
		}
		return jsonResponse(`{"sheets":[{"properties":{"title":"Form Responses 1"}}]}`), nil
	})

	c, err := NewWithOptions(context.Background(),
		option.WithHTTPClient(&http.Client{Transport: transport}),
		option.WithEndpoint("https://sheets.example.test/"),
	)
	require.NoError(t, err)

	grid, err := c.ReadRange(context.Background(), "sheet-id", "")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Timestamp", "Email", "Name"}, {"2025/08/22", "jane@test.com"}, {}}, grid)

	require.Len(t, paths, 2)
	assert.Equal(t, "/v4/spreadsheets/sheet-id", paths[0])
	assert.Contains(t, paths[1], "/v4/spreadsheets/sheet-id/values/")
}

func TestValuesToGrid(t *testing.T) {
	grid := valuesToGrid([][]interface{}{{"a", 3520112345671.0, nil, true}})
	assert.Equal(t, [][]string{{"a", "3.520112345671e+12", "", "true"}}, grid)
}

func TestNewConnectorRequiresCredentials(t *testing.T) {
	_, err := NewConnector(context.Background(), config.Config{GoogleClientID: "id"})
	assert.ErrorContains(t, err, "GOOGLE_CLIENT_SECRET")
}
