package sheets

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"legacyimport/internal/config"
)

type Connector struct {
	service *sheets.Service
}

func NewConnector(ctx context.Context, cfg config.Config) (*Connector, error) {
	if err := cfg.Require("GOOGLE_CLIENT_ID", cfg.GoogleClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GOOGLE_CLIENT_SECRET", cfg.GoogleClientSecret); err != nil {
		return nil, err
	}
	if err := cfg.Require("GOOGLE_REFRESH_TOKEN", cfg.GoogleRefreshToken); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GoogleRedirectURI,
		Scopes:       []string{sheets.SpreadsheetsReadonlyScope},
	}

	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GoogleRefreshToken})
	return NewWithOptions(ctx, option.WithTokenSource(tokenSource))
}

func NewWithOptions(ctx context.Context, opts ...option.ClientOption) (*Connector, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create sheets service")
	}
	return &Connector{service: svc}, nil
}

// ReadRange returns formatted cell values row by row. An empty range reads the first sheet.
func (c *Connector) ReadRange(ctx context.Context, spreadsheetID, readRange string) ([][]string, error) {
	if readRange == "" {
		first, err := c.firstSheet(ctx, spreadsheetID)
		if err != nil {
			return nil, err
		}
		readRange = first
	}

	resp, err := c.service.Spreadsheets.Values.Get(spreadsheetID, readRange).
		ValueRenderOption("FORMATTED_VALUE").
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, errors.Wrapf(err, "read range %q", readRange)
	}
	return valuesToGrid(resp.Values), nil
}

func (c *Connector) firstSheet(ctx context.Context, spreadsheetID string) (string, error) {
	resp, err := c.service.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return "", errors.Wrap(err, "read spreadsheet")
	}
	if len(resp.Sheets) == 0 || resp.Sheets[0].Properties == nil {
		return "", fmt.Errorf("spreadsheet %s has no sheets", spreadsheetID)
	}
	// quote the title so names with spaces resolve as a whole-sheet range
	return fmt.Sprintf("'%s'", resp.Sheets[0].Properties.Title), nil
}

func valuesToGrid(values [][]interface{}) [][]string {
	grid := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				cells[j] = fmt.Sprint(v)
			}
		}
		grid[i] = cells
	}
	return grid
}
