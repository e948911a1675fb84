package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dimchansky/utfbom"
	"github.com/jhillyerd/enmime"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"legacyimport/internal"
)

const (
	s3Scheme     = "s3://"
	gsheetScheme = "gsheet://"
)

// ObjectFetcher downloads one object from a bucket.
type ObjectFetcher interface {
	FetchObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// RangeReader reads a cell range of a hosted spreadsheet as strings.
type RangeReader interface {
	ReadRange(ctx context.Context, spreadsheetID, readRange string) ([][]string, error)
}

type GridOptions struct {
	// Sheet selects the worksheet of a workbook; empty means the first one.
	Sheet   string
	Objects ObjectFetcher
	Sheets  RangeReader
}

// LoadGrid reads the whole legacy export into memory. Row 0 is the header row.
func LoadGrid(ctx context.Context, input string, opts GridOptions) ([][]string, internal.SourceKind, error) {
	switch {
	case strings.HasPrefix(input, s3Scheme):
		bucket, key, ok := strings.Cut(strings.TrimPrefix(input, s3Scheme), "/")
		if !ok || bucket == "" || key == "" {
			return nil, "", fmt.Errorf("malformed s3 location %q, want s3://bucket/key", input)
		}
		if opts.Objects == nil {
			return nil, "", errors.New("s3 input requires an object fetcher")
		}
		blob, err := opts.Objects.FetchObject(ctx, bucket, key)
		if err != nil {
			return nil, "", errors.Wrapf(err, "fetch %s", input)
		}
		grid, err := ParseGrid(key, blob, opts.Sheet)
		return grid, internal.SourceS3, err

	case strings.HasPrefix(input, gsheetScheme):
		id, readRange, _ := strings.Cut(strings.TrimPrefix(input, gsheetScheme), "/")
		if id == "" {
			return nil, "", fmt.Errorf("malformed sheet location %q, want gsheet://<id>[/<range>]", input)
		}
		if opts.Sheets == nil {
			return nil, "", errors.New("gsheet input requires a sheets reader")
		}
		if readRange == "" {
			readRange = opts.Sheet
		}
		grid, err := opts.Sheets.ReadRange(ctx, id, readRange)
		if err != nil {
			return nil, "", errors.Wrapf(err, "read %s", input)
		}
		return grid, internal.SourceSheet, nil
	}

	blob, err := os.ReadFile(input)
	if err != nil {
		return nil, "", errors.Wrap(err, "read input")
	}
	kind, err := kindOf(input)
	if err != nil {
		return nil, "", err
	}
	grid, err := ParseGrid(input, blob, opts.Sheet)
	return grid, kind, err
}

// ParseGrid dispatches on the file extension of name.
func ParseGrid(name string, blob []byte, sheet string) ([][]string, error) {
	kind, err := kindOf(name)
	if err != nil {
		return nil, err
	}

	switch kind {
	case internal.SourceXLSX:
		return parseXLSXGrid(blob, sheet)
	case internal.SourceCSV:
		comma := ','
		if strings.EqualFold(path.Ext(name), ".tsv") {
			comma = '\t'
		}
		return parseCSVGrid(blob, comma)
	case internal.SourceHTML:
		return parseHTMLGrid(blob)
	case internal.SourceEmail:
		return parseEmailGrid(blob, sheet)
	}
	return nil, fmt.Errorf("unsupported input type: %s", name)
}

func kindOf(name string) (internal.SourceKind, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".xlsx", ".xlsm":
		return internal.SourceXLSX, nil
	case ".csv", ".tsv":
		return internal.SourceCSV, nil
	case ".html", ".htm":
		return internal.SourceHTML, nil
	case ".eml":
		return internal.SourceEmail, nil
	}
	return "", fmt.Errorf("unsupported input type: %s", name)
}

func parseXLSXGrid(content []byte, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, errors.Wrap(err, "open workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	if sheet == "" {
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found, workbook has %s", sheet, strings.Join(sheets, ", "))
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "read sheet %s", sheet)
	}
	return rows, nil
}

func parseCSVGrid(content []byte, comma rune) ([][]string, error) {
	r := csv.NewReader(utfbom.SkipOnly(bytes.NewReader(content)))
	r.Comma = comma
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read csv")
	}
	return rows, nil
}

// parseHTMLGrid reads the first table, as written by a spreadsheet "save as web page".
func parseHTMLGrid(content []byte) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, errors.Wrap(err, "parse html")
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, errors.New("html input has no table")
	}

	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		// nested tables belong to a cell, not to the grid
		if tr.Closest("table").Get(0) != table.Get(0) {
			return
		}
		cells := []string{}
		tr.ChildrenFiltered("th,td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		rows = append(rows, cells)
	})
	return rows, nil
}

// parseEmailGrid takes the first attachment in a format ParseGrid understands,
// falling back to a table in the HTML body.
func parseEmailGrid(content []byte, sheet string) ([][]string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(content))
	if err != nil {
		return nil, errors.Wrap(err, "read email")
	}

	parts := append([]*enmime.Part{}, env.Attachments...)
	parts = append(parts, env.Inlines...)
	for _, part := range parts {
		filename := strings.TrimSpace(part.FileName)
		kind, err := kindOf(filename)
		if err != nil || kind == internal.SourceEmail {
			continue
		}
		grid, err := ParseGrid(filename, part.Content, sheet)
		if err != nil {
			return nil, errors.Wrapf(err, "attachment %s", filename)
		}
		return grid, nil
	}

	if strings.Contains(strings.ToLower(env.HTML), "<table") {
		return parseHTMLGrid([]byte(env.HTML))
	}
	return nil, fmt.Errorf("email %q has no spreadsheet attachment", env.GetHeader("Subject"))
}
