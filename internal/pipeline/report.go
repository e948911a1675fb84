package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"legacyimport/internal"
)

type ReasonCount struct {
	Reason internal.SkipReason
	Count  int
}

// Summary is the operator-facing view of an Outcome.
type Summary struct {
	RunID         string
	Source        string
	DryRun        bool
	Valid         int
	Skipped       int
	Imported      int
	Failed        int
	Pending       int
	FailedBatches []BatchResult
	Reasons       []ReasonCount
}

var reportRenderer = goldmark.New(
	goldmark.WithExtensions(extension.Table),
	goldmark.WithRendererOptions(goldmarkHTML.WithXHTML()),
)

func Summarize(out Outcome) Summary {
	sum := Summary{
		RunID:    out.RunID,
		Source:   out.Source,
		DryRun:   out.DryRun,
		Valid:    out.Valid,
		Skipped:  len(out.Skipped),
		Imported: out.Imported,
		Failed:   out.Failed,
	}
	if out.DryRun {
		sum.Pending = len(out.Records)
	}
	for _, b := range out.Batches {
		if b.Err != nil {
			sum.FailedBatches = append(sum.FailedBatches, b)
		}
	}

	counts := map[internal.SkipReason]int{}
	for _, s := range out.Skipped {
		counts[s.Reason]++
	}
	for reason, n := range counts {
		sum.Reasons = append(sum.Reasons, ReasonCount{Reason: reason, Count: n})
	}
	sort.Slice(sum.Reasons, func(i, j int) bool {
		if sum.Reasons[i].Count != sum.Reasons[j].Count {
			return sum.Reasons[i].Count > sum.Reasons[j].Count
		}
		return sum.Reasons[i].Reason < sum.Reasons[j].Reason
	})
	return sum
}

// WriteText prints the console report.
func WriteText(w io.Writer, sum Summary) {
	fmt.Fprintf(w, "Import run %s (%s)\n", sum.RunID, sum.Source)
	if sum.DryRun {
		fmt.Fprintln(w, "Dry run: nothing was written")
	}
	fmt.Fprintf(w, "  valid:    %d\n", sum.Valid)
	fmt.Fprintf(w, "  skipped:  %d\n", sum.Skipped)
	if sum.DryRun {
		fmt.Fprintf(w, "  would import: %d\n", sum.Pending)
	} else {
		fmt.Fprintf(w, "  imported: %d\n", sum.Imported)
		fmt.Fprintf(w, "  failed:   %d\n", sum.Failed)
	}
	for _, b := range sum.FailedBatches {
		fmt.Fprintf(w, "  batch %d (rows %d-%d, %d records) failed: %v\n", b.Number, b.FirstRow, b.LastRow, b.Size, b.Err)
	}
	if len(sum.Reasons) > 0 {
		fmt.Fprintln(w, "Skip reasons:")
		for _, r := range sum.Reasons {
			fmt.Fprintf(w, "  %5d  %s\n", r.Count, r.Reason)
		}
	}
}

func RenderMarkdown(sum Summary) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# Legacy import %s\n\n", sum.RunID)
	fmt.Fprintf(&b, "Source: `%s`\n\n", sum.Source)
	if sum.DryRun {
		b.WriteString("**Dry run.** Nothing was written.\n\n")
	}

	b.WriteString("| metric | count |\n|---|---:|\n")
	fmt.Fprintf(&b, "| valid | %d |\n", sum.Valid)
	fmt.Fprintf(&b, "| skipped | %d |\n", sum.Skipped)
	if sum.DryRun {
		fmt.Fprintf(&b, "| would import | %d |\n", sum.Pending)
	} else {
		fmt.Fprintf(&b, "| imported | %d |\n", sum.Imported)
		fmt.Fprintf(&b, "| failed | %d |\n", sum.Failed)
	}

	if len(sum.FailedBatches) > 0 {
		b.WriteString("\n## Failed batches\n\n| batch | rows | records | error |\n|---:|---|---:|---|\n")
		for _, fb := range sum.FailedBatches {
			fmt.Fprintf(&b, "| %d | %d-%d | %d | %s |\n", fb.Number, fb.FirstRow, fb.LastRow, fb.Size, escapeCell(fmt.Sprint(fb.Err)))
		}
	}

	if len(sum.Reasons) > 0 {
		b.WriteString("\n## Skip reasons\n\n| reason | rows |\n|---|---:|\n")
		for _, r := range sum.Reasons {
			fmt.Fprintf(&b, "| %s | %d |\n", escapeCell(string(r.Reason)), r.Count)
		}
	}
	return []byte(b.String())
}

func RenderHTML(sum Summary) ([]byte, error) {
	var buf bytes.Buffer
	if err := reportRenderer.Convert(RenderMarkdown(sum), &buf); err != nil {
		return nil, errors.Wrap(err, "render report")
	}
	return buf.Bytes(), nil
}

// WriteReport writes Markdown, or HTML when outputPath ends in .html/.htm.
func WriteReport(sum Summary, outputPath string) error {
	var (
		body []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(outputPath)) {
	case ".html", ".htm":
		body, err = RenderHTML(sum)
		if err != nil {
			return err
		}
	default:
		body = RenderMarkdown(sum)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outputPath, body, 0o644)
}

func escapeCell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}
