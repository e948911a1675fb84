package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"legacyimport/internal"
)

const DefaultBatchSize = 50

// Store is the persistence collaborator: two identity sets to check against and
// a batch insert. Each InsertMembers call is one independent unit of work.
type Store interface {
	ImportedEmails(ctx context.Context) (map[string]struct{}, error)
	AccountEmails(ctx context.Context) (map[string]struct{}, error)
	InsertMembers(ctx context.Context, records []internal.MemberRecord) error
}

// RunRecorder keeps the history of import runs.
type RunRecorder interface {
	InsertRun(ctx context.Context, run internal.RunRecord) error
}

type ImportService struct {
	store       Store
	runs        RunRecorder
	transformer *Transformer
	batchSize   int
	log         logrus.FieldLogger
	now         func() time.Time
}

func NewImportService(store Store, runs RunRecorder, transformer *Transformer, batchSize int, log logrus.FieldLogger) *ImportService {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &ImportService{
		store:       store,
		runs:        runs,
		transformer: transformer,
		batchSize:   batchSize,
		log:         log,
		now:         time.Now,
	}
}

type ImportOptions struct {
	Grid   GridOptions
	DryRun bool
}

// BatchResult is the outcome of one InsertMembers call.
type BatchResult struct {
	Number   int
	FirstRow int
	LastRow  int
	Size     int
	Err      error
}

// Outcome aggregates one run. It is reported and then discarded.
type Outcome struct {
	RunID      string
	Source     string
	Kind       internal.SourceKind
	DryRun     bool
	Records    []internal.MemberRecord
	Skipped    []internal.SkippedRow
	Batches    []BatchResult
	Valid      int
	Imported   int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Import loads input and runs it through the pipeline.
func (s *ImportService) Import(ctx context.Context, input string, opts ImportOptions) (Outcome, error) {
	grid, kind, err := LoadGrid(ctx, input, opts.Grid)
	if err != nil {
		return Outcome{}, err
	}
	s.log.WithFields(logrus.Fields{"source": input, "kind": kind, "rows": len(grid)}).Info("Loaded legacy export")

	out, err := s.Run(ctx, input, grid, opts.DryRun)
	out.Kind = kind
	return out, err
}

// Run transforms, deduplicates and persists a loaded grid. Row 0 is the header.
// An error is returned only when the identity sets cannot be read, and then nothing was written.
func (s *ImportService) Run(ctx context.Context, source string, grid [][]string, dryRun bool) (Outcome, error) {
	out := Outcome{
		RunID:     uuid.NewString(),
		Source:    source,
		DryRun:    dryRun,
		StartedAt: s.now(),
	}
	log := s.log.WithField("run", out.RunID)

	var accepted []internal.MemberRecord
	for i := 1; i < len(grid); i++ {
		res := s.transformer.Transform(internal.LegacyRow{Index: i, Cells: grid[i]})
		if res.Skip != nil {
			out.Skipped = append(out.Skipped, *res.Skip)
			continue
		}
		accepted = append(accepted, *res.Record)
	}
	out.Valid = len(accepted)

	imported, err := s.store.ImportedEmails(ctx)
	if err != nil {
		return out, errors.Wrap(err, "fetch previously imported emails")
	}
	accounts, err := s.store.AccountEmails(ctx)
	if err != nil {
		return out, errors.Wrap(err, "fetch account emails")
	}

	kept, dupes := Deduplicate(accepted, IdentitySets{Imported: imported, Accounts: accounts})
	for _, d := range dupes {
		log.WithFields(logrus.Fields{"row": d.RowNumber, "email": d.Email}).Infof("Skipping row: %s", d.Reason)
	}
	out.Skipped = append(out.Skipped, dupes...)
	out.Records = kept

	if dryRun {
		log.WithField("records", len(kept)).Info("Dry run, nothing written")
	} else {
		s.persist(ctx, log, &out)
	}

	out.FinishedAt = s.now()
	s.recordRun(ctx, log, out)
	return out, nil
}

func (s *ImportService) persist(ctx context.Context, log logrus.FieldLogger, out *Outcome) {
	for start, n := 0, 1; start < len(out.Records); start, n = start+s.batchSize, n+1 {
		end := start + s.batchSize
		if end > len(out.Records) {
			end = len(out.Records)
		}
		batch := out.Records[start:end]

		res := BatchResult{
			Number:   n,
			FirstRow: batch[0].OriginalRow.RowNumber,
			LastRow:  batch[len(batch)-1].OriginalRow.RowNumber,
			Size:     len(batch),
		}
		bl := log.WithFields(logrus.Fields{"batch": n, "size": res.Size, "rows": [2]int{res.FirstRow, res.LastRow}})

		if err := ctx.Err(); err != nil {
			res.Err = err
		} else {
			res.Err = s.store.InsertMembers(ctx, batch)
		}

		if res.Err != nil {
			out.Failed += res.Size
			bl.WithError(res.Err).Error("Batch failed")
		} else {
			out.Imported += res.Size
			bl.Info("Batch imported")
		}
		out.Batches = append(out.Batches, res)
	}
}

func (s *ImportService) recordRun(ctx context.Context, log logrus.FieldLogger, out Outcome) {
	if s.runs == nil {
		return
	}
	sum := Summarize(out)
	run := internal.RunRecord{
		ID:         out.RunID,
		Source:     out.Source,
		DryRun:     out.DryRun,
		Valid:      sum.Valid,
		Skipped:    sum.Skipped,
		Imported:   sum.Imported,
		Failed:     sum.Failed,
		Reasons:    make(map[string]int, len(sum.Reasons)),
		StartedAt:  out.StartedAt,
		FinishedAt: out.FinishedAt,
	}
	for _, r := range sum.Reasons {
		run.Reasons[string(r.Reason)] = r.Count
	}
	// history is best effort
	if err := s.runs.InsertRun(context.WithoutCancel(ctx), run); err != nil {
		log.WithError(err).Warn("Failed to record import run")
	}
}
