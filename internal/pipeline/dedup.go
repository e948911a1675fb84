package pipeline

import (
	"strings"

	"legacyimport/internal"
)

// IdentitySets are the lower-cased emails that must not be imported again.
type IdentitySets struct {
	Imported map[string]struct{}
	Accounts map[string]struct{}
}

// Deduplicate drops records already imported, records whose email has an account,
// and repeats of an email earlier in the same input. The checks run in that order.
func Deduplicate(records []internal.MemberRecord, sets IdentitySets) ([]internal.MemberRecord, []internal.SkippedRow) {
	kept := make([]internal.MemberRecord, 0, len(records))
	var skipped []internal.SkippedRow
	seen := make(map[string]struct{}, len(records))

	for _, rec := range records {
		key := strings.ToLower(rec.Email)

		var reason internal.SkipReason
		if _, ok := sets.Imported[key]; ok {
			reason = internal.SkipAlreadyImported
		} else if _, ok := sets.Accounts[key]; ok {
			reason = internal.SkipAlreadyHasAccount
		} else if _, ok := seen[key]; ok {
			reason = internal.SkipDuplicateInFile
		}

		if reason != "" {
			skipped = append(skipped, internal.SkippedRow{
				RowNumber: rec.OriginalRow.RowNumber,
				Reason:    reason,
				Email:     rec.Email,
				Cells:     rec.OriginalRow.Cells,
			})
			continue
		}

		seen[key] = struct{}{}
		kept = append(kept, rec)
	}

	return kept, skipped
}

// NewEmailSet lower-cases and trims emails into a lookup set.
func NewEmailSet(emails ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			out[e] = struct{}{}
		}
	}
	return out
}
