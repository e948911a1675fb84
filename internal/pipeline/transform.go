package pipeline

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"legacyimport/internal"
	"legacyimport/internal/layout"
	"legacyimport/internal/util"
)

const (
	minCells         = 3
	subscriptionTerm = 365 * 24 * time.Hour
)

var relevantPGMarkers = []string{"mphil", "m.phil", "phd", "ph.d", "pgd", "p.g.d", "fcps"}

var noneAnswers = map[string]struct{}{
	"no": {}, "none": {}, "n/a": {}, "na": {}, "nil": {}, "-": {}, "nill": {}, "not applicable": {},
}

// RowResult is either a normalized record or the reason the row was skipped.
type RowResult struct {
	Record *internal.MemberRecord
	Skip   *internal.SkippedRow
}

type Transformer struct {
	layout layout.Layout
	loc    *time.Location
	now    func() time.Time
	newID  func() string
	log    logrus.FieldLogger
}

func NewTransformer(l layout.Layout, loc *time.Location, log logrus.FieldLogger) *Transformer {
	if loc == nil {
		loc = time.Local
	}
	return &Transformer{
		layout: l,
		loc:    loc,
		now:    time.Now,
		newID:  uuid.NewString,
		log:    log,
	}
}

// Transform normalizes one data row. It never fails: bad fields degrade to nil
// and only a missing email or name skips the row.
func (t *Transformer) Transform(row internal.LegacyRow) RowResult {
	rowNumber := row.RowNumber()
	log := t.log.WithField("row", rowNumber)

	if len(row.Cells) < minCells {
		log.Warnf("Skipping row: %s", internal.SkipRowTooShort)
		return t.skip(row, internal.SkipRowTooShort, "")
	}

	cell := func(name string) string { return t.layout.Cell(row.Cells, name) }

	email := strings.ToLower(util.CleanCell(cell(layout.Email)))
	if email == "" || !strings.Contains(email, "@") {
		log.WithField("value", email).Warnf("Skipping row: %s", internal.SkipInvalidEmail)
		return t.skip(row, internal.SkipInvalidEmail, email)
	}

	fullName := util.CleanCell(cell(layout.FullName))
	if fullName == "" {
		log.WithField("email", email).Warnf("Skipping row: %s", internal.SkipMissingName)
		return t.skip(row, internal.SkipMissingName, email)
	}

	rec := internal.MemberRecord{
		ID:                     t.newID(),
		Email:                  email,
		FullName:               fullName,
		FatherName:             util.OptionalText(cell(layout.FatherName)),
		IdentityNumber:         util.NormalizeIdentityNumber(cell(layout.IdentityNumber)),
		Phone:                  util.NormalizePhone(cell(layout.Phone)),
		Gender:                 util.OptionalText(cell(layout.Gender)),
		Qualification:          util.OptionalText(cell(layout.Qualification)),
		HasRelevantPGDegree:    hasRelevantPGDegree(cell(layout.RelevantPGDegree)),
		HasNonRelevantPGDegree: hasNonRelevantPGDegree(cell(layout.NonRelevantPGDegree)),
		UndergradInstitution:   util.OptionalText(cell(layout.UndergradInstitution)),
		PGInstitution:          util.OptionalText(cell(layout.PGInstitution)),
		EmploymentStatus:       util.OptionalText(cell(layout.EmploymentStatus)),
		Designation:            util.OptionalText(cell(layout.Designation)),
		Organization:           util.OptionalText(cell(layout.Organization)),
		Address:                util.OptionalText(cell(layout.Address)),
		City:                   util.OptionalText(cell(layout.City)),
		TransactionID:          util.OptionalText(util.RepairScientific(cell(layout.TransactionID))),
		OriginalRow: internal.OriginalRow{
			RowNumber: rowNumber,
			Cells:     append([]string(nil), row.Cells...),
			Fields:    t.layout.Fields(row.Cells),
		},
	}

	category, recognized := util.MembershipCategory(cell(layout.MembershipCategory))
	rec.MembershipCategory = category
	if !recognized {
		log.WithFields(logrus.Fields{"field": layout.MembershipCategory, "value": cell(layout.MembershipCategory)}).
			Warnf("Unrecognized category, defaulting to %s", category)
	}

	if raw := util.CleanCell(cell(layout.DateOfBirth)); raw != "" {
		if dob, ok := util.ParseDate(raw); ok {
			rec.DateOfBirth = &dob
		} else {
			log.WithFields(logrus.Fields{"field": layout.DateOfBirth, "value": raw}).Warn("Could not parse date")
		}
	}

	bloodGroup, matched := util.NormalizeBloodGroup(cell(layout.BloodGroup))
	rec.BloodGroup = bloodGroup
	if !matched {
		log.WithFields(logrus.Fields{"field": layout.BloodGroup, "value": util.Deref(bloodGroup)}).
			Debug("Unrecognized blood group kept as written")
	}

	start, ok := util.ParseSubmissionTimestamp(cell(layout.Timestamp), t.loc, t.now)
	if !ok {
		log.WithFields(logrus.Fields{"field": layout.Timestamp, "value": cell(layout.Timestamp)}).
			Warn("Could not parse submission timestamp, using current time")
	}
	if start != nil {
		end := start.Add(subscriptionTerm)
		rec.SubscriptionStart = start
		rec.SubscriptionEnd = &end
	}

	return RowResult{Record: &rec}
}

func (t *Transformer) skip(row internal.LegacyRow, reason internal.SkipReason, email string) RowResult {
	return RowResult{Skip: &internal.SkippedRow{
		RowNumber: row.RowNumber(),
		Reason:    reason,
		Email:     email,
		Cells:     append([]string(nil), row.Cells...),
	}}
}

func hasRelevantPGDegree(raw string) bool {
	s := strings.ToLower(util.CleanCell(raw))
	for _, marker := range relevantPGMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func hasNonRelevantPGDegree(raw string) bool {
	s := strings.ToLower(util.CleanCell(raw))
	if s == "" {
		return false
	}
	_, none := noneAnswers[s]
	return !none
}
