package internal

import "time"

// SourceKind identifies where a legacy grid was read from.
type SourceKind string

const (
	SourceXLSX  SourceKind = "xlsx"
	SourceCSV   SourceKind = "csv"
	SourceHTML  SourceKind = "html"
	SourceEmail SourceKind = "eml"
	SourceS3    SourceKind = "s3"
	SourceSheet SourceKind = "gsheet"
)

// LegacyRow is one data row of the legacy export as it appeared in the grid.
type LegacyRow struct {
	Index int
	Cells []string
}

// RowNumber is the 1-based spreadsheet row number of the row.
func (r LegacyRow) RowNumber() int {
	return r.Index + 1
}

type SkipReason string

const (
	SkipRowTooShort       SkipReason = "Row has fewer than 3 cells"
	SkipInvalidEmail      SkipReason = "Invalid or missing email"
	SkipMissingName       SkipReason = "Missing full name"
	SkipAlreadyImported   SkipReason = "Already imported"
	SkipAlreadyHasAccount SkipReason = "Already has account"
	SkipDuplicateInFile   SkipReason = "Duplicate email in file"
)

type OriginalRow struct {
	RowNumber int               `json:"row_number"`
	Cells     []string          `json:"cells"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// MemberRecord is the normalized member ready for persistence.
type MemberRecord struct {
	ID                     string      `json:"id"`
	Email                  string      `json:"email"`
	FullName               string      `json:"full_name"`
	FatherName             *string     `json:"father_name"`
	IdentityNumber         *string     `json:"cnic"`
	Phone                  *string     `json:"phone"`
	MembershipCategory     string      `json:"membership_category"`
	Gender                 *string     `json:"gender"`
	DateOfBirth            *string     `json:"date_of_birth"`
	BloodGroup             *string     `json:"blood_group"`
	Qualification          *string     `json:"qualification"`
	HasRelevantPGDegree    bool        `json:"has_relevant_pg_degree"`
	HasNonRelevantPGDegree bool        `json:"has_non_relevant_pg_degree"`
	UndergradInstitution   *string     `json:"undergrad_institution"`
	PGInstitution          *string     `json:"pg_institution"`
	EmploymentStatus       *string     `json:"employment_status"`
	Designation            *string     `json:"designation"`
	Organization           *string     `json:"organization"`
	Address                *string     `json:"address"`
	City                   *string     `json:"city"`
	TransactionID          *string     `json:"transaction_id"`
	SubscriptionStart      *time.Time  `json:"subscription_start_date"`
	SubscriptionEnd        *time.Time  `json:"subscription_end_date"`
	OriginalRow            OriginalRow `json:"original_row"`
}

// SkippedRow is a legacy row that did not make it into the import.
type SkippedRow struct {
	RowNumber int
	Reason    SkipReason
	Email     string
	Cells     []string
}

// RunRecord summarises one import run in the local run history.
type RunRecord struct {
	ID         string
	Source     string
	DryRun     bool
	Valid      int
	Skipped    int
	Imported   int
	Failed     int
	Reasons    map[string]int
	StartedAt  time.Time
	FinishedAt time.Time
}
