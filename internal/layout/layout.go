package layout

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

const (
	Timestamp            = "timestamp"
	Email                = "email"
	FullName             = "full_name"
	FatherName           = "father_name"
	IdentityNumber       = "cnic"
	Phone                = "phone"
	MembershipCategory   = "membership_category"
	Gender               = "gender"
	DateOfBirth          = "date_of_birth"
	BloodGroup           = "blood_group"
	Qualification        = "qualification"
	RelevantPGDegree     = "relevant_pg_degree"
	NonRelevantPGDegree  = "non_relevant_pg_degree"
	UndergradInstitution = "undergrad_institution"
	PGInstitution        = "pg_institution"
	EmploymentStatus     = "employment_status"
	Designation          = "designation"
	Organization         = "organization"
	Address              = "address"
	City                 = "city"
	TransactionID        = "transaction_id"

	PhotoLink               = "photo_link"
	IdentityFrontLink       = "cnic_front_link"
	IdentityBackLink        = "cnic_back_link"
	DegreeCertificateLink   = "degree_certificate_link"
	PGDegreeCertificateLink = "pg_degree_certificate_link"
	ExperienceLetterLink    = "experience_letter_link"
	PaymentReceiptLink      = "payment_receipt_link"
	SignatureLink           = "signature_link"

	// Unused marks a column in an override file that carries nothing we read.
	Unused = "-"
)

var defaultColumns = []string{
	Timestamp, Email, FullName, FatherName, IdentityNumber, Phone, MembershipCategory, Gender,
	DateOfBirth, BloodGroup, Qualification, RelevantPGDegree, NonRelevantPGDegree,
	UndergradInstitution, PGInstitution, EmploymentStatus, Designation, Organization, Address, City,
	TransactionID,
	PhotoLink, IdentityFrontLink, IdentityBackLink, DegreeCertificateLink, PGDegreeCertificateLink,
	ExperienceLetterLink, PaymentReceiptLink, SignatureLink,
}

var defaultLinks = []string{
	PhotoLink, IdentityFrontLink, IdentityBackLink, DegreeCertificateLink, PGDegreeCertificateLink,
	ExperienceLetterLink, PaymentReceiptLink, SignatureLink,
}

// Layout maps column positions of the legacy export to field names.
type Layout struct {
	columns []string
	index   map[string]int
	links   map[string]bool
}

// Default is the column order of the legacy registration form export.
func Default() Layout {
	l, err := build(defaultColumns, defaultLinks)
	if err != nil {
		panic(err)
	}
	return l
}

type file struct {
	Columns []string `toml:"columns"`
	Links   []string `toml:"links"`
}

// Load reads a TOML override:
//
//	columns = ["timestamp", "email", "full_name", "-", ...]
//	links   = ["photo_link"]
//
// When links is omitted every known link field present in columns is treated as a link.
func Load(path string) (Layout, error) {
	var f file
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return Layout{}, errors.Wrapf(err, "read column layout %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Layout{}, fmt.Errorf("column layout %s: unknown key %q", path, undecoded[0].String())
	}

	links := f.Links
	if links == nil {
		for _, name := range f.Columns {
			if isDefaultLink(name) {
				links = append(links, name)
			}
		}
	}

	l, err := build(f.Columns, links)
	if err != nil {
		return Layout{}, errors.Wrapf(err, "column layout %s", path)
	}
	return l, nil
}

func build(columns, links []string) (Layout, error) {
	l := Layout{
		columns: make([]string, len(columns)),
		index:   make(map[string]int, len(columns)),
		links:   make(map[string]bool, len(links)),
	}

	for i, raw := range columns {
		name := strings.ToLower(strings.TrimSpace(raw))
		l.columns[i] = name
		if name == Unused {
			continue
		}
		if !isKnown(name) {
			return Layout{}, fmt.Errorf("unknown column %q at position %d", raw, i)
		}
		if _, dup := l.index[name]; dup {
			return Layout{}, fmt.Errorf("column %q listed twice", name)
		}
		l.index[name] = i
	}

	for _, required := range []string{Email, FullName} {
		if _, ok := l.index[required]; !ok {
			return Layout{}, fmt.Errorf("column %q is required", required)
		}
	}

	for _, raw := range links {
		name := strings.ToLower(strings.TrimSpace(raw))
		if !isDefaultLink(name) {
			return Layout{}, fmt.Errorf("%q is not a link field", raw)
		}
		if _, ok := l.index[name]; !ok {
			return Layout{}, fmt.Errorf("link %q is not in columns", name)
		}
		l.links[name] = true
	}

	return l, nil
}

// Columns returns the column names in position order. Unused positions read "-".
func (l Layout) Columns() []string {
	out := make([]string, len(l.columns))
	copy(out, l.columns)
	return out
}

// Index returns the position of name, or -1.
func (l Layout) Index(name string) int {
	if i, ok := l.index[name]; ok {
		return i
	}
	return -1
}

// Cell returns the named cell, or "" when the row is too short or the column is absent.
func (l Layout) Cell(cells []string, name string) string {
	i := l.Index(name)
	if i < 0 || i >= len(cells) {
		return ""
	}
	return cells[i]
}

func (l Layout) IsLink(name string) bool {
	return l.links[name]
}

// Fields maps every named column to its raw cell, for the audit payload.
func (l Layout) Fields(cells []string) map[string]string {
	out := make(map[string]string, len(l.index))
	for name, i := range l.index {
		if i < len(cells) {
			out[name] = cells[i]
		} else {
			out[name] = ""
		}
	}
	return out
}

// Header is the column name at position i, falling back to a spreadsheet-style label past the layout.
func (l Layout) Header(i int) string {
	if i < len(l.columns) && l.columns[i] != Unused {
		return l.columns[i]
	}
	return fmt.Sprintf("column_%d", i+1)
}

func isKnown(name string) bool {
	for _, c := range defaultColumns {
		if c == name {
			return true
		}
	}
	return false
}

func isDefaultLink(name string) bool {
	for _, c := range defaultLinks {
		if c == name {
			return true
		}
	}
	return false
}
