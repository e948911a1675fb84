package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"legacyimport/internal"
	"legacyimport/internal/config"
)

var reIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

var memberColumns = []string{
	"id", "email", "full_name", "father_name", "cnic", "phone", "membership_category", "gender",
	"date_of_birth", "blood_group", "qualification", "has_relevant_pg_degree", "has_non_relevant_pg_degree",
	"undergrad_institution", "pg_institution", "employment_status", "designation", "organization",
	"address", "city", "transaction_id", "subscription_start_date", "subscription_end_date", "original_row",
}

// Tables names the member and account tables. They may already exist in a shared database.
type Tables struct {
	Members             string
	Accounts            string
	AccountsEmailColumn string
}

type DB struct {
	conn   *sql.DB
	flavor sqlbuilder.Flavor
	tables Tables
}

func TablesFromConfig(cfg config.Config) Tables {
	return Tables{
		Members:             cfg.MembersTable,
		Accounts:            cfg.AccountsTable,
		AccountsEmailColumn: cfg.AccountsEmailColumn,
	}
}

// Open connects to sqlite at DB_PATH, or to DATABASE_URL when DB_DRIVER=postgres, and creates missing tables.
func Open(cfg config.Config) (*DB, error) {
	tables := TablesFromConfig(cfg)
	if err := tables.validate(); err != nil {
		return nil, err
	}

	var (
		conn *sql.DB
		err  error
	)
	switch cfg.DBDriver {
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, err
		}
		conn, err = sql.Open("sqlite", cfg.DBPath)
		if err != nil {
			return nil, err
		}
		if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
			_ = conn.Close()
			return nil, err
		}
	case config.DriverPostgres:
		if err := cfg.Require("DATABASE_URL", cfg.DatabaseURL); err != nil {
			return nil, err
		}
		conn, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := conn.Ping(); err != nil {
			_ = conn.Close()
			return nil, errors.Wrap(err, "connect to postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db := NewWithConn(conn, cfg.DBDriver, tables)
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "create schema")
	}
	return db, nil
}

// NewWithConn wraps an open connection without touching the schema.
func NewWithConn(conn *sql.DB, driver string, tables Tables) *DB {
	flavor := sqlbuilder.SQLite
	if driver == config.DriverPostgres {
		flavor = sqlbuilder.PostgreSQL
	}
	return &DB{conn: conn, flavor: flavor, tables: tables}
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (t Tables) validate() error {
	for name, v := range map[string]string{
		"MEMBERS_TABLE":         t.Members,
		"ACCOUNTS_TABLE":        t.Accounts,
		"ACCOUNTS_EMAIL_COLUMN": t.AccountsEmailColumn,
	} {
		if !reIdentifier.MatchString(v) {
			return fmt.Errorf("%s %q is not a valid identifier", name, v)
		}
	}
	return nil
}

func (d *DB) init() error {
	schema := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  full_name TEXT NOT NULL,
  father_name TEXT,
  cnic TEXT,
  phone TEXT,
  membership_category TEXT NOT NULL,
  gender TEXT,
  date_of_birth TEXT,
  blood_group TEXT,
  qualification TEXT,
  has_relevant_pg_degree BOOLEAN NOT NULL DEFAULT FALSE,
  has_non_relevant_pg_degree BOOLEAN NOT NULL DEFAULT FALSE,
  undergrad_institution TEXT,
  pg_institution TEXT,
  employment_status TEXT,
  designation TEXT,
  organization TEXT,
  address TEXT,
  city TEXT,
  transaction_id TEXT,
  subscription_start_date TEXT,
  subscription_end_date TEXT,
  original_row TEXT NOT NULL,
  imported_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS %[2]s (
  %[3]s TEXT PRIMARY KEY,
  created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS import_runs (
  id TEXT PRIMARY KEY,
  source TEXT NOT NULL,
  dry_run BOOLEAN NOT NULL DEFAULT FALSE,
  valid INTEGER NOT NULL,
  skipped INTEGER NOT NULL,
  imported INTEGER NOT NULL,
  failed INTEGER NOT NULL,
  reasons_json TEXT NOT NULL,
  started_at TEXT NOT NULL,
  finished_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`, d.tables.Members, d.tables.Accounts, d.tables.AccountsEmailColumn)

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := d.conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ImportedEmails returns the lower-cased emails already in the members table.
func (d *DB) ImportedEmails(ctx context.Context) (map[string]struct{}, error) {
	emails, err := d.emailSet(ctx, d.tables.Members, "email")
	return emails, errors.Wrapf(err, "read %s", d.tables.Members)
}

// AccountEmails returns the lower-cased emails of active accounts.
func (d *DB) AccountEmails(ctx context.Context) (map[string]struct{}, error) {
	emails, err := d.emailSet(ctx, d.tables.Accounts, d.tables.AccountsEmailColumn)
	return emails, errors.Wrapf(err, "read %s", d.tables.Accounts)
}

func (d *DB) emailSet(ctx context.Context, table, column string) (map[string]struct{}, error) {
	sb := d.flavor.NewSelectBuilder().Select(column).From(table)
	sb.Where(sb.IsNotNull(column))
	query, args := sb.Build()

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
			out[email] = struct{}{}
		}
	}
	return out, rows.Err()
}

// InsertMembers writes the batch as one multi-row INSERT; it succeeds or fails as a whole.
func (d *DB) InsertMembers(ctx context.Context, records []internal.MemberRecord) error {
	if len(records) == 0 {
		return nil
	}

	ib := d.flavor.NewInsertBuilder().InsertInto(d.tables.Members).Cols(memberColumns...)
	for _, r := range records {
		original, err := json.Marshal(r.OriginalRow)
		if err != nil {
			return errors.Wrapf(err, "encode row %d", r.OriginalRow.RowNumber)
		}
		ib.Values(
			r.ID, r.Email, r.FullName, r.FatherName, r.IdentityNumber, r.Phone, r.MembershipCategory, r.Gender,
			r.DateOfBirth, r.BloodGroup, r.Qualification, r.HasRelevantPGDegree, r.HasNonRelevantPGDegree,
			r.UndergradInstitution, r.PGInstitution, r.EmploymentStatus, r.Designation, r.Organization,
			r.Address, r.City, r.TransactionID, formatTime(r.SubscriptionStart), formatTime(r.SubscriptionEnd),
			string(original),
		)
	}

	query, args := ib.Build()
	if _, err := d.conn.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrapf(err, "insert %d members", len(records))
	}
	return nil
}

// AddAccounts registers active-account emails; existing ones are left alone.
func (d *DB) AddAccounts(ctx context.Context, emails []string) (int, error) {
	ib := d.flavor.NewInsertBuilder().InsertInto(d.tables.Accounts).Cols(d.tables.AccountsEmailColumn)
	n := 0
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			ib.Values(e)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}

	query, args := ib.Build()
	res, err := d.conn.ExecContext(ctx, query+" ON CONFLICT DO NOTHING", args...)
	if err != nil {
		return 0, errors.Wrap(err, "insert accounts")
	}
	added, err := res.RowsAffected()
	if err != nil {
		return n, nil
	}
	return int(added), nil
}

func (d *DB) InsertRun(ctx context.Context, run internal.RunRecord) error {
	reasons, _ := json.Marshal(run.Reasons)

	ib := d.flavor.NewInsertBuilder().InsertInto("import_runs").
		Cols("id", "source", "dry_run", "valid", "skipped", "imported", "failed", "reasons_json", "started_at", "finished_at").
		Values(run.ID, run.Source, run.DryRun, run.Valid, run.Skipped, run.Imported, run.Failed, string(reasons),
			run.StartedAt.UTC().Format(time.RFC3339Nano), run.FinishedAt.UTC().Format(time.RFC3339Nano))

	query, args := ib.Build()
	_, err := d.conn.ExecContext(ctx, query, args...)
	return errors.Wrap(err, "insert import run")
}

// ListRuns returns the most recent runs first.
func (d *DB) ListRuns(ctx context.Context, limit int) ([]internal.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	sb := d.flavor.NewSelectBuilder().
		Select("id", "source", "dry_run", "valid", "skipped", "imported", "failed", "reasons_json", "started_at", "finished_at").
		From("import_runs").
		OrderBy("started_at").Desc().
		Limit(limit)
	query, args := sb.Build()

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RunRecord
	for rows.Next() {
		var (
			run               internal.RunRecord
			reasons           string
			started, finished string
		)
		if err := rows.Scan(&run.ID, &run.Source, &run.DryRun, &run.Valid, &run.Skipped, &run.Imported, &run.Failed,
			&reasons, &started, &finished); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(reasons), &run.Reasons)
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		out = append(out, run)
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(ctx context.Context, key, value string) error {
	query, args := sqlbuilder.Buildf(`
INSERT INTO metadata (key, value) VALUES (%v, %v)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
`, key, value).BuildWithFlavor(d.flavor)
	_, err := d.conn.ExecContext(ctx, query, args...)
	return err
}

func (d *DB) GetMetadata(ctx context.Context, key string) (*string, error) {
	sb := d.flavor.NewSelectBuilder().Select("value").From("metadata")
	sb.Where(sb.Equal("key", key))
	query, args := sb.Build()

	var value string
	err := d.conn.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
