package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"legacyimport/internal"
	"legacyimport/internal/config"
)

const (
	restPath  = "/rest/v1/"
	usersPath = "/auth/v1/admin/users"
)

// Client talks to the hosted backend: a REST view over the members table and
// the auth admin API that lists accounts. Reads are retried, inserts never are.
type Client struct {
	baseURL      string
	serviceKey   string
	membersTable string
	pageSize     int

	reads   *retryablehttp.Client
	writes  *http.Client
	limiter *RateLimiter
	log     logrus.FieldLogger
}

type userPage struct {
	Users []struct {
		Email string `json:"email"`
	} `json:"users"`
}

func NewClient(cfg config.Config, log logrus.FieldLogger) (*Client, error) {
	if err := cfg.Require("HOSTED_URL", cfg.HostedURL); err != nil {
		return nil, err
	}
	if err := cfg.Require("HOSTED_SERVICE_KEY", cfg.HostedServiceKey); err != nil {
		return nil, err
	}
	if _, err := url.ParseRequestURI(cfg.HostedURL); err != nil {
		return nil, errors.Wrap(err, "HOSTED_URL")
	}

	timeout := time.Duration(cfg.HostedTimeoutMs) * time.Millisecond

	reads := retryablehttp.NewClient()
	reads.HTTPClient = &http.Client{Timeout: timeout}
	reads.RetryMax = cfg.HostedRetryMax
	reads.Logger = leveledLogger{log}

	pageSize := cfg.HostedPageSize
	if pageSize <= 0 {
		pageSize = 1000
	}

	c := &Client{
		baseURL:      strings.TrimRight(cfg.HostedURL, "/"),
		serviceKey:   cfg.HostedServiceKey,
		membersTable: cfg.MembersTable,
		pageSize:     pageSize,
		reads:        reads,
		writes:       &http.Client{Timeout: timeout},
		limiter:      NewRateLimiter(cfg.HostedRateLimitRPS),
		log:          log,
	}
	reads.RequestLogHook = c.paceRetry
	return c, nil
}

// ImportedEmails pages through the members table in email order. The server may cap
// a page below the requested limit, so only an empty page ends the scan.
func (c *Client) ImportedEmails(ctx context.Context) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	for offset := 0; ; {
		q := url.Values{}
		q.Set("select", "email")
		q.Set("order", "email.asc")
		q.Set("limit", strconv.Itoa(c.pageSize))
		q.Set("offset", strconv.Itoa(offset))

		var page []struct {
			Email string `json:"email"`
		}
		if err := c.getJSON(ctx, restPath+url.PathEscape(c.membersTable), q, &page); err != nil {
			return nil, errors.Wrapf(err, "read %s", c.membersTable)
		}
		if len(page) == 0 {
			return out, nil
		}
		for _, row := range page {
			addEmail(out, row.Email)
		}
		offset += len(page)
	}
}

// AccountEmails pages through the auth users until an empty page.
func (c *Client) AccountEmails(ctx context.Context) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(c.pageSize))

		var users userPage
		if err := c.getJSON(ctx, usersPath, q, &users); err != nil {
			return nil, errors.Wrap(err, "read auth users")
		}
		if len(users.Users) == 0 {
			return out, nil
		}
		for _, u := range users.Users {
			addEmail(out, u.Email)
		}
	}
}

// InsertMembers posts one batch. A failed batch is reported to the caller and not retried.
func (c *Client) InsertMembers(ctx context.Context, records []internal.MemberRecord) error {
	if len(records) == 0 {
		return nil
	}
	blob, err := json.Marshal(records)
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	c.log.WithField("records", len(records)).Debug("Posting member batch")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+restPath+url.PathEscape(c.membersTable), bytes.NewReader(blob))
	if err != nil {
		return err
	}
	c.authorize(req.Header)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, err := c.writes.Do(req)
	if err != nil {
		return errors.Wrapf(err, "insert %d members", len(records))
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("insert %d members: status=%d body=%s", len(records), resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	c.authorize(req.Header)
	req.Header.Set("Accept", "application/json")

	resp, err := c.reads.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("hosted api error: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}

// paceRetry runs before every read attempt; retries queue on the limiter like first attempts.
func (c *Client) paceRetry(_ retryablehttp.Logger, req *http.Request, attempt int) {
	if attempt == 0 {
		return
	}
	if err := c.limiter.Wait(req.Context()); err != nil {
		c.log.WithError(err).Debug("Retry pacing interrupted")
	}
}

func (c *Client) authorize(h http.Header) {
	h.Set("apikey", c.serviceKey)
	h.Set("Authorization", "Bearer "+c.serviceKey)
}

func addEmail(set map[string]struct{}, email string) {
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		set[email] = struct{}{}
	}
}

// leveledLogger routes retryablehttp's key/value logging into logrus.
type leveledLogger struct {
	log logrus.FieldLogger
}

func (l leveledLogger) with(kv []interface{}) logrus.FieldLogger {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return l.log.WithFields(fields)
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.with(kv).Error(msg) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.with(kv).Warn(msg) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.with(kv).Debug(msg) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.with(kv).Debug(msg) }
