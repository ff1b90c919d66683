// Package amocrm is the HTTP client for the amoCRM v4 API. It hides
// transport concerns from the reconciler: bounded exponential retry for
// rate-limited and transient failures, per-call timeouts, and the _embedded
// envelope unwrapping.
package amocrm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/ZhulikovN/platform-payment-sync/internal/cache"
	"github.com/ZhulikovN/platform-payment-sync/internal/observability/tracing"
)

// searchLimit caps filter[query] result pages. amoCRM pages at 250 max; the
// platform never produces more than a handful of matches per identity signal.
const searchLimit = 50

// Config carries the client's connection and retry settings.
type Config struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration

	RetryMaxAttempts int
	RetryWaitMin     time.Duration
	RetryWaitMax     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = 3
	}
	if c.RetryWaitMin <= 0 {
		c.RetryWaitMin = 2 * time.Second
	}
	if c.RetryWaitMax <= 0 {
		c.RetryWaitMax = 10 * time.Second
	}
	return c
}

// respUserTTL bounds how long a lead's responsible user is remembered
// between the match fetch and task creation. Reassignments in the CRM
// become visible after at most this window.
const respUserTTL = 5 * time.Minute

// Client talks to one amoCRM account.
type Client struct {
	cfg       Config
	http      *http.Client
	log       *zap.Logger
	respUsers *cache.TTLCache[int64, int64]
}

// New constructs a Client.
func New(cfg Config, log *zap.Logger) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:       cfg,
		http:      tracing.WrapHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		log:       log.Named("amocrm.client"),
		respUsers: cache.NewTTLCache[int64, int64](),
	}
}

type contactsEnvelope struct {
	Embedded struct {
		Contacts []Contact `json:"contacts"`
	} `json:"_embedded"`
}

type leadsEnvelope struct {
	Embedded struct {
		Leads []Lead `json:"leads"`
	} `json:"_embedded"`
}

// SearchContacts runs a full-text search over the contact index.
func (c *Client) SearchContacts(ctx context.Context, query string) ([]Contact, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(searchLimit))

	var out contactsEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/v4/contacts", params, nil, &out); err != nil {
		return nil, err
	}
	return out.Embedded.Contacts, nil
}

// GetContact fetches one contact by id. Returns nil when the CRM reports 204.
func (c *Client) GetContact(ctx context.Context, id int64) (*Contact, error) {
	var out Contact
	path := fmt.Sprintf("/api/v4/contacts/%d", id)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	if out.ID == 0 {
		return nil, nil
	}
	return &out, nil
}

// CreateContact creates a contact and returns its id.
func (c *Client) CreateContact(ctx context.Context, contact Contact) (int64, error) {
	var out contactsEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/v4/contacts", nil, []Contact{contact}, &out); err != nil {
		return 0, err
	}
	if len(out.Embedded.Contacts) == 0 {
		return 0, fmt.Errorf("amocrm: create contact returned empty result")
	}
	return out.Embedded.Contacts[0].ID, nil
}

// UpdateContact patches a contact's custom fields.
func (c *Client) UpdateContact(ctx context.Context, id int64, fields []CustomField) error {
	if len(fields) == 0 {
		return nil
	}
	path := fmt.Sprintf("/api/v4/contacts/%d", id)
	body := map[string]any{"custom_fields_values": fields}
	return c.do(ctx, http.MethodPatch, path, nil, body, nil)
}

// SearchLeads runs a full-text search over the lead index, across all
// pipelines.
func (c *Client) SearchLeads(ctx context.Context, query string) ([]Lead, error) {
	params := url.Values{}
	params.Set("filter[query]", query)
	params.Set("limit", strconv.Itoa(searchLimit))

	var out leadsEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/v4/leads", params, nil, &out); err != nil {
		return nil, err
	}
	return out.Embedded.Leads, nil
}

// GetLead fetches one lead without embeds. Returns nil when the CRM
// reports 204.
func (c *Client) GetLead(ctx context.Context, id int64) (*Lead, error) {
	var out Lead
	path := fmt.Sprintf("/api/v4/leads/%d", id)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	if out.ID == 0 {
		return nil, nil
	}
	return &out, nil
}

// GetLeadWithContacts fetches one lead with its linked contacts embedded.
// Returns nil when the CRM reports 204.
func (c *Client) GetLeadWithContacts(ctx context.Context, id int64) (*Lead, error) {
	params := url.Values{}
	params.Set("with", "contacts")

	var out Lead
	path := fmt.Sprintf("/api/v4/leads/%d", id)
	if err := c.do(ctx, http.MethodGet, path, params, nil, &out); err != nil {
		return nil, err
	}
	if out.ID == 0 {
		return nil, nil
	}
	if out.ResponsibleUserID != 0 {
		c.respUsers.Set(out.ID, out.ResponsibleUserID, respUserTTL)
	}
	return &out, nil
}

// CreateLead creates a lead linked to a contact and returns the lead id.
func (c *Client) CreateLead(ctx context.Context, lead CreateLead) (int64, error) {
	payload := map[string]any{
		"name":        lead.Name,
		"price":       lead.Price,
		"pipeline_id": lead.PipelineID,
		"status_id":   lead.StatusID,
		"_embedded":   map[string]any{"contacts": []EntityRef{{ID: lead.ContactID}}},
	}
	if len(lead.CustomFields) > 0 {
		payload["custom_fields_values"] = lead.CustomFields
	}

	var out leadsEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/v4/leads", nil, []map[string]any{payload}, &out); err != nil {
		return 0, err
	}
	if len(out.Embedded.Leads) == 0 {
		return 0, fmt.Errorf("amocrm: create lead returned empty result")
	}
	return out.Embedded.Leads[0].ID, nil
}

// UpdateLead patches a lead's price, stage and custom fields in one call.
func (c *Client) UpdateLead(ctx context.Context, id int64, update UpdateLead) error {
	payload := map[string]any{}
	if update.Price != nil {
		payload["price"] = *update.Price
	}
	if update.StatusID != nil {
		payload["status_id"] = *update.StatusID
	}
	if len(update.CustomFields) > 0 {
		payload["custom_fields_values"] = update.CustomFields
	}
	if len(payload) == 0 {
		return nil
	}
	path := fmt.Sprintf("/api/v4/leads/%d", id)
	return c.do(ctx, http.MethodPatch, path, nil, payload, nil)
}

// AddLeadNote appends a plain-text note to a lead.
func (c *Client) AddLeadNote(ctx context.Context, leadID int64, text string) error {
	path := fmt.Sprintf("/api/v4/leads/%d/notes", leadID)
	body := []map[string]any{{
		"entity_id": leadID,
		"note_type": "common",
		"params":    map[string]any{"text": text},
	}}
	return c.do(ctx, http.MethodPost, path, nil, body, nil)
}

// CreateTaskForLeadManager creates a call task, due in one day, assigned to
// the lead's responsible user.
func (c *Client) CreateTaskForLeadManager(ctx context.Context, leadID int64, text string) (int64, error) {
	responsibleID, ok := c.respUsers.Get(leadID)
	if !ok {
		lead, err := c.GetLead(ctx, leadID)
		if err != nil {
			return 0, err
		}
		if lead != nil {
			responsibleID = lead.ResponsibleUserID
		}
		if responsibleID != 0 {
			c.respUsers.Set(leadID, responsibleID, respUserTTL)
		}
	}
	if responsibleID == 0 {
		return 0, fmt.Errorf("amocrm: lead %d has no responsible user", leadID)
	}

	task := map[string]any{
		"text":                text,
		"complete_till":       time.Now().Add(24 * time.Hour).Unix(),
		"entity_id":           leadID,
		"entity_type":         "leads",
		"responsible_user_id": responsibleID,
		"task_type_id":        1,
	}
	var out struct {
		Embedded struct {
			Tasks []EntityRef `json:"tasks"`
		} `json:"_embedded"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v4/tasks", nil, []map[string]any{task}, &out); err != nil {
		return 0, err
	}
	if len(out.Embedded.Tasks) == 0 {
		return 0, fmt.Errorf("amocrm: create task returned empty result")
	}
	return out.Embedded.Tasks[0].ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	operation := func() error {
		err := c.doOnce(ctx, method, path, query, body, out)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		c.log.Warn("amocrm call failed, retrying",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.RetryWaitMin
	policy.MaxInterval = c.cfg.RetryWaitMax
	policy.MaxElapsedTime = 0

	attempts := uint64(c.cfg.RetryMaxAttempts - 1)
	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, attempts), ctx))
}

func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	tracer := otel.Tracer("amocrm")
	ctx, span := tracer.Start(ctx, "amocrm."+method+" "+path)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	)

	endpoint := c.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return backoff.Permanent(err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
		span.SetStatus(codes.Error, apiErr.Error())
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return backoff.Permanent(fmt.Errorf("amocrm: decode response: %w", err))
	}
	return nil
}
