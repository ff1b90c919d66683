package amocrm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:          srv.URL,
		AccessToken:      "token-123",
		RetryMaxAttempts: 3,
		RetryWaitMin:     time.Millisecond,
		RetryWaitMax:     5 * time.Millisecond,
	}, zap.NewNop())
}

func TestSearchContactsDecodesEnvelope(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token-123" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.URL.Query().Get("query"); got != "79991234567" {
			t.Errorf("query = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("limit = %q", got)
		}
		w.Write([]byte(`{"_embedded":{"contacts":[
			{"id":101,"name":"Анна","custom_fields_values":[
				{"field_id":7001,"values":[{"value":"anna_tg"}]}
			]},
			{"id":102,"name":"Борис"}
		]}}`))
	}))

	contacts, err := client.SearchContacts(context.Background(), "79991234567")
	if err != nil {
		t.Fatalf("SearchContacts: %v", err)
	}
	if len(contacts) != 2 {
		t.Fatalf("got %d contacts, want 2", len(contacts))
	}
	if contacts[0].ID != 101 || contacts[1].ID != 102 {
		t.Fatalf("ids = %d, %d", contacts[0].ID, contacts[1].ID)
	}
	if got := contacts[0].FieldString(7001); got != "anna_tg" {
		t.Fatalf("FieldString(7001) = %q", got)
	}
}

func TestRetryOnRateLimitThenSuccess(t *testing.T) {
	var calls atomic.Int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"_embedded":{"leads":[{"id":55}]}}`))
	}))

	leads, err := client.SearchLeads(context.Background(), "anna_tg")
	if err != nil {
		t.Fatalf("SearchLeads: %v", err)
	}
	if len(leads) != 1 || leads[0].ID != 55 {
		t.Fatalf("leads = %+v", leads)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"title":"Bad Request"}`))
	}))

	_, err := client.SearchContacts(context.Background(), "broken")
	if err == nil {
		t.Fatal("expected error")
	}
	if IsRetryable(err) {
		t.Fatalf("400 must not be retryable: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestRetryExhaustionReturnsLastError(t *testing.T) {
	var calls atomic.Int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.SearchLeads(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestCreateLeadPayloadShape(t *testing.T) {
	var payload []map[string]any
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v4/leads" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"_embedded":{"leads":[{"id":900}]}}`))
	}))

	id, err := client.CreateLead(context.Background(), CreateLead{
		Name:       "Оплата Физика - Анна",
		Price:      13000,
		PipelineID: 10,
		StatusID:   20,
		ContactID:  101,
		CustomFields: []CustomField{
			TextField(5001, "inv-42"),
		},
	})
	if err != nil {
		t.Fatalf("CreateLead: %v", err)
	}
	if id != 900 {
		t.Fatalf("id = %d", id)
	}
	if len(payload) != 1 {
		t.Fatalf("payload batch size = %d", len(payload))
	}
	body := payload[0]
	if body["name"] != "Оплата Физика - Анна" {
		t.Errorf("name = %v", body["name"])
	}
	embedded, ok := body["_embedded"].(map[string]any)
	if !ok {
		t.Fatalf("_embedded missing: %v", body)
	}
	contacts := embedded["contacts"].([]any)
	if len(contacts) != 1 || contacts[0].(map[string]any)["id"].(float64) != 101 {
		t.Errorf("contacts = %v", contacts)
	}
	if _, ok := body["custom_fields_values"]; !ok {
		t.Error("custom_fields_values missing")
	}
}

func TestCreateTaskReusesCachedResponsibleUser(t *testing.T) {
	var leadFetches, taskPosts atomic.Int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v4/leads/900":
			leadFetches.Add(1)
			w.Write([]byte(`{"id":900,"responsible_user_id":321}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/v4/tasks":
			taskPosts.Add(1)
			var payload []map[string]any
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Errorf("decode task payload: %v", err)
			}
			if got := payload[0]["responsible_user_id"].(float64); got != 321 {
				t.Errorf("responsible_user_id = %v", got)
			}
			w.Write([]byte(`{"_embedded":{"tasks":[{"id":1}]}}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))

	for range [2]struct{}{} {
		if _, err := client.CreateTaskForLeadManager(context.Background(), 900, "call"); err != nil {
			t.Fatalf("CreateTaskForLeadManager: %v", err)
		}
	}
	if got := leadFetches.Load(); got != 1 {
		t.Fatalf("lead fetched %d times, want 1", got)
	}
	if got := taskPosts.Load(); got != 2 {
		t.Fatalf("tasks posted %d times, want 2", got)
	}
}

func TestGetContactNoContent(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	contact, err := client.GetContact(context.Background(), 404)
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if contact != nil {
		t.Fatalf("contact = %+v, want nil", contact)
	}
}

func TestUpdateLeadSkipsEmptyPatch(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty update")
	}))

	if err := client.UpdateLead(context.Background(), 1, UpdateLead{}); err != nil {
		t.Fatalf("UpdateLead: %v", err)
	}
}
