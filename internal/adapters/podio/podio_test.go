package podio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mikey/makerlab-autoreply/internal/config"
	"github.com/mikey/makerlab-autoreply/internal/core"
	"github.com/mikey/makerlab-autoreply/internal/throttle"
	"github.com/mikey/makerlab-autoreply/internal/utils"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

func item(id int64, created, subject, body, name, mail string) map[string]any {
	return map[string]any{
		"item_id":    id,
		"created_on": created,
		"fields": []any{
			map[string]any{"external_id": "title", "values": []any{map[string]any{"value": subject}}},
			map[string]any{"external_id": "body", "values": []any{map[string]any{"value": body}}},
			map[string]any{"external_id": "from", "values": []any{map[string]any{"value": map[string]any{
				"name": name,
				"mail": []string{mail},
			}}}},
			map[string]any{"external_id": "status", "values": []any{map[string]any{"value": map[string]any{"text": "New", "id": 1}}}},
		},
	}
}

type fakePodio struct {
	mu       sync.Mutex
	items    []map[string]any
	comments map[string][]map[string]any
	posted   map[string][]string
	offsets  []int
	authFail bool
	listCode int
}

func newFakePodio(t *testing.T, f *fakePodio) *httptest.Server {
	t.Helper()
	if f.comments == nil {
		f.comments = map[string][]map[string]any{}
	}
	f.posted = map[string][]string{}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if f.authFail || r.Form.Get("grant_type") != "password" || r.Form.Get("client_id") != "cid" || r.Form.Get("password") != "secret" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok","token_type":"bearer","refresh_token":"ref","expires_in":28800}`)
	})
	mux.HandleFunc("POST /item/app/{app}/filter/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "OAuth2 tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req struct {
			Limit    int    `json:"limit"`
			Offset   int    `json:"offset"`
			SortBy   string `json:"sort_by"`
			SortDesc bool   `json:"sort_desc"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SortBy != "created_on" || !req.SortDesc {
			http.Error(w, "bad filter", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.offsets = append(f.offsets, req.Offset)
		f.mu.Unlock()

		end := min(req.Offset+req.Limit, len(f.items))
		page := []map[string]any{}
		if req.Offset < len(f.items) {
			page = f.items[req.Offset:end]
		}
		json.NewEncoder(w).Encode(map[string]any{"total": len(f.items), "items": page})
	})
	mux.HandleFunc("GET /comment/item/{id}/", func(w http.ResponseWriter, r *http.Request) {
		if f.listCode != 0 {
			w.WriteHeader(f.listCode)
			fmt.Fprint(w, `{"error":"boom"}`)
			return
		}
		comments := f.comments[r.PathValue("id")]
		if comments == nil {
			comments = []map[string]any{}
		}
		json.NewEncoder(w).Encode(comments)
	})
	mux.HandleFunc("POST /comment/item/{id}/", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Value string `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.posted[r.PathValue("id")] = append(f.posted[r.PathValue("id")], req.Value)
		f.mu.Unlock()
		fmt.Fprint(w, `{"comment_id":99}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakePodio) pageOffsets() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.offsets...)
}

func testConfig(baseURL string) config.PodioConfig {
	return config.PodioConfig{
		BaseURL:       baseURL,
		ClientID:      "cid",
		ClientSecret:  "csecret",
		Username:      "bot@example.com",
		Password:      "secret",
		AppID:         12703942,
		PageSize:      2,
		Location:      time.UTC,
		ItemURLFormat: "https://podio.example/items/%d",
	}
}

func TestAuthenticateFailure(t *testing.T) {
	srv := newFakePodio(t, &fakePodio{authFail: true})
	_, err := NewClient(context.Background(), testConfig(srv.URL), zap.NewNop())
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("error = %v, want ErrAuth", err)
	}
}

func TestAuthenticateMissingCredentials(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.ClientID = ""
	if _, err := NewClient(context.Background(), cfg, zap.NewNop()); !errors.Is(err, ErrAuth) {
		t.Fatalf("error = %v, want ErrAuth", err)
	}
}

func TestSourceMessages(t *testing.T) {
	fake := &fakePodio{items: []map[string]any{
		item(5, "2026-03-09 10:00:00", "Summer camp pricing?", "<p>How much   is <b>camp</b>?</p>", "jane doe", "jane@example.com"),
		item(4, "not a date", "Broken", "", "x", "x@example.com"),
		item(3, "2026-03-08 09:00:00", "Lab hours", "When are you open?", "Bob", "bob@example.com"),
		item(2, "2026-03-07 08:00:00", "Birthday party", "Info please", "Cat", "cat@example.com"),
		item(1, "2026-02-01 08:00:00", "Old", "old", "Old", "old@example.com"),
	}}
	srv := newFakePodio(t, fake)

	cfg := testConfig(srv.URL)
	client, err := NewClient(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	src := NewSource(client, cfg, 1000, utils.NewTextProcessor(zap.NewNop()), throttle.None(), zap.NewNop())

	since := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	var got []*core.InboundMessage
	for msg, err := range src.Messages(context.Background(), since) {
		if err != nil {
			t.Fatalf("Messages() error = %v", err)
		}
		got = append(got, msg)
	}

	if len(got) != 3 {
		t.Fatalf("got %d messages, want 3", len(got))
	}
	first := got[0]
	if first.ItemID != 5 || first.FromName != "jane doe" || first.FromEmail != "jane@example.com" {
		t.Errorf("first = %+v", first)
	}
	if first.Subject != "Summer camp pricing?" || first.Body != "How much is camp ?" {
		t.Errorf("subject/body = %q / %q", first.Subject, first.Body)
	}
	if first.Status != "New" || first.URL != "https://podio.example/items/5" {
		t.Errorf("status/url = %q / %q", first.Status, first.URL)
	}
	if !first.CreatedAt.Equal(time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v", first.CreatedAt)
	}
	for _, m := range got {
		if m.CreatedAt.Before(since) {
			t.Errorf("item %d is outside the window", m.ItemID)
		}
	}
	if got, want := fake.pageOffsets(), []int{0, 2, 4}; fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("offsets = %v, want %v", got, want)
	}
}

func TestSourceStopsWhenConsumerStops(t *testing.T) {
	fake := &fakePodio{items: []map[string]any{
		item(3, "2026-03-09 10:00:00", "a", "", "A", "a@example.com"),
		item(2, "2026-03-09 09:00:00", "b", "", "B", "b@example.com"),
		item(1, "2026-03-09 08:00:00", "c", "", "C", "c@example.com"),
	}}
	srv := newFakePodio(t, fake)
	cfg := testConfig(srv.URL)
	client, err := NewClient(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	src := NewSource(client, cfg, 1000, utils.NewTextProcessor(zap.NewNop()), throttle.None(), zap.NewNop())

	for range src.Messages(context.Background(), time.Time{}) {
		break
	}
	if got := fake.pageOffsets(); len(got) != 1 {
		t.Errorf("offsets = %v, want a single page fetch", got)
	}
}

func TestComments(t *testing.T) {
	fake := &fakePodio{comments: map[string][]map[string]any{
		"7": {
			{"comment_id": 1, "value": "GlobiMail Activated", "created_on": "2026-03-01 10:00:00"},
			{"comment_id": 2, "value": "Called them back", "created_on": "2026-03-02 11:00:00"},
		},
	}}
	srv := newFakePodio(t, fake)
	client, err := NewClient(context.Background(), testConfig(srv.URL), zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	ctx := context.Background()

	comments, err := client.ListComments(ctx, 7)
	if err != nil {
		t.Fatalf("ListComments() error = %v", err)
	}
	if len(comments) != 2 || comments[1].ID != 2 || comments[1].Value != "Called them back" {
		t.Errorf("comments = %+v", comments)
	}
	if comments[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be parsed")
	}

	empty, err := client.ListComments(ctx, 8)
	if err != nil || len(empty) != 0 {
		t.Errorf("ListComments(8) = %v, %v", empty, err)
	}

	if err := client.AddComment(ctx, 7, "[AUTO-FLAG] This email needs a human reply."); err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}
	if got := fake.posted["7"]; len(got) != 1 || !strings.HasPrefix(got[0], "[AUTO-FLAG]") {
		t.Errorf("posted = %v", got)
	}
}

func TestCommentsUseWorkspaceTimezone(t *testing.T) {
	fake := &fakePodio{comments: map[string][]map[string]any{
		"7": {{"comment_id": 1, "value": "Called them back", "created_on": "2026-03-02 11:00:00"}},
	}}
	srv := newFakePodio(t, fake)
	central := time.FixedZone("CST", -6*60*60)
	cfg := testConfig(srv.URL)
	cfg.Location = central
	client, err := NewClient(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	comments, err := client.ListComments(context.Background(), 7)
	if err != nil || len(comments) != 1 {
		t.Fatalf("ListComments() = %v, %v", comments, err)
	}
	want := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	if !comments[0].CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", comments[0].CreatedAt, want)
	}
	if comments[0].CreatedAt.Location() != central {
		t.Errorf("CreatedAt location = %v, want %v", comments[0].CreatedAt.Location(), central)
	}
}

func TestAPIErrors(t *testing.T) {
	fake := &fakePodio{listCode: http.StatusInternalServerError}
	srv := newFakePodio(t, fake)
	client, err := NewClient(context.Background(), testConfig(srv.URL), zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.ListComments(context.Background(), 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("error = %v, want APIError 500", err)
	}
	if errors.Is(err, ErrAuth) {
		t.Error("500 is not an auth failure")
	}

	fake.listCode = http.StatusUnauthorized
	_, err = client.ListComments(context.Background(), 1)
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("error = %v, want ErrAuth", err)
	}
}

func TestFieldValue(t *testing.T) {
	raw, _ := json.Marshal(item(1, "2026-03-09 10:00:00", "Hello", "<p>Body</p>", "Jane", "jane@example.com"))
	it := gjson.ParseBytes(raw)

	tests := map[string]string{
		FieldSubject: "Hello",
		FieldBody:    "<p>Body</p>",
		FieldFrom:    "Jane",
		FieldStatus:  "New",
		"missing":    "",
	}
	for field, want := range tests {
		if got := FieldValue(it, field); got != want {
			t.Errorf("FieldValue(%q) = %q, want %q", field, got, want)
		}
	}
	if got := SenderEmail(it); got != "jane@example.com" {
		t.Errorf("SenderEmail() = %q", got)
	}
	if got := SenderEmail(gjson.Parse(`{"fields":[]}`)); got != "" {
		t.Errorf("SenderEmail(empty) = %q", got)
	}
}
