package ddns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudflare/cloudflare-go"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *cloudflareProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cf, err := newCloudflareProvider("test-token", cloudflare.BaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	return cf
}

// envelope wraps result in the v4 API response format.
func envelope(result any, count int) string {
	body, _ := json.Marshal(map[string]any{
		"success":  true,
		"errors":   []any{},
		"messages": []any{},
		"result":   result,
		"result_info": map[string]int{
			"page": 1, "per_page": 100, "count": count, "total_count": count, "total_pages": 1,
		},
	})
	return string(body)
}

func TestCloudflareListRecords(t *testing.T) {
	cf := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/zones/zone123/dns_records" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Expected bearer auth; got %q", got)
		}
		q := r.URL.Query()
		if q.Get("name") != "home.example.com" || q.Get("type") != "A" {
			t.Errorf("Expected name and type filters; got %q", r.URL.RawQuery)
		}
		fmt.Fprint(w, envelope([]map[string]any{
			{"id": "rec-1", "zone_id": "zone123", "name": "home.example.com", "type": "A", "content": "192.0.2.10", "ttl": 1, "proxied": false},
			{"id": "rec-2", "zone_id": "zone123", "name": "home.example.com", "type": "A", "content": "192.0.2.11", "ttl": 300, "proxied": true},
		}, 2))
	})

	records, err := cf.ListRecords(context.Background(), "zone123", "home.example.com", "A")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records; got %d", len(records))
	}
	want := Record{ID: "rec-1", ZoneID: "zone123", Name: "home.example.com", Type: "A", Content: "192.0.2.10", TTL: 1}
	if records[0] != want {
		t.Fatalf("Expected %+v; got %+v", want, records[0])
	}
	if !records[1].Proxied || records[1].TTL != 300 {
		t.Fatalf("Expected the second record to keep proxied and TTL; got %+v", records[1])
	}
}

func TestCloudflareCreateRecord(t *testing.T) {
	cf := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/zones/zone123/dns_records" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Name    string `json:"name"`
			Type    string `json:"type"`
			Content string `json:"content"`
			TTL     int    `json:"ttl"`
			Proxied *bool  `json:"proxied"`
			Comment string `json:"comment"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Decoding request body: %s", err)
		}
		if body.Name != "new.example.com" || body.Type != "A" || body.Content != "192.0.2.10" {
			t.Errorf("Unexpected record in request: %+v", body)
		}
		if body.TTL != 1 {
			t.Errorf("Expected automatic TTL (1); got %d", body.TTL)
		}
		if body.Proxied == nil || *body.Proxied {
			t.Errorf("Expected proxied false; got %v", body.Proxied)
		}
		if body.Comment != "managed by ddns" {
			t.Errorf("Expected a management comment; got %q", body.Comment)
		}
		fmt.Fprint(w, envelope(map[string]any{
			"id": "rec-9", "zone_id": "zone123", "name": body.Name, "type": body.Type,
			"content": body.Content, "ttl": body.TTL, "proxied": body.Proxied, "comment": body.Comment,
		}, 1))
	})

	created, err := cf.CreateRecord(context.Background(), "zone123", Record{
		Name: "new.example.com", Type: "A", Content: "192.0.2.10",
	})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID != "rec-9" {
		t.Fatalf("Expected the provider-assigned ID; got %q", created.ID)
	}
}

func TestCloudflareUpdateRecord(t *testing.T) {
	cf := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/zones/zone123/dns_records/rec-1" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPatch && r.Method != http.MethodPut {
			t.Errorf("Unexpected method: %s", r.Method)
		}
		var body struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Decoding request body: %s", err)
		}
		if body.Content != "192.0.2.99" {
			t.Errorf("Expected content 192.0.2.99; got %q", body.Content)
		}
		fmt.Fprint(w, envelope(map[string]any{
			"id": "rec-1", "zone_id": "zone123", "name": "home.example.com", "type": "A",
			"content": body.Content, "ttl": 1,
		}, 1))
	})

	updated, err := cf.UpdateRecord(context.Background(), "zone123", "rec-1", "192.0.2.99")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Content != "192.0.2.99" {
		t.Fatalf("Expected the updated content to round-trip; got %q", updated.Content)
	}
}

func TestCloudflareErrorsBecomeAPIErrors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		message string
	}{
		{"bad request", http.StatusBadRequest, "Invalid value for zone"},
		{"unauthorized", http.StatusUnauthorized, "Invalid API Token"},
		{"forbidden", http.StatusForbidden, "Unauthorized to access requested resource"},
		{"not found", http.StatusNotFound, "Record not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cf := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprintf(w, `{"success":false,"errors":[{"code":9109,"message":%q}],"messages":[],"result":null}`, tc.message)
			})

			_, err := cf.ListRecords(context.Background(), "zone123", "home.example.com", "A")
			if err == nil {
				t.Fatal("Expected an error")
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Expected an *APIError; got %T: %v", err, err)
			}
			if apiErr.Status != tc.status {
				t.Errorf("Expected status %d; got %d", tc.status, apiErr.Status)
			}
			if !strings.Contains(apiErr.Message, tc.message) {
				t.Errorf("Expected the provider message to be preserved; got %q", apiErr.Message)
			}
		})
	}
}

// The client swallows 429 response bodies before any typed error is built,
// so only the status classification can be checked here.
func TestCloudflareRateLimitStatus(t *testing.T) {
	cf := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"success":false,"errors":[{"code":971,"message":"rate limited"}],"messages":[],"result":null}`)
	})

	_, err := cf.ListRecords(context.Background(), "zone123", "home.example.com", "A")
	if err == nil {
		t.Fatal("Expected an error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected an *APIError; got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusTooManyRequests {
		t.Errorf("Expected status 429; got %d", apiErr.Status)
	}
}

// A failed create must reach the caller after a single attempt: re-sending it
// could leave a duplicate record if the provider committed the first one.
func TestCloudflareCreateIsNotRetried(t *testing.T) {
	var requests int
	cf := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"success":false,"errors":[{"code":10000,"message":"internal error"}],"messages":[],"result":null}`)
	})

	_, err := cf.CreateRecord(context.Background(), "zone123", Record{
		Name: "new.example.com", Type: "A", Content: "192.0.2.10",
	})
	if err == nil {
		t.Fatal("Expected an error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected an *APIError; got %T: %v", err, err)
	}
	if requests != 1 {
		t.Fatalf("Expected exactly one create attempt; got %d", requests)
	}
}

func TestWrapAPIError(t *testing.T) {
	if wrapAPIError(nil) != nil {
		t.Error("wrapAPIError(nil): expected nil")
	}
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"transport failure", errors.New("connection reset"), 0},
		{"status in message", errors.New("received service unavailable response (HTTP 503), please try again later"), 503},
		{"retry exhaustion", errors.New("exceeded available rate limit retries"), http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var apiErr *APIError
			wrapped := wrapAPIError(tc.err)
			if !errors.As(wrapped, &apiErr) {
				t.Fatalf("Expected an *APIError; got %T", wrapped)
			}
			if apiErr.Status != tc.status {
				t.Errorf("Expected status %d; got %d", tc.status, apiErr.Status)
			}
			if apiErr.Message != tc.err.Error() {
				t.Errorf("Expected the message to be preserved; got %q", apiErr.Message)
			}
		})
	}
}
