package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"searchlite/internal/config"
	"searchlite/internal/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.New(logger)
	cfg := config.DefaultConfig()
	api := newAPIServer(store, cfg, newTelemetry(context.Background(), logger, false), logger)
	ts := httptest.NewServer(withJSONHeaders(api.routes()))
	t.Cleanup(ts.Close)
	return ts
}

func doRequest(t *testing.T, ts *httptest.Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var decoded map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("%s %s: malformed response %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, decoded
}

func TestRootEndpointReportsVersion(t *testing.T) {
	ts := newTestServer(t)

	status, body := doRequest(t, ts, http.MethodGet, "/", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	version := body["version"].(map[string]any)
	if version["number"] != "6.8.23" {
		t.Fatalf("expected the compatibility version, got %v", version)
	}
}

func TestIndexLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	status, body := doRequest(t, ts, http.MethodPut, "/blog", `{"settings":{"number_of_shards":1}}`)
	if status != http.StatusOK || body["acknowledged"] != true {
		t.Fatalf("create index: status %d body %v", status, body)
	}

	status, body = doRequest(t, ts, http.MethodPut, "/blog", "")
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate create, got %d", status)
	}
	errObj := body["error"].(map[string]any)
	if errObj["type"] != "resource_already_exists_exception" {
		t.Fatalf("unexpected error type: %v", errObj)
	}

	resp, err := http.Head(ts.URL + "/blog")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected HEAD on an existing index to return 200, got %d", resp.StatusCode)
	}

	status, body = doRequest(t, ts, http.MethodGet, "/blog", "")
	if status != http.StatusOK {
		t.Fatalf("get index: %d", status)
	}
	if _, ok := body["blog"]; !ok {
		t.Fatalf("expected the response keyed by index name, got %v", body)
	}

	status, _ = doRequest(t, ts, http.MethodDelete, "/blog", "")
	if status != http.StatusOK {
		t.Fatalf("delete index: %d", status)
	}

	resp, err = http.Head(ts.URL + "/blog")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected HEAD on a deleted index to return 404, got %d", resp.StatusCode)
	}
}

func TestDocumentLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	doRequest(t, ts, http.MethodPut, "/blog", "")

	status, body := doRequest(t, ts, http.MethodPut, "/blog/_doc/1", `{"title":"first"}`)
	if status != http.StatusCreated || body["result"] != "created" {
		t.Fatalf("expected 201 created, got %d %v", status, body)
	}

	status, body = doRequest(t, ts, http.MethodPut, "/blog/_doc/1", `{"title":"revised"}`)
	if status != http.StatusOK || body["result"] != "updated" {
		t.Fatalf("expected 200 updated on overwrite, got %d %v", status, body)
	}

	status, body = doRequest(t, ts, http.MethodGet, "/blog/_doc/1", "")
	if status != http.StatusOK {
		t.Fatalf("get document: %d", status)
	}
	if body["_source"].(map[string]any)["title"] != "revised" {
		t.Fatalf("unexpected source: %v", body["_source"])
	}

	status, body = doRequest(t, ts, http.MethodPost, "/blog/_doc", `{"title":"auto"}`)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 for auto-id create, got %d", status)
	}
	if id, _ := body["_id"].(string); id == "" {
		t.Fatalf("expected a generated id, got %v", body)
	}

	status, _ = doRequest(t, ts, http.MethodDelete, "/blog/_doc/1", "")
	if status != http.StatusOK {
		t.Fatalf("delete document: %d", status)
	}

	status, body = doRequest(t, ts, http.MethodGet, "/blog/_doc/1", "")
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}
	if body["error"].(map[string]any)["type"] != "document_missing_exception" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestSearchOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	doRequest(t, ts, http.MethodPut, "/blog", "")
	doRequest(t, ts, http.MethodPut, "/blog/_doc/1", `{"title":"go concurrency","views":50}`)
	doRequest(t, ts, http.MethodPut, "/blog/_doc/2", `{"title":"python basics","views":150}`)

	status, body := doRequest(t, ts, http.MethodPost, "/blog/_search",
		`{"query":{"match":{"title":"go"}}}`)
	if status != http.StatusOK {
		t.Fatalf("search: %d %v", status, body)
	}
	hits := body["hits"].(map[string]any)
	if hits["total"].(map[string]any)["value"] != float64(1) {
		t.Fatalf("expected one hit, got %v", hits["total"])
	}
	first := hits["hits"].([]any)[0].(map[string]any)
	if first["_id"] != "1" {
		t.Fatalf("unexpected hit: %v", first)
	}

	// q parameter searches across all fields.
	status, body = doRequest(t, ts, http.MethodGet, "/_search?q=python", "")
	if status != http.StatusOK {
		t.Fatalf("q search: %d", status)
	}
	if body["hits"].(map[string]any)["total"].(map[string]any)["value"] != float64(1) {
		t.Fatalf("expected one hit via q, got %v", body["hits"])
	}

	status, body = doRequest(t, ts, http.MethodPost, "/missing/_search", `{}`)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 searching a missing index, got %d", status)
	}
	if body["error"].(map[string]any)["type"] != "index_not_found_exception" {
		t.Fatalf("unexpected error body: %v", body)
	}

	status, body = doRequest(t, ts, http.MethodPost, "/blog/_search",
		`{"query":{"unknown_clause":{"f":"x"}}}`)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for an invalid clause, got %d", status)
	}
}

func TestBulkOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	doRequest(t, ts, http.MethodPut, "/blog", "")

	body := strings.Join([]string{
		`{"index":{"_id":"1"}}`,
		`{"title":"first"}`,
		`{"delete":{"_id":"2"}}`,
		``,
	}, "\n")

	status, decoded := doRequest(t, ts, http.MethodPost, "/blog/_bulk", body)
	if status != http.StatusOK {
		t.Fatalf("bulk: %d %v", status, decoded)
	}
	if decoded["errors"] != true {
		t.Fatalf("expected errors=true, got %v", decoded)
	}
	items := decoded["items"].([]any)
	indexed := items[0].(map[string]any)["index"].(map[string]any)
	if indexed["status"] != float64(201) {
		t.Fatalf("expected 201 on the index item, got %v", indexed)
	}
	deleted := items[1].(map[string]any)["delete"].(map[string]any)
	if deleted["status"] != float64(404) {
		t.Fatalf("expected 404 on the delete item, got %v", deleted)
	}

	// Actions without a default index and without _index fail the request.
	status, _ = doRequest(t, ts, http.MethodPost, "/_bulk", body)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 without a target index, got %d", status)
	}
}

func TestMappingAndSettingsOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	doRequest(t, ts, http.MethodPut, "/blog", `{"mappings":{"properties":{"title":{"type":"text"}}}}`)

	status, _ := doRequest(t, ts, http.MethodPut, "/blog/_mapping",
		`{"properties":{"views":{"type":"integer"}}}`)
	if status != http.StatusOK {
		t.Fatalf("update mapping: %d", status)
	}

	status, _ = doRequest(t, ts, http.MethodPut, "/blog/_settings",
		`{"index":{"refresh_interval":"5s"}}`)
	if status != http.StatusOK {
		t.Fatalf("update settings: %d", status)
	}

	_, body := doRequest(t, ts, http.MethodGet, "/blog", "")
	entry := body["blog"].(map[string]any)
	properties := entry["mappings"].(map[string]any)["properties"].(map[string]any)
	if _, ok := properties["views"]; !ok {
		t.Fatalf("expected the mapping update to land, got %v", properties)
	}
	if _, ok := properties["title"]; !ok {
		t.Fatalf("expected the original mapping to survive, got %v", properties)
	}
	settings := entry["settings"].(map[string]any)["index"].(map[string]any)
	if settings["refresh_interval"] != "5s" {
		t.Fatalf("expected the settings update to land, got %v", settings)
	}
}

func TestClusterEndpointsOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	doRequest(t, ts, http.MethodPut, "/blog", "")
	doRequest(t, ts, http.MethodPut, "/blog/_doc/1", `{"a":1}`)

	status, body := doRequest(t, ts, http.MethodGet, "/_cluster/health", "")
	if status != http.StatusOK || body["status"] != "green" {
		t.Fatalf("cluster health: %d %v", status, body)
	}

	status, body = doRequest(t, ts, http.MethodGet, "/_cluster/stats", "")
	if status != http.StatusOK {
		t.Fatalf("cluster stats: %d", status)
	}
	indices := body["indices"].(map[string]any)
	if indices["count"] != float64(1) {
		t.Fatalf("expected one index in stats, got %v", indices)
	}

	status, body = doRequest(t, ts, http.MethodGet, "/_aliases", "")
	if status != http.StatusOK {
		t.Fatalf("aliases: %d", status)
	}
	if _, ok := body["blog"]; !ok {
		t.Fatalf("expected an aliases entry per index, got %v", body)
	}
}

func TestCatIndicesOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	doRequest(t, ts, http.MethodPut, "/blog", "")
	doRequest(t, ts, http.MethodPut, "/blog/_doc/1", `{"a":1}`)

	resp, err := http.Get(ts.URL + "/_cat/indices?v")
	if err != nil {
		t.Fatalf("cat indices: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	text := string(raw)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/plain") {
		t.Fatalf("expected a plain-text response, got %q", resp.Header.Get("Content-Type"))
	}
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one row, got %q", text)
	}
	if !strings.HasPrefix(lines[0], "health status index") {
		t.Fatalf("expected the verbose header, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "blog") || !strings.Contains(lines[1], " 1 ") {
		t.Fatalf("expected the blog row with its doc count, got %q", lines[1])
	}

	// Without v, no header.
	plain, err := http.Get(ts.URL + "/_cat/indices")
	if err != nil {
		t.Fatalf("cat indices: %v", err)
	}
	defer plain.Body.Close()
	raw, _ = io.ReadAll(plain.Body)
	if strings.Contains(string(raw), "health status") {
		t.Fatalf("expected no header without v, got %q", raw)
	}
}

func TestRefreshOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	doRequest(t, ts, http.MethodPut, "/blog", "")

	status, body := doRequest(t, ts, http.MethodPost, "/_refresh", "")
	if status != http.StatusOK {
		t.Fatalf("refresh: %d %v", status, body)
	}
	status, _ = doRequest(t, ts, http.MethodPost, "/blog/_refresh", "")
	if status != http.StatusOK {
		t.Fatalf("index refresh: %d", status)
	}
}

func TestDeleteAllIndicesOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	doRequest(t, ts, http.MethodPut, "/a", "")
	doRequest(t, ts, http.MethodPut, "/b", "")

	status, _ := doRequest(t, ts, http.MethodDelete, "/_all", "")
	if status != http.StatusOK {
		t.Fatalf("delete _all: %d", status)
	}

	status, _ = doRequest(t, ts, http.MethodGet, "/a", "")
	if status != http.StatusNotFound {
		t.Fatalf("expected indices gone after _all delete, got %d", status)
	}
}

func TestMalformedJSONBodyOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	doRequest(t, ts, http.MethodPut, "/blog", "")

	status, body := doRequest(t, ts, http.MethodPut, "/blog/_doc/1", `{not json`)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", status)
	}
	if body["error"].(map[string]any)["type"] != "invalid_request_exception" {
		t.Fatalf("unexpected error body: %v", body)
	}
}
