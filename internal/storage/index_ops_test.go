package storage

import (
	"errors"
	"reflect"
	"testing"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	return New(nil)
}

func kindOf(t *testing.T, err error) Kind {
	t.Helper()
	var typed *Error
	if !errors.As(err, &typed) {
		t.Fatalf("expected a typed storage error, got %T: %v", err, err)
	}
	return typed.Kind
}

func TestCreateIndexRejectsDuplicates(t *testing.T) {
	s := newTestStorage(t)

	if err := s.CreateIndex("blog", nil, nil); err != nil {
		t.Fatalf("create index: %v", err)
	}
	err := s.CreateIndex("blog", nil, nil)
	if err == nil {
		t.Fatalf("expected duplicate create to fail")
	}
	if kindOf(t, err) != KindIndexAlreadyExists {
		t.Fatalf("expected already-exists kind, got %v", err)
	}
}

func TestDeleteIndexMissingAndAll(t *testing.T) {
	s := newTestStorage(t)

	err := s.DeleteIndex("missing")
	if kindOf(t, err) != KindIndexNotFound {
		t.Fatalf("expected not-found deleting a missing index, got %v", err)
	}

	// _all on an empty storage succeeds.
	if err := s.DeleteIndex(AllIndices); err != nil {
		t.Fatalf("expected _all delete on empty storage to succeed: %v", err)
	}

	for _, name := range []string{"a", "b", "c"} {
		if err := s.CreateIndex(name, nil, nil); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	if err := s.DeleteIndex(AllIndices); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if names := s.ListIndices(); len(names) != 0 {
		t.Fatalf("expected no indices after _all delete, got %v", names)
	}
}

func TestGetIndexShape(t *testing.T) {
	s := newTestStorage(t)

	settings := map[string]any{"number_of_shards": float64(1)}
	mappings := map[string]any{"properties": map[string]any{"title": map[string]any{"type": "text"}}}
	if err := s.CreateIndex("blog", settings, mappings); err != nil {
		t.Fatalf("create index: %v", err)
	}

	info, err := s.GetIndex("blog")
	if err != nil {
		t.Fatalf("get index: %v", err)
	}
	entry, ok := info["blog"].(map[string]any)
	if !ok {
		t.Fatalf("expected the response keyed by index name, got %v", info)
	}
	if !reflect.DeepEqual(entry["settings"], settings) {
		t.Fatalf("unexpected settings: %v", entry["settings"])
	}
	if !reflect.DeepEqual(entry["mappings"], mappings) {
		t.Fatalf("unexpected mappings: %v", entry["mappings"])
	}
	if _, ok := entry["aliases"].(map[string]any); !ok {
		t.Fatalf("expected an empty aliases object, got %v", entry["aliases"])
	}

	if _, err := s.GetIndex("missing"); kindOf(t, err) != KindIndexNotFound {
		t.Fatalf("expected not-found for a missing index, got %v", err)
	}
}

func TestMatchIndicesPatterns(t *testing.T) {
	s := newTestStorage(t)
	for _, name := range []string{"logs-2024-01", "logs-2024-02", "logs-2023-12", "metrics"} {
		if err := s.CreateIndex(name, nil, nil); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	cases := []struct {
		pattern string
		want    []string
	}{
		{"logs-2024-*", []string{"logs-2024-01", "logs-2024-02"}},
		{"logs-*", []string{"logs-2023-12", "logs-2024-01", "logs-2024-02"}},
		{"metrics", []string{"metrics"}},
		{"missing", nil},
		{"metrics,logs-2023-*", []string{"logs-2023-12", "metrics"}},
		{"*", []string{"logs-2023-12", "logs-2024-01", "logs-2024-02", "metrics"}},
		{"_all", []string{"logs-2023-12", "logs-2024-01", "logs-2024-02", "metrics"}},
		{"", []string{"logs-2023-12", "logs-2024-01", "logs-2024-02", "metrics"}},
		{"logs-2024-0?", []string{"logs-2024-01", "logs-2024-02"}},
	}
	for _, tc := range cases {
		got := s.MatchIndices(tc.pattern)
		if len(got) == 0 && len(tc.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("pattern %q: expected %v, got %v", tc.pattern, tc.want, got)
		}
	}
}

func TestUpdateMappingMergesFieldByField(t *testing.T) {
	s := newTestStorage(t)
	initial := map[string]any{"properties": map[string]any{
		"title": map[string]any{"type": "text"},
	}}
	if err := s.CreateIndex("blog", nil, initial); err != nil {
		t.Fatalf("create index: %v", err)
	}

	update := map[string]any{"properties": map[string]any{
		"views": map[string]any{"type": "integer"},
		"title": map[string]any{"type": "keyword"},
	}}
	if err := s.UpdateMapping("blog", update); err != nil {
		t.Fatalf("update mapping: %v", err)
	}

	info, err := s.GetIndex("blog")
	if err != nil {
		t.Fatalf("get index: %v", err)
	}
	mappings := info["blog"].(map[string]any)["mappings"].(map[string]any)
	properties := mappings["properties"].(map[string]any)
	if properties["views"].(map[string]any)["type"] != "integer" {
		t.Fatalf("expected new field to be added, got %v", properties)
	}
	if properties["title"].(map[string]any)["type"] != "keyword" {
		t.Fatalf("expected existing field definition to be overwritten, got %v", properties)
	}
}

func TestUpdateMappingAcceptsBareProperties(t *testing.T) {
	s := newTestStorage(t)
	if err := s.CreateIndex("blog", nil, nil); err != nil {
		t.Fatalf("create index: %v", err)
	}

	bare := map[string]any{"tags": map[string]any{"type": "keyword"}}
	if err := s.UpdateMapping("blog", bare); err != nil {
		t.Fatalf("update mapping: %v", err)
	}

	info, _ := s.GetIndex("blog")
	properties := info["blog"].(map[string]any)["mappings"].(map[string]any)["properties"].(map[string]any)
	if _, ok := properties["tags"]; !ok {
		t.Fatalf("expected bare properties form to be accepted, got %v", properties)
	}
}

func TestUpdateSettingsDeepMerges(t *testing.T) {
	s := newTestStorage(t)
	initial := map[string]any{"index": map[string]any{
		"number_of_shards":   float64(1),
		"number_of_replicas": float64(0),
	}}
	if err := s.CreateIndex("blog", initial, nil); err != nil {
		t.Fatalf("create index: %v", err)
	}

	if err := s.UpdateSettings("blog", map[string]any{
		"index": map[string]any{"refresh_interval": "5s"},
	}); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	info, _ := s.GetIndex("blog")
	index := info["blog"].(map[string]any)["settings"].(map[string]any)["index"].(map[string]any)
	if index["number_of_shards"] != float64(1) || index["refresh_interval"] != "5s" {
		t.Fatalf("expected merged settings to keep old keys and add new ones, got %v", index)
	}
}

func TestGetAliasesReturnsEmptySets(t *testing.T) {
	s := newTestStorage(t)
	if err := s.CreateIndex("blog", nil, nil); err != nil {
		t.Fatalf("create index: %v", err)
	}

	aliases := s.GetAliases()
	entry, ok := aliases["blog"].(map[string]any)
	if !ok {
		t.Fatalf("expected an entry per index, got %v", aliases)
	}
	if inner, ok := entry["aliases"].(map[string]any); !ok || len(inner) != 0 {
		t.Fatalf("expected an empty aliases object, got %v", entry)
	}
}
