package search

import (
	"reflect"
	"testing"
)

func TestFieldValueDottedPaths(t *testing.T) {
	doc := map[string]any{
		"user": map[string]any{
			"name":    "ada",
			"address": map[string]any{"city": "london"},
		},
	}

	if v, ok := FieldValue(doc, "user.address.city"); !ok || v != "london" {
		t.Fatalf("expected nested lookup to yield london, got %v (%v)", v, ok)
	}
	if _, ok := FieldValue(doc, "user.missing"); ok {
		t.Fatalf("expected missing path to report absence")
	}
	if _, ok := FieldValue(doc, "user.name.deeper"); ok {
		t.Fatalf("expected descent through a scalar to fail")
	}
	if v, ok := FieldValue(doc, "_all"); !ok || !reflect.DeepEqual(v, doc) {
		t.Fatalf("expected _all to resolve to the whole document")
	}
}

func TestFilterSourceForms(t *testing.T) {
	doc := map[string]any{"a": 1.0, "b": 2.0, "c": 3.0}

	if got := FilterSource(doc, nil); !reflect.DeepEqual(got, doc) {
		t.Fatalf("expected nil filter to return the full document, got %v", got)
	}
	if got := FilterSource(doc, true); !reflect.DeepEqual(got, doc) {
		t.Fatalf("expected true filter to return the full document, got %v", got)
	}
	if got := FilterSource(doc, false); len(got) != 0 {
		t.Fatalf("expected false filter to return an empty object, got %v", got)
	}

	listed := FilterSource(doc, []any{"a", "c", "nope"})
	if !reflect.DeepEqual(listed, map[string]any{"a": 1.0, "c": 3.0}) {
		t.Fatalf("expected only listed fields, got %v", listed)
	}

	objected := FilterSource(doc, map[string]any{
		"includes": []any{"a", "b"},
		"excludes": []any{"b"},
	})
	if !reflect.DeepEqual(objected, map[string]any{"a": 1.0}) {
		t.Fatalf("expected excludes to apply before includes, got %v", objected)
	}
}

func TestCompareValues(t *testing.T) {
	cases := []struct {
		a, b any
		want int
	}{
		{1.0, 2.0, -1},
		{2.0, 1.0, 1},
		{1.0, 1.0, 0},
		{"apple", "banana", -1},
		{"10", 9.0, 1},
		{nil, "present", -1},
		{"present", nil, 1},
	}
	for i, tc := range cases {
		if got := CompareValues(tc.a, tc.b); got != tc.want {
			t.Fatalf("case %d: CompareValues(%v, %v) = %d, want %d", i, tc.a, tc.b, got, tc.want)
		}
	}
}

func TestNumericValueParsesStrings(t *testing.T) {
	if v, ok := NumericValue(" 42.5 "); !ok || v != 42.5 {
		t.Fatalf("expected numeric string to parse, got %v (%v)", v, ok)
	}
	if _, ok := NumericValue("not a number"); ok {
		t.Fatalf("expected non-numeric string to fail")
	}
	if _, ok := NumericValue(map[string]any{}); ok {
		t.Fatalf("expected object to have no numeric value")
	}
}
