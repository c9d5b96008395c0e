package filter

import (
	"testing"
)

func TestApply_EmptyExpression(t *testing.T) {
	data := map[string]any{"displayName": "Sales"}
	result, err := Apply(data, "  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.(map[string]any)["displayName"] != "Sales" {
		t.Error("empty expression should return data unchanged")
	}
}

func TestApply_SelectField(t *testing.T) {
	result, err := Apply(map[string]any{"displayName": "Sales", "id": "w1"}, ".displayName")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "Sales" {
		t.Errorf("expected 'Sales', got %v", result)
	}
}

func TestApply_MultipleResultsBecomeList(t *testing.T) {
	data := []any{
		map[string]any{"type": "Lakehouse"},
		map[string]any{"type": "Report"},
	}
	result, err := Apply(data, ".[].type")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list, ok := result.([]any)
	if !ok || len(list) != 2 || list[1] != "Report" {
		t.Errorf("unexpected result %#v", result)
	}
}

func TestApply_NoResults(t *testing.T) {
	result, err := Apply([]any{}, ".[]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list, ok := result.([]any); !ok || len(list) != 0 {
		t.Errorf("expected empty list, got %#v", result)
	}
}

func TestApply_ShellEscapedOperator(t *testing.T) {
	result, err := Apply(map[string]any{"status": "Running"}, `.status \!= "Stopped"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != true {
		t.Errorf("expected true, got %v", result)
	}
}

func TestApply_ItemsFallback(t *testing.T) {
	data := map[string]any{"items": []any{
		map[string]any{"id": "a", "state": "Running"},
		map[string]any{"id": "b", "state": "Stopped"},
	}}
	result, err := Apply(data, `.[] | select(.state == "Running") | .id`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "a" {
		t.Errorf("expected 'a', got %v", result)
	}
}

func TestApply_Errors(t *testing.T) {
	if _, err := Apply(map[string]any{}, "invalid[[["); err == nil {
		t.Error("expected error for invalid expression")
	}
	if _, err := Apply(map[string]any{"n": "x"}, ".n + 1"); err == nil {
		t.Error("expected runtime error")
	}
}

func TestApplyFromJSON(t *testing.T) {
	result, err := ApplyFromJSON([]byte(`{"value":[{"id":1},{"id":2}]}`), ".value | length")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 2 {
		t.Errorf("expected 2, got %#v", result)
	}

	if _, err := ApplyFromJSON([]byte(`{`), "."); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
