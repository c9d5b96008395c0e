package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithPerspective(t *testing.T) {
	tests := []struct {
		conn        string
		perspective string
		want        string
	}{
		{"Data Source=x", "  Sales ", "Data Source=x;Cube=Sales"},
		{"Data Source=x;CUBE=Old", "", "Data Source=x"},
		{"Data Source=x;;Cube=A;Cube=B", "C", "Data Source=x;Cube=C"},
		{"", "Only", "Cube=Only"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, withPerspective(tt.conn, tt.perspective), "withPerspective(%q, %q)", tt.conn, tt.perspective)
	}
}

func TestReportsSetPerspective_NotThinReport(t *testing.T) {
	updates := 0
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+wsRoute+"/items/"+testItemID+"/getDefinition", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"definition": map[string]any{"parts": []any{
			map[string]any{"path": "report.json", "payload": "e30=", "payloadType": "InlineBase64"},
		}}})
	})
	mux.HandleFunc("POST "+wsRoute+"/items/"+testItemID+"/updateDefinition", func(w http.ResponseWriter, r *http.Request) {
		updates++
		w.WriteHeader(http.StatusOK)
	})
	n, _, _ := newTestNormalizer(t, mux)

	_, err := n.Reports().SetPerspective(context.Background(), testWorkspaceID, testItemID, "Finance")
	require.Error(t, err)
	var se *StructuredError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ErrValidation, se.Code)
	assert.Contains(t, se.Message, "definition.pbir")
	assert.Zero(t, updates)
}
