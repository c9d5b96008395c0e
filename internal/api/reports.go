package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	reportConnectionFile = "definition.pbir"
	connectionStringPath = "datasetReference.byConnection.connectionString"
	cubeTokenPrefix      = "cube="
)

// SetPerspective points a thin report's live connection at a model
// perspective. An empty perspective connects the report to the full model.
func (s ReportsService) SetPerspective(ctx context.Context, workspaceID, reportID, perspective string) (StatusCode, error) {
	defs := s.Definitions()
	def, err := defs.Get(ctx, workspaceID, reportID, "")
	if err != nil {
		return 0, err
	}
	part, ok := def.Part(reportConnectionFile)
	if !ok {
		return 0, NewStructuredError(ErrValidation, "report definition has no "+reportConnectionFile+"; is this a thin report?")
	}
	data, err := part.Decode()
	if err != nil {
		return 0, err
	}
	updated, err := RewritePerspective(data, perspective)
	if err != nil {
		return 0, err
	}
	part.SetPayload(updated)
	return defs.Update(ctx, workspaceID, reportID, *def, false)
}

// RewritePerspective rewrites the connection string in a definition.pbir
// document, dropping any Cube= token and appending Cube=<perspective>.
func RewritePerspective(pbir []byte, perspective string) ([]byte, error) {
	conn := gjson.GetBytes(pbir, connectionStringPath)
	if conn.Type != gjson.String {
		return nil, fmt.Errorf("%s has no %s", reportConnectionFile, connectionStringPath)
	}
	return sjson.SetBytes(pbir, connectionStringPath, withPerspective(conn.Str, perspective))
}

func withPerspective(conn, perspective string) string {
	var tokens []string
	for _, t := range strings.Split(conn, ";") {
		trimmed := strings.TrimSpace(t)
		if trimmed == "" || strings.HasPrefix(strings.ToLower(trimmed), cubeTokenPrefix) {
			continue
		}
		tokens = append(tokens, t)
	}
	if p := strings.TrimSpace(perspective); p != "" {
		tokens = append(tokens, "Cube="+p)
	}
	return strings.Join(tokens, ";")
}
