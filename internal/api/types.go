package api

import (
	"encoding/json"
	"fmt"
)

// Workspace is a Fabric workspace.
type Workspace struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	CapacityID  string `json:"capacityId,omitempty"`
	DomainID    string `json:"domainId,omitempty"`
}

// Item is any Fabric item (pipeline, lakehouse, report, ...).
type Item struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"displayName"`
	Description string         `json:"description,omitempty"`
	Type        string         `json:"type,omitempty"`
	WorkspaceID string         `json:"workspaceId,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
}

// DefinitionPart is one file of an item definition. Payload is base64
// when PayloadType is "InlineBase64".
type DefinitionPart struct {
	Path        string `json:"path"`
	Payload     string `json:"payload"`
	PayloadType string `json:"payloadType"`
}

// ItemDefinition is the full public definition of an item.
type ItemDefinition struct {
	Format string           `json:"format,omitempty"`
	Parts  []DefinitionPart `json:"parts"`
}

// MirroringStatus is the database-level mirroring state.
type MirroringStatus struct {
	Status string `json:"status"`
}

// TableMirroringMetrics holds per-table replication counters.
type TableMirroringMetrics struct {
	ProcessedBytes   int64  `json:"processedBytes"`
	ProcessedRows    int64  `json:"processedRows"`
	LastSyncDateTime string `json:"lastSyncDateTime,omitempty"`
}

// TableMirroringStatus is the mirroring state of one source table.
type TableMirroringStatus struct {
	SourceSchemaName string                `json:"sourceSchemaName"`
	SourceTableName  string                `json:"sourceTableName"`
	Status           string                `json:"status"`
	Metrics          TableMirroringMetrics `json:"metrics"`
}

// PrivateEndpointConnectionState is the approval state of a managed private endpoint.
type PrivateEndpointConnectionState struct {
	Status          string `json:"status,omitempty"`
	Description     string `json:"description,omitempty"`
	ActionsRequired string `json:"actionsRequired,omitempty"`
}

// ManagedPrivateEndpoint is a workspace managed private endpoint.
type ManagedPrivateEndpoint struct {
	ID                          string                         `json:"id"`
	Name                        string                         `json:"name"`
	ProvisioningState           string                         `json:"provisioningState,omitempty"`
	TargetPrivateLinkResourceID string                         `json:"targetPrivateLinkResourceId"`
	TargetSubresourceType       string                         `json:"targetSubresourceType,omitempty"`
	ConnectionState             PrivateEndpointConnectionState `json:"connectionState"`
}

// TargetFQDN is a fully qualified domain name reachable through a managed
// private endpoint.
type TargetFQDN struct {
	FQDN string `json:"fqdn"`
}

// decodeInto converts a normalized result into a typed struct.
func decodeInto(src any, dst any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("failed to re-encode response: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unexpected API response format (JSON decode failed): %w", err)
	}
	return nil
}
