package api

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// ItemType names a Fabric item type and the collection route it lives under.
type ItemType struct {
	Name string
	Path string
}

// Known item types. Path is the typed collection segment under a workspace.
var (
	ItemTypeDataPipeline     = ItemType{Name: "DataPipeline", Path: "dataPipelines"}
	ItemTypeMirroredDatabase = ItemType{Name: "MirroredDatabase", Path: "mirroredDatabases"}
	ItemTypeKQLQueryset      = ItemType{Name: "KQLQueryset", Path: "kqlQuerysets"}
	ItemTypeMLExperiment     = ItemType{Name: "MLExperiment", Path: "mlExperiments"}
	ItemTypeGraphQLAPI       = ItemType{Name: "GraphQLApi", Path: "GraphQLApis"}
	ItemTypeReport           = ItemType{Name: "Report", Path: "reports"}
	ItemTypeSemanticModel    = ItemType{Name: "SemanticModel", Path: "semanticModels"}
	ItemTypeLakehouse        = ItemType{Name: "Lakehouse", Path: "lakehouses"}
	ItemTypeWarehouse        = ItemType{Name: "Warehouse", Path: "warehouses"}
	ItemTypeNotebook         = ItemType{Name: "Notebook", Path: "notebooks"}
)

var itemTypes = []ItemType{
	ItemTypeDataPipeline,
	ItemTypeMirroredDatabase,
	ItemTypeKQLQueryset,
	ItemTypeMLExperiment,
	ItemTypeGraphQLAPI,
	ItemTypeReport,
	ItemTypeSemanticModel,
	ItemTypeLakehouse,
	ItemTypeWarehouse,
	ItemTypeNotebook,
}

// ItemTypeNames lists the accepted item type names, sorted.
func ItemTypeNames() []string {
	names := make([]string, 0, len(itemTypes))
	for _, t := range itemTypes {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// ParseItemType accepts a type name or its collection path, case-insensitively.
func ParseItemType(s string) (ItemType, error) {
	s = strings.TrimSpace(s)
	for _, t := range itemTypes {
		if strings.EqualFold(s, t.Name) || strings.EqualFold(s, t.Path) {
			return t, nil
		}
	}
	return ItemType{}, NewValidationError("item type", s, ItemTypeNames())
}

// CreateItemOptions are the optional fields of an item create call.
type CreateItemOptions struct {
	Description string
	Definition  *ItemDefinition
}

func itemCollectionPath(workspaceID string, t ItemType) string {
	return workspacePath(workspaceID) + "/" + t.Path
}

func itemPath(workspaceID string, t ItemType, itemID string) string {
	return itemCollectionPath(workspaceID, t) + "/" + url.PathEscape(strings.TrimSpace(itemID))
}

// List retrieves every item of type t in a workspace.
func (s ItemsService) List(ctx context.Context, workspaceID string, t ItemType) ([]Item, error) {
	if err := requireID("workspace", workspaceID); err != nil {
		return nil, err
	}
	items, err := s.Normalizer.List(ctx, Request{
		Method: http.MethodGet,
		Route:  itemCollectionPath(workspaceID, t),
	})
	if err != nil {
		return nil, err
	}
	var out []Item
	if err := decodeInto(items, &out); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Type == "" {
			out[i].Type = t.Name
		}
		if out[i].WorkspaceID == "" {
			out[i].WorkspaceID = workspaceID
		}
	}
	return out, nil
}

// ListAll retrieves every item in a workspace regardless of type. A
// non-empty typeName narrows the listing server-side.
func (s ItemsService) ListAll(ctx context.Context, workspaceID, typeName string) ([]Item, error) {
	if err := requireID("workspace", workspaceID); err != nil {
		return nil, err
	}
	var query url.Values
	if typeName != "" {
		query = url.Values{"type": {typeName}}
	}
	items, err := s.Normalizer.List(ctx, Request{
		Method: http.MethodGet,
		Route:  workspacePath(workspaceID) + "/items",
		Query:  query,
	})
	if err != nil {
		return nil, err
	}
	var out []Item
	if err := decodeInto(items, &out); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].WorkspaceID == "" {
			out[i].WorkspaceID = workspaceID
		}
	}
	return out, nil
}

// Create creates an item and waits for provisioning to finish.
func (s ItemsService) Create(ctx context.Context, workspaceID string, t ItemType, name string, opts CreateItemOptions) (*Item, error) {
	if err := requireID("workspace", workspaceID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewStructuredError(ErrValidation, "item name is required")
	}
	body := map[string]any{"displayName": name}
	if opts.Description != "" {
		body["description"] = opts.Description
	}
	if opts.Definition != nil {
		body["definition"] = opts.Definition
	}

	result, err := s.LROJSON(ctx, Request{
		Method:      http.MethodPost,
		Route:       itemCollectionPath(workspaceID, t),
		Body:        body,
		StatusCodes: []int{http.StatusCreated, http.StatusOK},
	})
	if err != nil {
		return nil, err
	}
	var out Item
	if err := decodeInto(result, &out); err != nil {
		return nil, err
	}
	if out.Type == "" {
		out.Type = t.Name
	}
	if out.DisplayName == "" {
		out.DisplayName = name
	}
	return &out, nil
}

// Delete removes an item.
func (s ItemsService) Delete(ctx context.Context, workspaceID string, t ItemType, itemID string) error {
	if err := requireID("workspace", workspaceID); err != nil {
		return err
	}
	if err := requireID("item", itemID); err != nil {
		return err
	}
	_, err := s.Get(ctx, Request{
		Method:      http.MethodDelete,
		Route:       itemPath(workspaceID, t, itemID),
		StatusCodes: []int{http.StatusOK},
	})
	return err
}
