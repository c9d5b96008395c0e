package api

import (
	"context"
	"net/http"
)

func mirroringPath(workspaceID, databaseID, action string) string {
	return itemPath(workspaceID, ItemTypeMirroredDatabase, databaseID) + "/" + action
}

func (s MirroringService) call(ctx context.Context, workspaceID, databaseID, action string) (JSONBody, error) {
	if err := requireID("workspace", workspaceID); err != nil {
		return nil, err
	}
	if err := requireID("mirrored database", databaseID); err != nil {
		return nil, err
	}
	return s.Get(ctx, Request{
		Method:      http.MethodPost,
		Route:       mirroringPath(workspaceID, databaseID, action),
		StatusCodes: []int{http.StatusOK},
	})
}

// Status returns the database-level mirroring state.
func (s MirroringService) Status(ctx context.Context, workspaceID, databaseID string) (*MirroringStatus, error) {
	body, err := s.call(ctx, workspaceID, databaseID, "getMirroringStatus")
	if err != nil {
		return nil, err
	}
	var out MirroringStatus
	if err := decodeInto(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Tables returns the mirroring state of every source table.
func (s MirroringService) Tables(ctx context.Context, workspaceID, databaseID string) ([]TableMirroringStatus, error) {
	if err := requireID("workspace", workspaceID); err != nil {
		return nil, err
	}
	if err := requireID("mirrored database", databaseID); err != nil {
		return nil, err
	}
	items, err := s.List(ctx, Request{
		Method:   http.MethodPost,
		Route:    mirroringPath(workspaceID, databaseID, "getTablesMirroringStatus"),
		ItemsKey: "data",
	})
	if err != nil {
		return nil, err
	}
	var out []TableMirroringStatus
	if err := decodeInto(items, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Start begins replication for a mirrored database.
func (s MirroringService) Start(ctx context.Context, workspaceID, databaseID string) error {
	_, err := s.call(ctx, workspaceID, databaseID, "startMirroring")
	return err
}

// Stop halts replication for a mirrored database.
func (s MirroringService) Stop(ctx context.Context, workspaceID, databaseID string) error {
	_, err := s.call(ctx, workspaceID, databaseID, "stopMirroring")
	return err
}
