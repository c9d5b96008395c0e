package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const (
	endpointID    = "55555555-5555-5555-5555-555555555555"
	endpointsPage = `{"value": [{
		"id": "55555555-5555-5555-5555-555555555555",
		"name": "sql-east",
		"provisioningState": "Succeeded",
		"targetPrivateLinkResourceId": "/subscriptions/s/resourceGroups/rg/providers/Microsoft.Sql/servers/east",
		"targetSubresourceType": "sqlServer",
		"connectionState": {"status": "Approved"}
	}]}`
	sqlTarget = "/subscriptions/s/resourceGroups/rg/providers/Microsoft.Sql/servers/east"
)

func endpointsRoute() string {
	return "/v1/workspaces/" + testWorkspaceID + "/managedPrivateEndpoints"
}

func TestEndpointsList(t *testing.T) {
	handler := newRouteHandler().
		On("GET", endpointsRoute(), jsonResponse(200, endpointsPage))
	setupTestEnvWithHandler(t, handler)

	out, _, err := runCmd(t, "", "endpoints", "list", "-w", testWorkspaceID)
	require.NoError(t, err)
	assert.Contains(t, out, "CONNECTION")
	assert.Contains(t, out, "sql-east")
	assert.Contains(t, out, "Approved")
	assert.Contains(t, out, "sqlServer")
}

func TestEndpointsListEmpty(t *testing.T) {
	handler := newRouteHandler().
		On("GET", endpointsRoute(), jsonResponse(200, `{"value": []}`))
	setupTestEnvWithHandler(t, handler)

	out, errOut, err := runCmd(t, "", "mpe", "ls", "-w", testWorkspaceID)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "No managed private endpoints found")
}

func TestEndpointsCreate(t *testing.T) {
	handler := newRouteHandler().
		On("POST", endpointsRoute(), jsonResponse(201, `{
			"id": "55555555-5555-5555-5555-555555555555",
			"name": "sql-east",
			"provisioningState": "Provisioning",
			"targetPrivateLinkResourceId": "/subscriptions/s/resourceGroups/rg/providers/Microsoft.Sql/servers/east",
			"targetSubresourceType": "sqlServer",
			"connectionState": {"status": "Pending"}
		}`))
	setupTestEnvWithHandler(t, handler)

	out, errOut, err := runCmd(t, "", "endpoints", "create", "sql-east", "-w", testWorkspaceID,
		"--target", sqlTarget, "--subresource", "sqlServer", "--message", "please approve")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Created managed private endpoint sql-east")
	assert.Contains(t, out, "Pending")

	body := handler.body("POST " + endpointsRoute())
	assert.Equal(t, "sql-east", gjson.GetBytes(body, "name").String())
	assert.Equal(t, sqlTarget, gjson.GetBytes(body, "targetPrivateLinkResourceId").String())
	assert.Equal(t, "sqlServer", gjson.GetBytes(body, "targetSubresourceType").String())
	assert.Equal(t, "please approve", gjson.GetBytes(body, "requestMessage").String())
}

func TestEndpointsCreateRequiresTarget(t *testing.T) {
	handler := newRouteHandler()
	setupTestEnvWithHandler(t, handler)

	_, _, err := runCmd(t, "", "endpoints", "create", "sql-east", "-w", testWorkspaceID, "--subresource", "sqlServer")
	require.Error(t, err)
	assert.Equal(t, exitUsage, ExitCode(err))
	assert.Zero(t, handler.called("POST "+endpointsRoute()))
}

func TestEndpointsCreateDryRunShowsBody(t *testing.T) {
	handler := newRouteHandler()
	setupTestEnvWithHandler(t, handler)

	out, _, err := runCmd(t, "", "endpoints", "create", "sql-east", "-w", testWorkspaceID,
		"--target", sqlTarget, "--subresource", "sqlServer", "--dry-run", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, "sql-east", gjson.Get(out, "body.name").String())
	assert.Zero(t, handler.called("POST "+endpointsRoute()))
}

func TestEndpointsDeleteByName(t *testing.T) {
	handler := newRouteHandler().
		On("GET", endpointsRoute(), jsonResponse(200, endpointsPage)).
		On("DELETE", endpointsRoute()+"/"+endpointID, jsonResponse(200, ``))
	setupTestEnvWithHandler(t, handler)

	out, _, err := runCmd(t, "", "endpoints", "delete", "sql-east", "-w", testWorkspaceID, "-y", "-o", "json")
	require.NoError(t, err)
	doc := decodeObject(t, out)
	assert.Equal(t, endpointID, doc["id"])
	assert.Equal(t, true, doc["deleted"])
}

func TestEndpointsDeleteConfirmPrompt(t *testing.T) {
	handler := newRouteHandler().
		On("DELETE", endpointsRoute()+"/"+endpointID, jsonResponse(200, ``))
	setupTestEnvWithHandler(t, handler)

	_, errOut, err := runCmd(t, "yes\n", "endpoints", "rm", endpointID, "-w", testWorkspaceID)
	require.NoError(t, err)
	assert.Contains(t, errOut, "Delete managed private endpoint "+endpointID+"? [y/N]: ")
	assert.Equal(t, 1, handler.called("DELETE "+endpointsRoute()+"/"+endpointID))
}

func TestEndpointsFQDNs(t *testing.T) {
	handler := newRouteHandler().
		On("GET", endpointsRoute(), jsonResponse(200, endpointsPage)).
		On("GET", endpointsRoute()+"/"+endpointID+"/targetFQDNs", jsonResponse(200, `{"value": [
			{"fqdn": "east.database.windows.net"},
			{"fqdn": "east-replica.database.windows.net"}
		]}`))
	setupTestEnvWithHandler(t, handler)

	out, _, err := runCmd(t, "", "endpoints", "fqdns", "sql-east", "-w", testWorkspaceID)
	require.NoError(t, err)
	assert.Contains(t, out, "FQDN")
	assert.Contains(t, out, "east.database.windows.net")
	assert.Contains(t, out, "east-replica.database.windows.net")

	out, _, err = runCmd(t, "", "mpe", "fqdns", endpointID, "-w", testWorkspaceID, "-o", "json")
	require.NoError(t, err)
	items := decodeItems(t, out)
	require.Len(t, items, 2)
	assert.Equal(t, "east.database.windows.net", items[0]["fqdn"])
}

func TestEndpointsFQDNsEmpty(t *testing.T) {
	handler := newRouteHandler().
		On("GET", endpointsRoute()+"/"+endpointID+"/targetFQDNs", jsonResponse(200, `{"value": []}`))
	setupTestEnvWithHandler(t, handler)

	out, errOut, err := runCmd(t, "", "endpoints", "fqdns", endpointID, "-w", testWorkspaceID)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "No FQDNs found")
}
