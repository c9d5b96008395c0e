package cmd

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// setupAuthEnv starts a Fabric stub and an in-memory keyring with no
// environment overrides.
func setupAuthEnv(t *testing.T, handler *routeHandler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	withTestKeyring(t)
	for _, key := range []string{"SLL_FABRIC_URL", "SLL_POWERBI_URL", "SLL_AZURE_URL", "SLL_GRAPH_URL"} {
		t.Setenv(key, "")
	}
	return srv
}

func TestAuthLoginStatusLogout(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/v1/workspaces", jsonResponse(200, workspacesPage))
	srv := setupAuthEnv(t, handler)

	_, errOut, err := runCmd(t, "", "auth", "login", "--token", "tok-abcdef123456", "--profile", "prod",
		"--fabric-url", srv.URL+"/", "--verify")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Saved credentials to profile prod")
	assert.Equal(t, 1, handler.called("GET /v1/workspaces"))

	out, _, err := runCmd(t, "", "auth", "status", "-o", "json")
	require.NoError(t, err)
	assert.True(t, gjson.Get(out, "authenticated").Bool())
	assert.Equal(t, "prod", gjson.Get(out, "profile").String())
	assert.Equal(t, "keyring", gjson.Get(out, "source").String())
	assert.Equal(t, "tok-********3456", gjson.Get(out, "token").String())
	assert.Equal(t, srv.URL, gjson.Get(out, "base_urls.fabric").String())
	assert.NotEmpty(t, gjson.Get(out, "base_urls.powerbi").String())

	out, _, err = runCmd(t, "", "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Fabric URL:")
	assert.NotContains(t, out, "tok-abcdef123456")

	_, errOut, err = runCmd(t, "", "auth", "logout")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Profile prod removed")

	out, _, err = runCmd(t, "", "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not authenticated.")
}

func TestAuthLoginTokenFromStdin(t *testing.T) {
	setupAuthEnv(t, newRouteHandler())

	out, _, err := runCmd(t, "stdin-token-value\n", "auth", "login", "--token", "@-", "-o", "json")
	require.NoError(t, err)
	doc := decodeObject(t, out)
	assert.Equal(t, "default", doc["profile"])
	assert.Equal(t, true, doc["saved"])

	out, _, err = runCmd(t, "", "auth", "status", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, "stdi*********alue", gjson.Get(out, "token").String())
}

func TestAuthLoginRequiresToken(t *testing.T) {
	setupAuthEnv(t, newRouteHandler())

	_, _, err := runCmd(t, "", "auth", "login")
	require.Error(t, err)
	assert.Equal(t, exitUsage, ExitCode(err))
}

func TestAuthLoginVerifyFailureSavesNothing(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/v1/workspaces", jsonResponse(401, `{"errorCode": "InvalidToken", "message": "bad token"}`))
	srv := setupAuthEnv(t, handler)

	_, errOut, err := runCmd(t, "", "auth", "login", "--token", "tok-abcdef123456", "--fabric-url", srv.URL, "--verify")
	require.Error(t, err)
	assert.Equal(t, exitAuth, ExitCode(err))
	assert.Contains(t, err.Error(), "token verification failed")
	assert.Contains(t, errOut, "sll auth login")

	out, _, err := runCmd(t, "", "auth", "profiles", "-o", "json")
	require.NoError(t, err)
	assert.Empty(t, decodeItems(t, out))
}

func TestAuthProfilesAndUse(t *testing.T) {
	setupAuthEnv(t, newRouteHandler())

	for _, name := range []string{"dev", "prod"} {
		_, _, err := runCmd(t, "", "auth", "login", "--token", "token-for-"+name, "--profile", name)
		require.NoError(t, err)
	}

	out, _, err := runCmd(t, "", "auth", "profiles", "-o", "json")
	require.NoError(t, err)
	rows := decodeItems(t, out)
	require.Len(t, rows, 2)
	current := map[string]bool{}
	for _, r := range rows {
		current[r["name"].(string)] = r["current"].(bool)
	}
	assert.Equal(t, map[string]bool{"dev": false, "prod": true}, current)

	_, errOut, err := runCmd(t, "", "auth", "use", "dev")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Now using profile dev")

	out, _, err = runCmd(t, "", "auth", "ls")
	require.NoError(t, err)
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "dev") {
			assert.Contains(t, line, "yes")
		}
	}

	_, _, err = runCmd(t, "", "auth", "use", "staging")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `profile "staging" does not exist`)
}

func TestAuthStatusNotConfiguredJSON(t *testing.T) {
	setupAuthEnv(t, newRouteHandler())

	out, _, err := runCmd(t, "", "auth", "status", "-o", "json")
	require.NoError(t, err)
	assert.False(t, gjson.Get(out, "authenticated").Bool())
}

func TestCommandWithoutCredentials(t *testing.T) {
	setupAuthEnv(t, newRouteHandler())

	_, errOut, err := runCmd(t, "", "workspaces", "list")
	require.Error(t, err)
	assert.Equal(t, exitAuth, ExitCode(err))
	assert.Contains(t, errOut, "sll auth login")
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "***", maskToken("abc"))
	assert.Equal(t, "abcd****mnop", maskToken("abcdefghmnop"))
}
