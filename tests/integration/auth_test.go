//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/statusbeacon/beacon/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_LoginAndMe(t *testing.T) {
	client := newTestClient()
	client.LoginAs(t, "admin@example.com", "admin123")
	require.NotEmpty(t, client.Token)

	resp, err := client.GET("/api/v1/me")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Email string `json:"email"`
			Role  string `json:"role"`
			OrgID string `json:"org_id"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.Equal(t, "admin@example.com", result.Data.Email)
	assert.Equal(t, "admin", result.Data.Role)
	assert.Equal(t, acmeOrgID, result.Data.OrgID)
}

func TestAuth_WrongPassword(t *testing.T) {
	client := newTestClient()

	resp, err := client.POST("/api/v1/auth/login", map[string]string{
		"email":    "admin@example.com",
		"password": "nope",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAuth_UnknownEmailSameAsWrongPassword(t *testing.T) {
	client := newTestClient()

	resp, err := client.POST("/api/v1/auth/login", map[string]string{
		"email":    "ghost@example.com",
		"password": "whatever",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAuth_ProtectedRoutesRequireToken(t *testing.T) {
	client := newTestClient()

	for _, path := range []string{"/api/v1/me", "/api/v1/services", "/api/v1/incidents"} {
		resp, err := client.GET(path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "path %s", path)
		_ = resp.Body.Close()
	}
}

func TestAuth_MalformedBearerToken(t *testing.T) {
	client := newTestClient()
	client.Token = "not.a.jwt"

	resp, err := client.GET("/api/v1/me")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}
