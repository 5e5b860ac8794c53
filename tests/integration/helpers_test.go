//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/statusbeacon/beacon/internal/testutil"
	"github.com/stretchr/testify/require"
)

func loginAdmin(t *testing.T) *testutil.Client {
	t.Helper()
	client := newTestClient()
	client.LoginAs(t, "admin@example.com", "admin123")
	return client
}

func loginMember(t *testing.T) *testutil.Client {
	t.Helper()
	client := newTestClient()
	client.LoginAs(t, "user@example.com", "user123")
	return client
}

func loginGlobexAdmin(t *testing.T) *testutil.Client {
	t.Helper()
	client := newTestClient()
	client.LoginAs(t, "globex-admin@example.com", "admin123")
	return client
}

// createTestService creates a service and returns its ID. The row is
// removed via the API on cleanup so service names do not collide
// between tests.
func createTestService(t *testing.T, client *testutil.Client, name string) string {
	t.Helper()

	resp, err := client.POST("/api/v1/services", map[string]interface{}{
		"name": name,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)

	id := result.Data.ID
	t.Cleanup(func() {
		resp, err := client.DELETE("/api/v1/services/" + id)
		if err == nil {
			_ = resp.Body.Close()
		}
	})
	return id
}

// createIncident opens an incident and returns its ID.
func createIncident(t *testing.T, client *testutil.Client, serviceID, title, toState string) string {
	t.Helper()

	resp, err := client.POST("/api/v1/incidents", map[string]interface{}{
		"service_id":  serviceID,
		"title":       title,
		"description": "integration test incident",
		"to_state":    toState,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.ID
}

// serviceStatus reads the service's current status through the API.
func serviceStatus(t *testing.T, client *testutil.Client, serviceID string) string {
	t.Helper()

	resp, err := client.GET("/api/v1/services/" + serviceID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.Status
}

// resolveIncident moves an incident to resolved.
func resolveIncident(t *testing.T, client *testutil.Client, incidentID string) {
	t.Helper()

	resp, err := client.PATCH("/api/v1/incidents/"+incidentID, map[string]interface{}{
		"status": "resolved",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}
