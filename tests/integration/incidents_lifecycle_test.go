//go:build integration

package integration

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/statusbeacon/beacon/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncidents_CreateSetsServiceStatus(t *testing.T) {
	client := loginAdmin(t)
	serviceID := createTestService(t, client, "Payments API")

	assert.Equal(t, "operational", serviceStatus(t, client, serviceID))

	resp, err := client.POST("/api/v1/incidents", map[string]interface{}{
		"service_id":  serviceID,
		"title":       "Elevated error rate",
		"description": "5xx spike on checkout",
		"to_state":    "degraded",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data struct {
			ID        string `json:"id"`
			Status    string `json:"status"`
			FromState string `json:"from_state"`
			ToState   string `json:"to_state"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)

	assert.Equal(t, "investigating", result.Data.Status)
	assert.Equal(t, "operational", result.Data.FromState)
	assert.Equal(t, "degraded", result.Data.ToState)
	assert.Equal(t, "degraded", serviceStatus(t, client, serviceID))
}

func TestIncidents_InvalidTransitionRejected(t *testing.T) {
	client := loginAdmin(t)
	serviceID := createTestService(t, client, "Search API")

	// operational -> operational is not a worsening transition
	resp, err := client.POST("/api/v1/incidents", map[string]interface{}{
		"service_id":  serviceID,
		"title":       "No-op incident",
		"description": "nothing happened",
		"to_state":    "operational",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	// major is terminal: nothing can be opened on top of it
	createIncident(t, client, serviceID, "Full outage", "major")

	resp, err = client.POST("/api/v1/incidents", map[string]interface{}{
		"service_id":  serviceID,
		"title":       "Another incident",
		"description": "on a major service",
		"to_state":    "degraded",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestIncidents_ResolveFallsBackToLatestUnresolved(t *testing.T) {
	client := loginAdmin(t)
	serviceID := createTestService(t, client, "Billing API")

	first := createIncident(t, client, serviceID, "Slow responses", "degraded")
	second := createIncident(t, client, serviceID, "Partial outage", "partial")
	require.Equal(t, "partial", serviceStatus(t, client, serviceID))

	// Resolving the newest incident re-derives from the remaining one.
	resolveIncident(t, client, second)
	assert.Equal(t, "degraded", serviceStatus(t, client, serviceID))

	resolveIncident(t, client, first)
	assert.Equal(t, "operational", serviceStatus(t, client, serviceID))
}

func TestIncidents_ResolvedIncidentCannotReopen(t *testing.T) {
	client := loginAdmin(t)
	serviceID := createTestService(t, client, "Login Service")

	incidentID := createIncident(t, client, serviceID, "Login failures", "major")
	resolveIncident(t, client, incidentID)

	resp, err := client.PATCH("/api/v1/incidents/"+incidentID, map[string]interface{}{
		"status": "investigating",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := testutil.ReadBody(t, resp)
	assert.Contains(t, body, "create a new incident")
}

func TestIncidents_ResolvedAtSetOnce(t *testing.T) {
	client := loginAdmin(t)
	serviceID := createTestService(t, client, "CDN")

	incidentID := createIncident(t, client, serviceID, "Cache misses", "degraded")
	resolveIncident(t, client, incidentID)

	resp, err := client.GET("/api/v1/incidents/" + incidentID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var first struct {
		Data struct {
			ResolvedAt string `json:"resolved_at"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &first)
	require.NotEmpty(t, first.Data.ResolvedAt)

	// A second resolved update must not move the timestamp.
	resp, err = client.PATCH("/api/v1/incidents/"+incidentID, map[string]interface{}{
		"status":      "resolved",
		"description": "post-mortem attached",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var second struct {
		Data struct {
			ResolvedAt  string `json:"resolved_at"`
			Description string `json:"description"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &second)
	assert.Equal(t, first.Data.ResolvedAt, second.Data.ResolvedAt)
	assert.Equal(t, "post-mortem attached", second.Data.Description)
}

func TestIncidents_UpdateIgnoresToState(t *testing.T) {
	client := loginAdmin(t)
	serviceID := createTestService(t, client, "Webhooks")

	incidentID := createIncident(t, client, serviceID, "Delivery delays", "degraded")

	resp, err := client.PATCH("/api/v1/incidents/"+incidentID, map[string]interface{}{
		"title":    "Delivery delays (updated)",
		"to_state": "major",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Title   string `json:"title"`
			ToState string `json:"to_state"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.Equal(t, "Delivery delays (updated)", result.Data.Title)
	assert.Equal(t, "degraded", result.Data.ToState)
	assert.Equal(t, "degraded", serviceStatus(t, client, serviceID))
}

func TestIncidents_DeleteRecomputesServiceStatus(t *testing.T) {
	client := loginAdmin(t)
	serviceID := createTestService(t, client, "Notifications Pipe")

	incidentID := createIncident(t, client, serviceID, "Queue backlog", "partial")
	require.Equal(t, "partial", serviceStatus(t, client, serviceID))

	resp, err := client.DELETE("/api/v1/incidents/" + incidentID)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()

	assert.Equal(t, "operational", serviceStatus(t, client, serviceID))

	resp, err = client.GET("/api/v1/incidents/" + incidentID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestIncidents_RecomputeEndpoint(t *testing.T) {
	client := loginAdmin(t)
	serviceID := createTestService(t, client, "Metrics Store")

	createIncident(t, client, serviceID, "Write amplification", "degraded")

	resp, err := client.POST("/api/v1/services/"+serviceID+"/recompute", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.Equal(t, "degraded", result.Data.Status)
}

func TestIncidents_ResultingStateInGetResponse(t *testing.T) {
	client := loginAdmin(t)
	serviceID := createTestService(t, client, "Object Storage")

	first := createIncident(t, client, serviceID, "Read latency", "degraded")
	second := createIncident(t, client, serviceID, "Write failures", "partial")

	resp, err := client.GET("/api/v1/incidents/" + second)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			ResultingState string `json:"resulting_state"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.Equal(t, "degraded", result.Data.ResultingState)

	resp, err = client.GET("/api/v1/incidents/" + first)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var older struct {
		Data struct {
			ResultingState string `json:"resulting_state"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &older)
	assert.Equal(t, "partial", older.Data.ResultingState)
}

func TestIncidents_MemberCannotWrite(t *testing.T) {
	admin := loginAdmin(t)
	serviceID := createTestService(t, admin, "Admin Only Service")

	member := loginMember(t)
	resp, err := member.POST("/api/v1/incidents", map[string]interface{}{
		"service_id":  serviceID,
		"title":       "Forbidden",
		"description": "member write attempt",
		"to_state":    "degraded",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	// Reads are fine for members.
	resp, err = member.GET("/api/v1/incidents")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestIncidents_CrossOrgIsolation(t *testing.T) {
	acme := loginAdmin(t)
	serviceID := createTestService(t, acme, "Acme Internal")
	incidentID := createIncident(t, acme, serviceID, "Acme incident", "degraded")

	globex := loginGlobexAdmin(t)

	resp, err := globex.GET("/api/v1/incidents/" + incidentID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = globex.POST("/api/v1/incidents", map[string]interface{}{
		"service_id":  serviceID,
		"title":       "Cross-org write",
		"description": "should not land",
		"to_state":    "degraded",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestIncidents_ConcurrentCreatesSerialize(t *testing.T) {
	client := loginAdmin(t)
	serviceID := createTestService(t, client, "Concurrent Create Target")

	type createResult struct {
		status    int
		fromState string
		err       error
	}

	open := func(toState string) createResult {
		resp, err := client.POST("/api/v1/incidents", map[string]interface{}{
			"service_id":  serviceID,
			"title":       "concurrent " + toState,
			"description": "two writers, one service",
			"to_state":    toState,
		})
		if err != nil {
			return createResult{err: err}
		}
		defer resp.Body.Close()

		res := createResult{status: resp.StatusCode}
		if resp.StatusCode == http.StatusCreated {
			var result struct {
				Data struct {
					FromState string `json:"from_state"`
				} `json:"data"`
			}
			res.err = json.NewDecoder(resp.Body).Decode(&result)
			res.fromState = result.Data.FromState
		}
		return res
	}

	// Both writers race for the service row lock. Whichever commits
	// first must be visible to the other as its from_state snapshot.
	var wg sync.WaitGroup
	var degraded, major createResult
	start := make(chan struct{})
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		degraded = open("degraded")
	}()
	go func() {
		defer wg.Done()
		<-start
		major = open("major")
	}()
	close(start)
	wg.Wait()

	require.NoError(t, degraded.err)
	require.NoError(t, major.err)

	// major is reachable from both operational and degraded, so it
	// always succeeds regardless of commit order.
	require.Equal(t, http.StatusCreated, major.status)

	if degraded.status == http.StatusCreated {
		// degraded committed first: major snapshotted its to_state.
		assert.Equal(t, "operational", degraded.fromState)
		assert.Equal(t, "degraded", major.fromState)
	} else {
		// major committed first: degraded saw major and was rejected.
		assert.Equal(t, http.StatusBadRequest, degraded.status)
		assert.Equal(t, "operational", major.fromState)
	}

	assert.Equal(t, "major", serviceStatus(t, client, serviceID))
}
