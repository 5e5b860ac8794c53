//go:build integration

package integration

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/statusbeacon/beacon/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func wsURL(path string) string {
	return "ws" + strings.TrimPrefix(testServer.URL, "http") + path
}

func dialWS(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(path), nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readEvents reads events until the wanted count or the deadline.
func readEvents(t *testing.T, conn *websocket.Conn, want int) []realtime.Event {
	t.Helper()

	var events []realtime.Event
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for len(events) < want {
		var ev realtime.Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event: %v (got %d of %d)", err, len(events), want)
		}
		events = append(events, ev)
	}
	return events
}

func expectClose(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, code), "expected close code %d, got %v", code, err)
}

func eventTypes(events []realtime.Event) []string {
	types := make([]string, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}

func TestRealtime_OrgChannelReceivesIncidentEvents(t *testing.T) {
	admin := loginAdmin(t)
	serviceID := createTestService(t, admin, "Realtime Service")

	conn := dialWS(t, "/ws/status/org?token="+admin.Token)

	createIncident(t, admin, serviceID, "Realtime incident", "degraded")

	events := readEvents(t, conn, 2)
	types := eventTypes(events)
	assert.Contains(t, types, "incident_update")
	assert.Contains(t, types, "service_status_update")
}

func TestRealtime_OrgChannelReceivesDeletionNotice(t *testing.T) {
	admin := loginAdmin(t)
	serviceID := createTestService(t, admin, "Deletion Notice Service")
	incidentID := createIncident(t, admin, serviceID, "Short-lived incident", "degraded")

	conn := dialWS(t, "/ws/status/org?token="+admin.Token)

	resp, err := admin.DELETE("/api/v1/incidents/" + incidentID)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()

	events := readEvents(t, conn, 2)
	var deletion map[string]interface{}
	for _, ev := range events {
		if ev.Type != "incident_update" {
			continue
		}
		data, ok := ev.Data.(map[string]interface{})
		require.True(t, ok)
		deletion = data
	}
	require.NotNil(t, deletion, "expected an incident deletion event")
	assert.Equal(t, incidentID, deletion["id"])
	assert.Equal(t, true, deletion["is_deleted"])
}

func TestRealtime_PublicChannelReceivesActiveServiceEvents(t *testing.T) {
	admin := loginAdmin(t)
	serviceID := createTestService(t, admin, "Public Realtime Service")

	conn := dialWS(t, "/ws/status/public/acme")

	createIncident(t, admin, serviceID, "Visible incident", "partial")

	events := readEvents(t, conn, 2)
	types := eventTypes(events)
	assert.Contains(t, types, "incident_update")
	assert.Contains(t, types, "service_status_update")
}

func TestRealtime_PublicChannelSuppressesHiddenService(t *testing.T) {
	admin := loginAdmin(t)
	serviceID := createTestService(t, admin, "Hidden Realtime Service")

	resp, err := admin.PATCH("/api/v1/services/"+serviceID, map[string]interface{}{
		"is_active": false,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	conn := dialWS(t, "/ws/status/public/acme")

	createIncident(t, admin, serviceID, "Invisible incident", "degraded")

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev realtime.Event
	err = conn.ReadJSON(&ev)
	require.Error(t, err, "hidden service events must not reach the public channel, got %+v", ev)
}

func TestRealtime_MissingTokenClosesWith4001(t *testing.T) {
	conn := dialWS(t, "/ws/status/org")
	expectClose(t, conn, 4001)
}

func TestRealtime_InvalidTokenClosesWith4002(t *testing.T) {
	conn := dialWS(t, "/ws/status/org?token=garbage")
	expectClose(t, conn, 4002)
}

func TestRealtime_UnknownUserClosesWith4003(t *testing.T) {
	ctx := context.Background()

	// A valid token whose subject no longer exists.
	hash, err := bcrypt.GenerateFromPassword([]byte("temp123"), bcrypt.MinCost)
	require.NoError(t, err)

	var tempUserID string
	err = testDB.QueryRow(ctx,
		`INSERT INTO users (org_id, email, password_hash, role)
		 VALUES ($1, 'temp@example.com', $2, 'member') RETURNING id`,
		acmeOrgID, string(hash),
	).Scan(&tempUserID)
	require.NoError(t, err)

	client := newTestClient()
	client.LoginAs(t, "temp@example.com", "temp123")

	_, err = testDB.Exec(ctx, `DELETE FROM users WHERE id = $1`, tempUserID)
	require.NoError(t, err)

	conn := dialWS(t, "/ws/status/org?token="+client.Token)
	expectClose(t, conn, 4003)
}
