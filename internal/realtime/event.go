// Package realtime delivers status change notifications to websocket
// subscribers. Writes enqueue notices into an outbox after commit;
// dispatcher workers load the affected resources and publish events to
// the hub, which fans them out to organization and public channels.
package realtime

import "github.com/statusbeacon/beacon/internal/domain"

// Event types carried on the wire.
const (
	EventTypeServiceStatus = "service_status_update"
	EventTypeIncident      = "incident_update"
)

// Event is the envelope sent to websocket subscribers.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// DeletionPayload is the event data for a removed resource. Only the
// identifier survives deletion, so that is all subscribers get.
type DeletionPayload struct {
	ID        string `json:"id"`
	IsDeleted bool   `json:"is_deleted"`
}

// OrgChannel names the private channel carrying every event for an
// organization.
func OrgChannel(org domain.OrgRef) string {
	return "org:" + org.ID
}

// PublicChannel names the unauthenticated status-page channel. Events
// for hidden services are suppressed before reaching it.
func PublicChannel(org domain.OrgRef) string {
	return "public_status:" + org.Slug
}

// PublicChannelForSlug names the public channel directly from a slug,
// for subscribers who arrive with one.
func PublicChannelForSlug(slug string) string {
	return "public_status:" + slug
}
