// Package realtime shapes board mutation events and publishes them on the bus.
// Mutation handlers go through the Broadcaster so raw event shapes are built
// in exactly one place.
package realtime

import (
	"boardflow/bus"
	"boardflow/domain"
)

// Topic returns the bus topic scoping one board's subscriptions.
func Topic(boardID string) string {
	return "board:" + boardID
}

// Broadcaster publishes typed board events. Payload contents are the caller's
// responsibility; the broadcaster only guarantees the shape.
type Broadcaster struct {
	bus *bus.Bus
}

// New creates a Broadcaster over the given bus.
func New(b *bus.Bus) *Broadcaster {
	return &Broadcaster{bus: b}
}

func (b *Broadcaster) publish(boardID string, ev domain.Event) {
	b.bus.Publish(Topic(boardID), ev)
}

// ListCreated announces a new list, full object.
func (b *Broadcaster) ListCreated(boardID string, list domain.List) {
	b.publish(boardID, domain.Event{Type: domain.EventListCreated, List: &list})
}

// ListUpdated announces changed list fields; receivers merge by id.
func (b *Broadcaster) ListUpdated(boardID string, list domain.List) {
	b.publish(boardID, domain.Event{Type: domain.EventListUpdated, List: &list})
}

// ListDeleted announces a removed list.
func (b *Broadcaster) ListDeleted(boardID, listID string) {
	b.publish(boardID, domain.Event{Type: domain.EventListDeleted, ListID: listID})
}

// ListPositions announces a batched list reorder.
func (b *Broadcaster) ListPositions(boardID string, updates []domain.PositionUpdate) {
	b.publish(boardID, domain.Event{Type: domain.EventListPositions, Updates: updates})
}

// CardCreated announces a new card, full object.
func (b *Broadcaster) CardCreated(boardID string, card domain.Card) {
	b.publish(boardID, domain.Event{Type: domain.EventCardCreated, Card: &card})
}

// CardUpdated announces a title edit. Only the title is echoed.
func (b *Broadcaster) CardUpdated(boardID, cardID, title string) {
	b.publish(boardID, domain.Event{Type: domain.EventCardUpdated, ID: cardID, Title: title})
}

// CardDeleted announces a removed card.
func (b *Broadcaster) CardDeleted(boardID, cardID string) {
	b.publish(boardID, domain.Event{Type: domain.EventCardDeleted, ID: cardID})
}

// CardPositions announces a batched card reorder; entries carry the owning
// list so cross-list moves re-parent on receivers.
func (b *Broadcaster) CardPositions(boardID string, updates []domain.PositionUpdate) {
	b.publish(boardID, domain.Event{Type: domain.EventCardPositions, Updates: updates})
}

// Activity announces a user-facing notification. Receivers suppress events
// originating from their own user id.
func (b *Broadcaster) Activity(boardID, userID, userFullName, action string, details map[string]any) {
	b.publish(boardID, domain.Event{
		Type:         domain.EventActivity,
		UserID:       userID,
		UserFullName: userFullName,
		Action:       action,
		Details:      details,
	})
}

// CommentCreated announces a new comment on a card.
func (b *Broadcaster) CommentCreated(boardID, cardID string, comment domain.Comment) {
	b.publish(boardID, domain.Event{Type: domain.EventCommentCreated, CardID: cardID, Comment: &comment})
}
