package domain

// Closed set of event types delivered on a board topic.
const (
	EventHello          = "hello"
	EventListCreated    = "list.created"
	EventListUpdated    = "list.updated"
	EventListDeleted    = "list.deleted"
	EventListPositions  = "list.positions"
	EventCardCreated    = "card.created"
	EventCardUpdated    = "card.updated"
	EventCardDeleted    = "card.deleted"
	EventCardPositions  = "card.positions"
	EventActivity       = "activity"
	EventCommentCreated = "comment.created"
)

// PositionUpdate is one entry of a batched reorder. ListID is set only for
// card moves, where it carries the (possibly new) owning list.
type PositionUpdate struct {
	ID       string  `json:"id"`
	Position float64 `json:"position"`
	ListID   string  `json:"listId,omitempty"`
}

// Event is a transient board message. It is never persisted; it exists only
// for the duration of delivery. Only the fields relevant to Type are set, the
// rest marshal away under omitempty.
type Event struct {
	Type    string `json:"type"`
	BoardID string `json:"boardId,omitempty"`

	List   *List  `json:"list,omitempty"`
	ListID string `json:"listId,omitempty"`

	Card  *Card  `json:"card,omitempty"`
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`

	Updates []PositionUpdate `json:"updates,omitempty"`

	UserID       string         `json:"userId,omitempty"`
	UserFullName string         `json:"userFullName,omitempty"`
	Action       string         `json:"action,omitempty"`
	Details      map[string]any `json:"details,omitempty"`

	CardID  string   `json:"cardId,omitempty"`
	Comment *Comment `json:"comment,omitempty"`
}
