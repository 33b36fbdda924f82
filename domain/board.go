package domain

import "time"

// Workspace groups boards and the users allowed to edit them.
type Workspace struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"ownerId"`
}

// Board is the topic scope for realtime fan-out. Lists and cards hang off it.
type Board struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	WorkspaceID string `json:"workspaceId"`
}

// List is an ordered column on a board. Position is a fractional order key;
// within a board, ascending Position (ties broken by ID) is the visible order.
type List struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	BoardID  string  `json:"boardId"`
	Position float64 `json:"position"`
}

// Card is an ordered item inside a list. Position is scoped to the owning list.
type Card struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	ListID      string     `json:"listId"`
	Position    float64    `json:"position"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Priority    string     `json:"priority,omitempty"`
}

// Comment is a user note attached to a card.
type Comment struct {
	ID             string    `json:"id"`
	CardID         string    `json:"cardId"`
	AuthorID       string    `json:"authorId"`
	AuthorFullName string    `json:"authorFullName"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Activity is one row of a board's audit trail.
type Activity struct {
	ID           string         `json:"id"`
	BoardID      string         `json:"boardId"`
	UserID       string         `json:"userId"`
	UserFullName string         `json:"userFullName"`
	Action       string         `json:"action"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// User is an account able to log in and join workspaces.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	FullName     string `json:"fullName"`
	PasswordHash string `json:"-"`
}

// BoardSnapshot is the authoritative read model a client fetches before (and
// after reconnecting to) the live stream. Lists are sorted by position, cards
// by position within their list.
type BoardSnapshot struct {
	Board Board  `json:"board"`
	Lists []List `json:"lists"`
	Cards []Card `json:"cards"`
}
