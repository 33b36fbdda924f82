package api

import (
	"context"

	"boardflow/domain"
)

const requestBodyMaxSize = 64 * 1024 // 64 KiB

// Storage abstracts persistence for handlers. *storage.Cache satisfies it.
type Storage interface {
	CreateUser(ctx context.Context, u domain.User) error
	UserByEmail(ctx context.Context, email string) (domain.User, error)
	UserByID(ctx context.Context, id string) (domain.User, error)

	CreateWorkspace(ctx context.Context, ws domain.Workspace) error
	Workspace(ctx context.Context, id string) (domain.Workspace, error)
	AddMember(ctx context.Context, workspaceID, userID string) error
	RemoveMember(ctx context.Context, workspaceID, userID string) error
	IsMember(ctx context.Context, workspaceID, userID string) (bool, error)

	CreateBoard(ctx context.Context, b domain.Board) error
	Board(ctx context.Context, id string) (domain.Board, error)
	RenameBoard(ctx context.Context, id, name string) error
	BoardSnapshot(ctx context.Context, boardID string) (domain.BoardSnapshot, error)
	BoardIDForList(ctx context.Context, listID string) (string, error)
	BoardIDForCard(ctx context.Context, cardID string) (string, error)

	CreateList(ctx context.Context, l domain.List) error
	RenameList(ctx context.Context, id, name string) error
	DeleteList(ctx context.Context, id string) error
	ListsByBoard(ctx context.Context, boardID string) ([]domain.List, error)
	UpdateListPositions(ctx context.Context, updates []domain.PositionUpdate) error

	CreateCard(ctx context.Context, c domain.Card) error
	Card(ctx context.Context, id string) (domain.Card, error)
	UpdateCardTitle(ctx context.Context, id, title string) error
	DeleteCard(ctx context.Context, id string) error
	CardsByList(ctx context.Context, listID string) ([]domain.Card, error)
	UpdateCardPositions(ctx context.Context, updates []domain.PositionUpdate) error

	CreateComment(ctx context.Context, c domain.Comment) error
	CommentsByCard(ctx context.Context, cardID string) ([]domain.Comment, error)

	RecordActivity(ctx context.Context, a domain.Activity) error
	ActivitiesByBoard(ctx context.Context, boardID string, limit int) ([]domain.Activity, error)

	// InvalidateBoard drops any cached snapshot after a successful mutation.
	InvalidateBoard(ctx context.Context, boardID string)
}

// Authenticator is implemented by types able to verify tokens and extract the
// calling identity.
type Authenticator interface {
	IdentityFromAuthHeader(string) (Identity, error)
	IdentityFromToken(string) (Identity, error)
}

// Deduper prevents reprocessing of repeated mutation requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when the mutation fails.
	Remove(ctx context.Context, userID, key string) error
}
