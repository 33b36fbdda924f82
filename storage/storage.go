// Package storage persists the board model in SQLite and layers a Redis
// read-through cache on top for board snapshots.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"boardflow/domain"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	full_name     TEXT NOT NULL,
	password_hash TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS workspaces (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	owner_id TEXT NOT NULL REFERENCES users(id)
);
CREATE TABLE IF NOT EXISTS workspace_members (
	workspace_id TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
	user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	PRIMARY KEY (workspace_id, user_id)
);
CREATE TABLE IF NOT EXISTS boards (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	workspace_id TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS lists (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	board_id TEXT NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
	position REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_lists_board_position ON lists(board_id, position);
CREATE TABLE IF NOT EXISTS cards (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	list_id     TEXT NOT NULL REFERENCES lists(id) ON DELETE CASCADE,
	position    REAL NOT NULL DEFAULT 0,
	description TEXT NOT NULL DEFAULT '',
	due_date    TIMESTAMP,
	priority    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_cards_list_position ON cards(list_id, position);
CREATE TABLE IF NOT EXISTS comments (
	id               TEXT PRIMARY KEY,
	card_id          TEXT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
	author_id        TEXT NOT NULL,
	author_full_name TEXT NOT NULL,
	body             TEXT NOT NULL,
	created_at       TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_comments_card ON comments(card_id, created_at);
CREATE TABLE IF NOT EXISTS activities (
	id             TEXT PRIMARY KEY,
	board_id       TEXT NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
	user_id        TEXT NOT NULL,
	user_full_name TEXT NOT NULL,
	action         TEXT NOT NULL,
	details        TEXT NOT NULL DEFAULT '{}',
	created_at     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activities_board ON activities(board_id, created_at DESC);
`

// Store provides access to the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite database at path with foreign keys on and applies the
// schema. Use ":memory:" for an in-process throwaway database.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty database path")
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: conn}, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateUser inserts a new account.
func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id,email,full_name,password_hash) VALUES (?,?,?,?)`,
		u.ID, u.Email, u.FullName, u.PasswordHash)
	return err
}

// UserByEmail looks an account up by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id,email,full_name,password_hash FROM users WHERE email=?`, email).
		Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

// UserByID looks an account up by id.
func (s *Store) UserByID(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id,email,full_name,password_hash FROM users WHERE id=?`, id).
		Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

// CreateWorkspace inserts a workspace and makes the owner a member.
func (s *Store) CreateWorkspace(ctx context.Context, ws domain.Workspace) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO workspaces(id,name,owner_id) VALUES (?,?,?)`,
		ws.ID, ws.Name, ws.OwnerID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO workspace_members(workspace_id,user_id) VALUES (?,?)`,
		ws.ID, ws.OwnerID); err != nil {
		return err
	}
	return tx.Commit()
}

// Workspace fetches one workspace row.
func (s *Store) Workspace(ctx context.Context, id string) (domain.Workspace, error) {
	var ws domain.Workspace
	err := s.db.QueryRowContext(ctx,
		`SELECT id,name,owner_id FROM workspaces WHERE id=?`, id).
		Scan(&ws.ID, &ws.Name, &ws.OwnerID)
	if err == sql.ErrNoRows {
		return ws, ErrNotFound
	}
	return ws, err
}

// AddMember adds a user to a workspace. Adding twice is a no-op.
func (s *Store) AddMember(ctx context.Context, workspaceID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO workspace_members(workspace_id,user_id) VALUES (?,?)`,
		workspaceID, userID)
	return err
}

// RemoveMember drops a user from a workspace's member set.
func (s *Store) RemoveMember(ctx context.Context, workspaceID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM workspace_members WHERE workspace_id=? AND user_id=?`,
		workspaceID, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// IsMember reports whether userID belongs to workspaceID.
func (s *Store) IsMember(ctx context.Context, workspaceID, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM workspace_members WHERE workspace_id=? AND user_id=?`,
		workspaceID, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateBoard inserts a board.
func (s *Store) CreateBoard(ctx context.Context, b domain.Board) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO boards(id,name,workspace_id) VALUES (?,?,?)`,
		b.ID, b.Name, b.WorkspaceID)
	return err
}

// Board fetches one board row.
func (s *Store) Board(ctx context.Context, id string) (domain.Board, error) {
	var b domain.Board
	err := s.db.QueryRowContext(ctx,
		`SELECT id,name,workspace_id FROM boards WHERE id=?`, id).
		Scan(&b.ID, &b.Name, &b.WorkspaceID)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	return b, err
}

// RenameBoard updates a board's name.
func (s *Store) RenameBoard(ctx context.Context, id, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE boards SET name=? WHERE id=?`, name, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// BoardSnapshot loads the full read model for one board: lists sorted by
// position, cards sorted by position within their list. Ties fall back to id
// so the order stays stable when two positions collide.
func (s *Store) BoardSnapshot(ctx context.Context, boardID string) (domain.BoardSnapshot, error) {
	snap := domain.BoardSnapshot{}
	board, err := s.Board(ctx, boardID)
	if err != nil {
		return snap, err
	}
	snap.Board = board

	snap.Lists, err = s.ListsByBoard(ctx, boardID)
	if err != nil {
		return snap, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.title, c.list_id, c.position, c.description, c.due_date, c.priority
		FROM cards c JOIN lists l ON c.list_id = l.id
		WHERE l.board_id = ?
		ORDER BY l.position, l.id, c.position, c.id`, boardID)
	if err != nil {
		return snap, err
	}
	defer rows.Close()
	snap.Cards = []domain.Card{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return snap, err
		}
		snap.Cards = append(snap.Cards, c)
	}
	return snap, rows.Err()
}

// BoardIDForList resolves the owning board of a list.
func (s *Store) BoardIDForList(ctx context.Context, listID string) (string, error) {
	var boardID string
	err := s.db.QueryRowContext(ctx, `SELECT board_id FROM lists WHERE id=?`, listID).Scan(&boardID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return boardID, err
}

// BoardIDForCard resolves the owning board of a card via its list.
func (s *Store) BoardIDForCard(ctx context.Context, cardID string) (string, error) {
	var boardID string
	err := s.db.QueryRowContext(ctx, `
		SELECT l.board_id FROM cards c JOIN lists l ON c.list_id = l.id WHERE c.id=?`, cardID).
		Scan(&boardID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return boardID, err
}

// CreateList inserts a list.
func (s *Store) CreateList(ctx context.Context, l domain.List) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lists(id,name,board_id,position) VALUES (?,?,?,?)`,
		l.ID, l.Name, l.BoardID, l.Position)
	return err
}

// RenameList updates a list's name.
func (s *Store) RenameList(ctx context.Context, id, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE lists SET name=? WHERE id=?`, name, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteList removes a list; its cards cascade away.
func (s *Store) DeleteList(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM lists WHERE id=?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListsByBoard returns a board's lists sorted by position, then id.
func (s *Store) ListsByBoard(ctx context.Context, boardID string) ([]domain.List, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,name,board_id,position FROM lists WHERE board_id=? ORDER BY position, id`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lists := []domain.List{}
	for rows.Next() {
		var l domain.List
		if err := rows.Scan(&l.ID, &l.Name, &l.BoardID, &l.Position); err != nil {
			return nil, err
		}
		lists = append(lists, l)
	}
	return lists, rows.Err()
}

// UpdateListPositions applies a batched reorder in one transaction.
func (s *Store) UpdateListPositions(ctx context.Context, updates []domain.PositionUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, u := range updates {
		if _, err := tx.ExecContext(ctx,
			`UPDATE lists SET position=? WHERE id=?`, u.Position, u.ID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CreateCard inserts a card.
func (s *Store) CreateCard(ctx context.Context, c domain.Card) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cards(id,title,list_id,position,description,due_date,priority) VALUES (?,?,?,?,?,?,?)`,
		c.ID, c.Title, c.ListID, c.Position, c.Description, c.DueDate, c.Priority)
	return err
}

// Card fetches one card row.
func (s *Store) Card(ctx context.Context, id string) (domain.Card, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,title,list_id,position,description,due_date,priority FROM cards WHERE id=?`, id)
	c, err := scanCard(row)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

// UpdateCardTitle updates a card's title.
func (s *Store) UpdateCardTitle(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE cards SET title=? WHERE id=?`, title, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteCard removes a card.
func (s *Store) DeleteCard(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cards WHERE id=?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// CardsByList returns a list's cards sorted by position, then id.
func (s *Store) CardsByList(ctx context.Context, listID string) ([]domain.Card, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,title,list_id,position,description,due_date,priority FROM cards WHERE list_id=? ORDER BY position, id`, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cards := []domain.Card{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// UpdateCardPositions applies a batched reorder in one transaction. Entries
// carrying a list id also re-parent the card.
func (s *Store) UpdateCardPositions(ctx context.Context, updates []domain.PositionUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, u := range updates {
		if u.ListID != "" {
			_, err = tx.ExecContext(ctx,
				`UPDATE cards SET position=?, list_id=? WHERE id=?`, u.Position, u.ListID, u.ID)
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE cards SET position=? WHERE id=?`, u.Position, u.ID)
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CreateComment inserts a comment.
func (s *Store) CreateComment(ctx context.Context, c domain.Comment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO comments(id,card_id,author_id,author_full_name,body,created_at) VALUES (?,?,?,?,?,?)`,
		c.ID, c.CardID, c.AuthorID, c.AuthorFullName, c.Text, c.CreatedAt)
	return err
}

// CommentsByCard returns a card's comments, oldest first.
func (s *Store) CommentsByCard(ctx context.Context, cardID string) ([]domain.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,card_id,author_id,author_full_name,body,created_at FROM comments WHERE card_id=? ORDER BY created_at, id`, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	comments := []domain.Comment{}
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.CardID, &c.AuthorID, &c.AuthorFullName, &c.Text, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// RecordActivity appends one audit row.
func (s *Store) RecordActivity(ctx context.Context, a domain.Activity) error {
	details := "{}"
	if a.Details != nil {
		data, err := json.Marshal(a.Details)
		if err != nil {
			return err
		}
		details = string(data)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activities(id,board_id,user_id,user_full_name,action,details,created_at) VALUES (?,?,?,?,?,?,?)`,
		a.ID, a.BoardID, a.UserID, a.UserFullName, a.Action, details, a.CreatedAt)
	return err
}

// ActivitiesByBoard returns the newest limit audit rows for a board.
func (s *Store) ActivitiesByBoard(ctx context.Context, boardID string, limit int) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id,board_id,user_id,user_full_name,action,details,created_at
		FROM activities WHERE board_id=? ORDER BY created_at DESC, id DESC LIMIT ?`, boardID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	activities := []domain.Activity{}
	for rows.Next() {
		var a domain.Activity
		var details string
		if err := rows.Scan(&a.ID, &a.BoardID, &a.UserID, &a.UserFullName, &a.Action, &details, &a.CreatedAt); err != nil {
			return nil, err
		}
		if details != "" && details != "{}" {
			if err := json.Unmarshal([]byte(details), &a.Details); err != nil {
				return nil, err
			}
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (domain.Card, error) {
	var c domain.Card
	var due sql.NullTime
	err := row.Scan(&c.ID, &c.Title, &c.ListID, &c.Position, &c.Description, &due, &c.Priority)
	if err != nil {
		return c, err
	}
	if due.Valid {
		t := due.Time
		c.DueDate = &t
	}
	return c, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
