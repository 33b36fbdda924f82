package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"boardflow/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return s
}

func seedBoard(t *testing.T, s *Store) domain.Board {
	t.Helper()
	ctx := context.Background()
	if err := s.CreateUser(ctx, domain.User{ID: "u1", Email: "owner@example.com", FullName: "Owner", PasswordHash: "x"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.CreateWorkspace(ctx, domain.Workspace{ID: "w1", Name: "Acme", OwnerID: "u1"}); err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	board := domain.Board{ID: "b1", Name: "Roadmap", WorkspaceID: "w1"}
	if err := s.CreateBoard(ctx, board); err != nil {
		t.Fatalf("create board: %v", err)
	}
	return board
}

func TestUserRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := domain.User{ID: "u1", Email: "a@example.com", FullName: "Ada", PasswordHash: "hash"}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.CreateUser(ctx, domain.User{ID: "u2", Email: "a@example.com", FullName: "Dup", PasswordHash: "h"}); err == nil {
		t.Fatal("expected duplicate email to fail")
	}

	got, err := s.UserByEmail(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("user by email: %v", err)
	}
	if got != u {
		t.Fatalf("unexpected user: %+v", got)
	}
	if _, err := s.UserByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.UserByID(ctx, "u1"); err != nil {
		t.Fatalf("user by id: %v", err)
	}
}

func TestWorkspaceMembership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedBoard(t, s)

	member, err := s.IsMember(ctx, "w1", "u1")
	if err != nil {
		t.Fatalf("is member: %v", err)
	}
	if !member {
		t.Fatal("owner should be a member of their workspace")
	}

	if err := s.CreateUser(ctx, domain.User{ID: "u2", Email: "b@example.com", FullName: "Bea", PasswordHash: "x"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	member, err = s.IsMember(ctx, "w1", "u2")
	if err != nil || member {
		t.Fatalf("stranger should not be a member (member=%v err=%v)", member, err)
	}
	if err := s.AddMember(ctx, "w1", "u2"); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if err := s.AddMember(ctx, "w1", "u2"); err != nil {
		t.Fatalf("add member twice should be a no-op: %v", err)
	}
	member, _ = s.IsMember(ctx, "w1", "u2")
	if !member {
		t.Fatal("added user should be a member")
	}

	if err := s.RemoveMember(ctx, "w1", "u2"); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	member, _ = s.IsMember(ctx, "w1", "u2")
	if member {
		t.Fatal("removed user should no longer be a member")
	}
	if err := s.RemoveMember(ctx, "w1", "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("removing a non-member: %v", err)
	}
}

func TestWorkspaceByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedBoard(t, s)

	ws, err := s.Workspace(ctx, "w1")
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	if ws.Name != "Acme" || ws.OwnerID != "u1" {
		t.Fatalf("unexpected workspace: %+v", ws)
	}
	if _, err := s.Workspace(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBoardSnapshotOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	board := seedBoard(t, s)

	for _, l := range []domain.List{
		{ID: "l2", Name: "Doing", BoardID: board.ID, Position: 2048},
		{ID: "l1", Name: "Todo", BoardID: board.ID, Position: 1024},
	} {
		if err := s.CreateList(ctx, l); err != nil {
			t.Fatalf("create list: %v", err)
		}
	}
	for _, c := range []domain.Card{
		{ID: "c2", Title: "second", ListID: "l1", Position: 2048},
		{ID: "c1", Title: "first", ListID: "l1", Position: 1024},
		{ID: "c3", Title: "other list", ListID: "l2", Position: 1024},
	} {
		if err := s.CreateCard(ctx, c); err != nil {
			t.Fatalf("create card: %v", err)
		}
	}

	snap, err := s.BoardSnapshot(ctx, board.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Board.Name != "Roadmap" {
		t.Fatalf("unexpected board: %+v", snap.Board)
	}
	if len(snap.Lists) != 2 || snap.Lists[0].ID != "l1" || snap.Lists[1].ID != "l2" {
		t.Fatalf("lists out of order: %+v", snap.Lists)
	}
	wantCards := []string{"c1", "c2", "c3"}
	if len(snap.Cards) != len(wantCards) {
		t.Fatalf("expected %d cards, got %d", len(wantCards), len(snap.Cards))
	}
	for i, id := range wantCards {
		if snap.Cards[i].ID != id {
			t.Fatalf("card %d: got %s, want %s", i, snap.Cards[i].ID, id)
		}
	}

	if _, err := s.BoardSnapshot(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOwnershipChain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	board := seedBoard(t, s)
	if err := s.CreateList(ctx, domain.List{ID: "l1", Name: "Todo", BoardID: board.ID, Position: 1024}); err != nil {
		t.Fatalf("create list: %v", err)
	}
	if err := s.CreateCard(ctx, domain.Card{ID: "c1", Title: "t", ListID: "l1", Position: 1024}); err != nil {
		t.Fatalf("create card: %v", err)
	}

	if got, err := s.BoardIDForList(ctx, "l1"); err != nil || got != board.ID {
		t.Fatalf("board for list: %q, %v", got, err)
	}
	if got, err := s.BoardIDForCard(ctx, "c1"); err != nil || got != board.ID {
		t.Fatalf("board for card: %q, %v", got, err)
	}
	if _, err := s.BoardIDForCard(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteListCascadesCards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	board := seedBoard(t, s)
	if err := s.CreateList(ctx, domain.List{ID: "l1", Name: "Todo", BoardID: board.ID, Position: 1024}); err != nil {
		t.Fatalf("create list: %v", err)
	}
	if err := s.CreateCard(ctx, domain.Card{ID: "c1", Title: "t", ListID: "l1", Position: 1024}); err != nil {
		t.Fatalf("create card: %v", err)
	}

	if err := s.DeleteList(ctx, "l1"); err != nil {
		t.Fatalf("delete list: %v", err)
	}
	if _, err := s.Card(ctx, "c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("card should cascade away, got %v", err)
	}
	if err := s.DeleteList(ctx, "l1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleting again should report ErrNotFound, got %v", err)
	}
}

func TestUpdateCardPositionsReparents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	board := seedBoard(t, s)
	for _, l := range []domain.List{
		{ID: "lx", Name: "X", BoardID: board.ID, Position: 1024},
		{ID: "ly", Name: "Y", BoardID: board.ID, Position: 2048},
	} {
		if err := s.CreateList(ctx, l); err != nil {
			t.Fatalf("create list: %v", err)
		}
	}
	if err := s.CreateCard(ctx, domain.Card{ID: "c1", Title: "t", ListID: "lx", Position: 2048}); err != nil {
		t.Fatalf("create card: %v", err)
	}

	updates := []domain.PositionUpdate{{ID: "c1", Position: 512, ListID: "ly"}}
	if err := s.UpdateCardPositions(ctx, updates); err != nil {
		t.Fatalf("update positions: %v", err)
	}
	card, err := s.Card(ctx, "c1")
	if err != nil {
		t.Fatalf("card: %v", err)
	}
	if card.ListID != "ly" || card.Position != 512 {
		t.Fatalf("card not moved: %+v", card)
	}

	// Without a list id only the position changes.
	if err := s.UpdateCardPositions(ctx, []domain.PositionUpdate{{ID: "c1", Position: 4096}}); err != nil {
		t.Fatalf("update positions: %v", err)
	}
	card, _ = s.Card(ctx, "c1")
	if card.ListID != "ly" || card.Position != 4096 {
		t.Fatalf("unexpected card state: %+v", card)
	}
}

func TestCardDueDateRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	board := seedBoard(t, s)
	if err := s.CreateList(ctx, domain.List{ID: "l1", Name: "Todo", BoardID: board.ID, Position: 1024}); err != nil {
		t.Fatalf("create list: %v", err)
	}
	due := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	if err := s.CreateCard(ctx, domain.Card{ID: "c1", Title: "t", ListID: "l1", Position: 1024, DueDate: &due, Priority: "high"}); err != nil {
		t.Fatalf("create card: %v", err)
	}
	if err := s.CreateCard(ctx, domain.Card{ID: "c2", Title: "no due", ListID: "l1", Position: 2048}); err != nil {
		t.Fatalf("create card: %v", err)
	}

	card, err := s.Card(ctx, "c1")
	if err != nil {
		t.Fatalf("card: %v", err)
	}
	if card.DueDate == nil || !card.DueDate.Equal(due) {
		t.Fatalf("due date mismatch: %v", card.DueDate)
	}
	if card.Priority != "high" {
		t.Fatalf("priority mismatch: %q", card.Priority)
	}
	card, _ = s.Card(ctx, "c2")
	if card.DueDate != nil {
		t.Fatalf("expected nil due date, got %v", card.DueDate)
	}
}

func TestCommentsOrderedOldestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	board := seedBoard(t, s)
	if err := s.CreateList(ctx, domain.List{ID: "l1", Name: "Todo", BoardID: board.ID, Position: 1024}); err != nil {
		t.Fatalf("create list: %v", err)
	}
	if err := s.CreateCard(ctx, domain.Card{ID: "c1", Title: "t", ListID: "l1", Position: 1024}); err != nil {
		t.Fatalf("create card: %v", err)
	}

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"m2", "m1"} {
		cm := domain.Comment{
			ID: id, CardID: "c1", AuthorID: "u1", AuthorFullName: "Owner",
			Text:      "comment " + id,
			CreatedAt: base.Add(time.Duration(1-i) * time.Minute),
		}
		if err := s.CreateComment(ctx, cm); err != nil {
			t.Fatalf("create comment: %v", err)
		}
	}

	comments, err := s.CommentsByCard(ctx, "c1")
	if err != nil {
		t.Fatalf("comments: %v", err)
	}
	if len(comments) != 2 || comments[0].ID != "m1" || comments[1].ID != "m2" {
		t.Fatalf("comments out of order: %+v", comments)
	}
}

func TestActivitiesNewestFirstWithLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	board := seedBoard(t, s)

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		a := domain.Activity{
			ID: string(rune('a' + i)), BoardID: board.ID,
			UserID: "u1", UserFullName: "Owner", Action: "list.created",
			Details:   map[string]any{"index": float64(i)},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.RecordActivity(ctx, a); err != nil {
			t.Fatalf("record activity: %v", err)
		}
	}

	activities, err := s.ActivitiesByBoard(ctx, board.ID, 2)
	if err != nil {
		t.Fatalf("activities: %v", err)
	}
	if len(activities) != 2 {
		t.Fatalf("expected 2 activities, got %d", len(activities))
	}
	if activities[0].ID != "c" || activities[1].ID != "b" {
		t.Fatalf("activities out of order: %+v", activities)
	}
	if activities[0].Details["index"] != float64(2) {
		t.Fatalf("details lost: %+v", activities[0].Details)
	}
}

func TestRenameMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.RenameBoard(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("rename board: %v", err)
	}
	if err := s.RenameList(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("rename list: %v", err)
	}
	if err := s.UpdateCardTitle(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update card: %v", err)
	}
}
