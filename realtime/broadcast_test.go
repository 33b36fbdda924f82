package realtime

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"boardflow/bus"
	"boardflow/domain"
)

func collect(t *testing.T, b *bus.Bus, boardID string) *[]domain.Event {
	t.Helper()
	var got []domain.Event
	cancel := b.Subscribe(Topic(boardID), func(ev domain.Event) { got = append(got, ev) })
	t.Cleanup(cancel)
	return &got
}

func TestTopicKey(t *testing.T) {
	if Topic("abc") != "board:abc" {
		t.Fatalf("unexpected topic %q", Topic("abc"))
	}
}

func TestBroadcastShapes(t *testing.T) {
	logger, _ := test.NewNullLogger()
	eventBus := bus.New(logger)
	bc := New(eventBus)
	got := collect(t, eventBus, "b1")

	bc.ListCreated("b1", domain.List{ID: "l1", Name: "Todo", BoardID: "b1", Position: 1024})
	bc.ListUpdated("b1", domain.List{ID: "l1", Name: "Doing"})
	bc.ListDeleted("b1", "l1")
	bc.ListPositions("b1", []domain.PositionUpdate{{ID: "l1", Position: 512}})
	bc.CardCreated("b1", domain.Card{ID: "c1", Title: "task", ListID: "l1", Position: 1024})
	bc.CardUpdated("b1", "c1", "renamed")
	bc.CardDeleted("b1", "c1")
	bc.CardPositions("b1", []domain.PositionUpdate{{ID: "c1", Position: 2048, ListID: "l2"}})
	bc.Activity("b1", "u1", "Ada Lovelace", "card.moved", map[string]any{"cardCount": 1})
	bc.CommentCreated("b1", "c1", domain.Comment{ID: "cm1", CardID: "c1", Text: "hi"})

	want := []string{
		domain.EventListCreated, domain.EventListUpdated, domain.EventListDeleted,
		domain.EventListPositions, domain.EventCardCreated, domain.EventCardUpdated,
		domain.EventCardDeleted, domain.EventCardPositions, domain.EventActivity,
		domain.EventCommentCreated,
	}
	if len(*got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(*got))
	}
	for i, ev := range *got {
		if ev.Type != want[i] {
			t.Fatalf("event %d: expected type %q, got %q", i, want[i], ev.Type)
		}
	}

	events := *got
	if events[0].List == nil || events[0].List.ID != "l1" {
		t.Fatalf("list.created must carry the full list: %+v", events[0])
	}
	if events[2].ListID != "l1" {
		t.Fatalf("list.deleted must carry listId: %+v", events[2])
	}
	if events[5].ID != "c1" || events[5].Title != "renamed" {
		t.Fatalf("card.updated must carry id and title only: %+v", events[5])
	}
	if len(events[7].Updates) != 1 || events[7].Updates[0].ListID != "l2" {
		t.Fatalf("card.positions must carry listId per update: %+v", events[7])
	}
	if events[8].UserID != "u1" || events[8].Action != "card.moved" {
		t.Fatalf("activity shape wrong: %+v", events[8])
	}
	if events[9].CardID != "c1" || events[9].Comment == nil {
		t.Fatalf("comment.created shape wrong: %+v", events[9])
	}
}

func TestBroadcastScopedToBoard(t *testing.T) {
	logger, _ := test.NewNullLogger()
	eventBus := bus.New(logger)
	bc := New(eventBus)

	one := collect(t, eventBus, "b1")
	two := collect(t, eventBus, "b2")

	bc.CardDeleted("b1", "c9")

	if len(*one) != 1 {
		t.Fatalf("board b1 expected 1 event, got %d", len(*one))
	}
	if len(*two) != 0 {
		t.Fatalf("board b2 expected no events, got %d", len(*two))
	}
}
