package client

import (
	"sort"
	"sync"

	"boardflow/domain"
	"boardflow/position"
)

// ListMove is the persistence request a finished list drag produces.
type ListMove struct {
	ListID   string  `json:"listId"`
	Position float64 `json:"newPosition"`
}

// CardMove is the persistence request a finished card drag produces.
type CardMove struct {
	CardID   string  `json:"cardId"`
	Position float64 `json:"newPosition"`
	ListID   string  `json:"newListId"`
}

// Notification is surfaced for activity events originated by other users.
type Notification struct {
	UserID       string
	UserFullName string
	Action       string
	Details      map[string]any
}

// Config carries the controller's outbound hooks. Any nil hook is a no-op.
type Config struct {
	// CurrentUserID suppresses notifications for the user's own activity.
	CurrentUserID string
	// MoveList is called with the persistence request for a finished list drag.
	MoveList func(ListMove)
	// MoveCard is called with the persistence request for a finished card drag.
	MoveCard func(CardMove)
	// Notify receives activity notifications from other users.
	Notify func(Notification)
}

// Controller maintains the locally displayed ordering of one board. Drag
// gestures update it optimistically, stream events reconcile it. Positions
// computed at drag end are sent to the server but never applied locally; the
// stream echo is the single writer of authoritative order.
type Controller struct {
	mu  sync.Mutex
	cfg Config

	lists    []domain.List
	cards    []domain.Card
	comments map[string][]domain.Comment

	draggedListID string
	draggedCardID string
}

func New(cfg Config) *Controller {
	return &Controller{
		cfg:      cfg,
		comments: make(map[string][]domain.Comment),
	}
}

// Load replaces local state with a freshly fetched snapshot. Call it after
// every (re)connect, before trusting the stream.
func (c *Controller) Load(snap domain.BoardSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists = append([]domain.List(nil), snap.Lists...)
	c.cards = append([]domain.Card(nil), snap.Cards...)
	c.comments = make(map[string][]domain.Comment)
	c.sortLists()
	c.sortCards()
}

// Lists returns the lists in display order.
func (c *Controller) Lists() []domain.List {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.List(nil), c.lists...)
}

// CardsIn returns the cards of one list in display order.
func (c *Controller) CardsIn(listID string) []domain.Card {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Card
	for _, card := range c.cards {
		if card.ListID == listID {
			out = append(out, card)
		}
	}
	return out
}

// Comments returns the locally known comments of one card, oldest first.
func (c *Controller) Comments(cardID string) []domain.Comment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Comment(nil), c.comments[cardID]...)
}

// StartListDrag marks a list as the active drag preview.
func (c *Controller) StartListDrag(listID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draggedListID = listID
}

// StartCardDrag marks a card as the active drag preview.
func (c *Controller) StartCardDrag(cardID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draggedCardID = cardID
}

// DraggedList reports the list currently rendered as a drag preview.
func (c *Controller) DraggedList() (domain.List, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draggedListID == "" {
		return domain.List{}, false
	}
	if i := c.listIndex(c.draggedListID); i >= 0 {
		return c.lists[i], true
	}
	return domain.List{}, false
}

// DraggedCard reports the card currently rendered as a drag preview.
func (c *Controller) DraggedCard() (domain.Card, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draggedCardID == "" {
		return domain.Card{}, false
	}
	if i := c.cardIndex(c.draggedCardID); i >= 0 {
		return c.cards[i], true
	}
	return domain.Card{}, false
}

// EndListDrag finishes the active list drag over the given target slot.
// The new position is computed from the neighbors in the reordered array and
// sent to the server; local order is left for the stream echo to apply.
func (c *Controller) EndListDrag(targetIndex int) {
	c.mu.Lock()
	listID := c.draggedListID
	c.draggedListID = ""
	from := c.listIndex(listID)
	if from < 0 {
		c.mu.Unlock()
		return
	}
	reordered := moveIndex(c.lists, from, targetIndex)
	to := indexOfList(reordered, listID)
	var before, after *float64
	if to > 0 {
		before = &reordered[to-1].Position
	}
	if to < len(reordered)-1 {
		after = &reordered[to+1].Position
	}
	pos := position.Between(before, after)
	c.mu.Unlock()

	if c.cfg.MoveList != nil {
		c.cfg.MoveList(ListMove{ListID: listID, Position: pos})
	}
}

// DropCardOnCard finishes the active card drag over another card. The dragged
// card takes the target's slot among that list's cards. Only listId changes
// locally, for immediate visual re-parenting.
func (c *Controller) DropCardOnCard(targetCardID string) {
	c.mu.Lock()
	cardID := c.draggedCardID
	c.draggedCardID = ""
	ci := c.cardIndex(cardID)
	ti := c.cardIndex(targetCardID)
	if ci < 0 || ti < 0 || cardID == targetCardID {
		c.mu.Unlock()
		return
	}
	listID := c.cards[ti].ListID

	var siblings []domain.Card
	for _, card := range c.cards {
		if card.ListID == listID && card.ID != cardID {
			siblings = append(siblings, card)
		}
	}
	slot := 0
	for i, card := range siblings {
		if card.ID == targetCardID {
			slot = i
			break
		}
	}
	var before, after *float64
	if slot > 0 {
		before = &siblings[slot-1].Position
	}
	after = &siblings[slot].Position
	pos := position.Between(before, after)

	c.cards[ci].ListID = listID
	c.mu.Unlock()

	if c.cfg.MoveCard != nil {
		c.cfg.MoveCard(CardMove{CardID: cardID, Position: pos, ListID: listID})
	}
}

// DropCardOnList finishes the active card drag over an empty list container:
// the card is appended at the end of that list.
func (c *Controller) DropCardOnList(listID string) {
	c.mu.Lock()
	cardID := c.draggedCardID
	c.draggedCardID = ""
	ci := c.cardIndex(cardID)
	if ci < 0 {
		c.mu.Unlock()
		return
	}
	var siblings []float64
	for _, card := range c.cards {
		if card.ListID == listID && card.ID != cardID {
			siblings = append(siblings, card.Position)
		}
	}
	pos := position.Next(siblings)
	c.cards[ci].ListID = listID
	c.mu.Unlock()

	if c.cfg.MoveCard != nil {
		c.cfg.MoveCard(CardMove{CardID: cardID, Position: pos, ListID: listID})
	}
}

// InsertList adds an optimistic local list, typically carrying a temporary
// client-generated id. Idempotent by id.
func (c *Controller) InsertList(l domain.List) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listIndex(l.ID) >= 0 {
		return
	}
	c.lists = append(c.lists, l)
	c.sortLists()
}

// InsertCard adds an optimistic local card. Idempotent by id.
func (c *Controller) InsertCard(card domain.Card) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cardIndex(card.ID) >= 0 {
		return
	}
	c.cards = append(c.cards, card)
	c.sortCards()
}

// InsertComment adds an optimistic local comment. Idempotent by id.
func (c *Controller) InsertComment(cm domain.Comment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertCommentLocked(cm)
}

// ResolveListCreated swaps a temporary list id for the server-confirmed list
// once the creation request resolves. If the stream echo already inserted the
// confirmed list, the temporary entry is simply dropped.
func (c *Controller) ResolveListCreated(tempID string, confirmed domain.List) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ti := c.listIndex(tempID)
	if c.listIndex(confirmed.ID) >= 0 {
		if ti >= 0 {
			c.lists = append(c.lists[:ti], c.lists[ti+1:]...)
		}
		return
	}
	if ti < 0 {
		c.lists = append(c.lists, confirmed)
	} else {
		c.lists[ti] = confirmed
	}
	for i := range c.cards {
		if c.cards[i].ListID == tempID {
			c.cards[i].ListID = confirmed.ID
		}
	}
	c.sortLists()
}

// ResolveCardCreated swaps a temporary card id for the server-confirmed card.
func (c *Controller) ResolveCardCreated(tempID string, confirmed domain.Card) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ti := c.cardIndex(tempID)
	if c.cardIndex(confirmed.ID) >= 0 {
		if ti >= 0 {
			c.cards = append(c.cards[:ti], c.cards[ti+1:]...)
		}
		return
	}
	if ti < 0 {
		c.cards = append(c.cards, confirmed)
	} else {
		c.cards[ti] = confirmed
	}
	c.sortCards()
}

// ApplyEvent reconciles one stream event into local state. It is idempotent
// to duplicate deliveries and to the echo of the client's own mutations.
func (c *Controller) ApplyEvent(ev domain.Event) {
	switch ev.Type {
	case domain.EventHello:
		return
	case domain.EventActivity:
		if ev.UserID != c.cfg.CurrentUserID && c.cfg.Notify != nil {
			c.cfg.Notify(Notification{
				UserID:       ev.UserID,
				UserFullName: ev.UserFullName,
				Action:       ev.Action,
				Details:      ev.Details,
			})
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch ev.Type {
	case domain.EventListCreated:
		if ev.List == nil || c.listIndex(ev.List.ID) >= 0 {
			return
		}
		c.lists = append(c.lists, *ev.List)
		c.sortLists()
	case domain.EventListUpdated:
		if ev.List == nil {
			return
		}
		if i := c.listIndex(ev.List.ID); i >= 0 {
			if ev.List.Name != "" {
				c.lists[i].Name = ev.List.Name
			}
		}
	case domain.EventListDeleted:
		if i := c.listIndex(ev.ListID); i >= 0 {
			c.lists = append(c.lists[:i], c.lists[i+1:]...)
		}
		kept := c.cards[:0]
		for _, card := range c.cards {
			if card.ListID != ev.ListID {
				kept = append(kept, card)
			}
		}
		c.cards = kept
	case domain.EventListPositions:
		for _, u := range ev.Updates {
			if i := c.listIndex(u.ID); i >= 0 {
				c.lists[i].Position = u.Position
			}
		}
		c.sortLists()
	case domain.EventCardCreated:
		if ev.Card == nil || c.cardIndex(ev.Card.ID) >= 0 {
			return
		}
		c.cards = append(c.cards, *ev.Card)
		c.sortCards()
	case domain.EventCardUpdated:
		if i := c.cardIndex(ev.ID); i >= 0 {
			c.cards[i].Title = ev.Title
		}
	case domain.EventCardDeleted:
		if i := c.cardIndex(ev.ID); i >= 0 {
			c.cards = append(c.cards[:i], c.cards[i+1:]...)
		}
	case domain.EventCardPositions:
		for _, u := range ev.Updates {
			if i := c.cardIndex(u.ID); i >= 0 {
				c.cards[i].Position = u.Position
				if u.ListID != "" {
					c.cards[i].ListID = u.ListID
				}
			}
		}
		c.sortCards()
	case domain.EventCommentCreated:
		if ev.Comment != nil {
			cm := *ev.Comment
			if cm.CardID == "" {
				cm.CardID = ev.CardID
			}
			c.insertCommentLocked(cm)
		}
	}
}

func (c *Controller) insertCommentLocked(cm domain.Comment) {
	for _, existing := range c.comments[cm.CardID] {
		if existing.ID == cm.ID {
			return
		}
	}
	c.comments[cm.CardID] = append(c.comments[cm.CardID], cm)
}

func (c *Controller) listIndex(id string) int {
	return indexOfList(c.lists, id)
}

func (c *Controller) cardIndex(id string) int {
	for i := range c.cards {
		if c.cards[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Controller) sortLists() {
	sort.SliceStable(c.lists, func(i, j int) bool {
		if c.lists[i].Position != c.lists[j].Position {
			return c.lists[i].Position < c.lists[j].Position
		}
		return c.lists[i].ID < c.lists[j].ID
	})
}

func (c *Controller) sortCards() {
	sort.SliceStable(c.cards, func(i, j int) bool {
		if c.cards[i].Position != c.cards[j].Position {
			return c.cards[i].Position < c.cards[j].Position
		}
		return c.cards[i].ID < c.cards[j].ID
	})
}

func indexOfList(lists []domain.List, id string) int {
	for i := range lists {
		if lists[i].ID == id {
			return i
		}
	}
	return -1
}

func moveIndex(lists []domain.List, from, to int) []domain.List {
	out := append([]domain.List(nil), lists...)
	if from < 0 || from >= len(out) {
		return out
	}
	if to < 0 {
		to = 0
	}
	if to >= len(out) {
		to = len(out) - 1
	}
	item := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]domain.List{item}, out[to:]...)...)
	return out
}
