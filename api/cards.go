package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"boardflow/domain"
	"boardflow/position"
	"boardflow/realtime"
	"boardflow/storage"
)

type createCardRequest struct {
	Title       string     `json:"title"`
	ListID      string     `json:"listId"`
	Position    *float64   `json:"position,omitempty"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Priority    string     `json:"priority,omitempty"`
}

func createCard(store Storage, auth Authenticator, rt *realtime.Broadcaster) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, err := identify(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req createCardRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" || req.ListID == "" {
			return c.String(http.StatusBadRequest, "please provide a card title and list id")
		}
		ctx := c.Request().Context()
		boardID, err := store.BoardIDForList(ctx, req.ListID)
		if errors.Is(err, storage.ErrNotFound) {
			return c.String(http.StatusNotFound, "list not found")
		}
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		board, merr := boardForMember(c, store, boardID, ident.ID)
		if merr != nil {
			return merr
		}

		pos := 0.0
		if req.Position != nil {
			pos = *req.Position
		} else {
			siblings, err := store.CardsByList(ctx, req.ListID)
			if err != nil {
				c.Logger().Error(err)
				return c.String(http.StatusInternalServerError, err.Error())
			}
			existing := make([]float64, len(siblings))
			for i, card := range siblings {
				existing[i] = card.Position
			}
			pos = position.Next(existing)
		}

		card := domain.Card{
			ID:          uuid.NewString(),
			Title:       req.Title,
			ListID:      req.ListID,
			Position:    pos,
			Description: req.Description,
			DueDate:     req.DueDate,
			Priority:    req.Priority,
		}
		if err := store.CreateCard(ctx, card); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to create card")
		}
		store.InvalidateBoard(ctx, board.ID)
		rt.CardCreated(board.ID, card)
		recordActivity(c, store, rt, board.ID, ident, "card.created", map[string]any{"title": card.Title})
		return c.JSON(http.StatusCreated, card)
	}
}

type updateCardRequest struct {
	Title string `json:"title"`
}

func updateCard(store Storage, auth Authenticator, rt *realtime.Broadcaster) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, err := identify(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req updateCardRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" {
			return c.String(http.StatusBadRequest, "please provide a card title")
		}
		ctx := c.Request().Context()
		cardID := c.Param("id")
		boardID, err := store.BoardIDForCard(ctx, cardID)
		if errors.Is(err, storage.ErrNotFound) {
			return c.String(http.StatusNotFound, "card not found")
		}
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		board, merr := boardForMember(c, store, boardID, ident.ID)
		if merr != nil {
			return merr
		}
		if err := store.UpdateCardTitle(ctx, cardID, req.Title); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to update card")
		}
		store.InvalidateBoard(ctx, board.ID)
		rt.CardUpdated(board.ID, cardID, req.Title)
		recordActivity(c, store, rt, board.ID, ident, "card.updated", map[string]any{"title": req.Title})
		return c.NoContent(http.StatusOK)
	}
}

func deleteCard(store Storage, auth Authenticator, rt *realtime.Broadcaster) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, err := identify(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		ctx := c.Request().Context()
		cardID := c.Param("id")
		boardID, err := store.BoardIDForCard(ctx, cardID)
		if errors.Is(err, storage.ErrNotFound) {
			return c.String(http.StatusNotFound, "card not found")
		}
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		board, merr := boardForMember(c, store, boardID, ident.ID)
		if merr != nil {
			return merr
		}
		if err := store.DeleteCard(ctx, cardID); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to delete card")
		}
		store.InvalidateBoard(ctx, board.ID)
		rt.CardDeleted(board.ID, cardID)
		recordActivity(c, store, rt, board.ID, ident, "card.deleted", nil)
		return c.NoContent(http.StatusOK)
	}
}

type cardPositionsRequest struct {
	Updates []domain.PositionUpdate `json:"updates"`
}

func updateCardPositions(store Storage, auth Authenticator, rt *realtime.Broadcaster) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, err := identify(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req cardPositionsRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if len(req.Updates) == 0 {
			return c.String(http.StatusBadRequest, "invalid request data")
		}
		// Board id comes from the ownership chain card -> list -> board.
		ctx := c.Request().Context()
		boardID, err := store.BoardIDForCard(ctx, req.Updates[0].ID)
		if errors.Is(err, storage.ErrNotFound) {
			return c.String(http.StatusNotFound, "card not found")
		}
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		board, merr := boardForMember(c, store, boardID, ident.ID)
		if merr != nil {
			return merr
		}
		if err := store.UpdateCardPositions(ctx, req.Updates); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to update card positions")
		}
		store.InvalidateBoard(ctx, board.ID)
		recordActivity(c, store, rt, board.ID, ident, "card.moved", map[string]any{"cardCount": len(req.Updates)})
		rt.CardPositions(board.ID, req.Updates)
		return c.NoContent(http.StatusOK)
	}
}

type createCommentRequest struct {
	Text string `json:"text"`
}

func createComment(store Storage, auth Authenticator, rt *realtime.Broadcaster) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, err := identify(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req createCommentRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		req.Text = strings.TrimSpace(req.Text)
		if req.Text == "" {
			return c.String(http.StatusBadRequest, "please provide a comment")
		}
		ctx := c.Request().Context()
		cardID := c.Param("id")
		boardID, err := store.BoardIDForCard(ctx, cardID)
		if errors.Is(err, storage.ErrNotFound) {
			return c.String(http.StatusNotFound, "card not found")
		}
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		board, merr := boardForMember(c, store, boardID, ident.ID)
		if merr != nil {
			return merr
		}
		comment := domain.Comment{
			ID:             uuid.NewString(),
			CardID:         cardID,
			AuthorID:       ident.ID,
			AuthorFullName: ident.FullName,
			Text:           req.Text,
			CreatedAt:      time.Now().UTC(),
		}
		if err := store.CreateComment(ctx, comment); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to create comment")
		}
		rt.CommentCreated(board.ID, cardID, comment)
		return c.JSON(http.StatusCreated, comment)
	}
}

func getComments(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, err := identify(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		ctx := c.Request().Context()
		cardID := c.Param("id")
		boardID, err := store.BoardIDForCard(ctx, cardID)
		if errors.Is(err, storage.ErrNotFound) {
			return c.String(http.StatusNotFound, "card not found")
		}
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		if _, merr := boardForMember(c, store, boardID, ident.ID); merr != nil {
			return merr
		}
		comments, err := store.CommentsByCard(ctx, cardID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, comments)
	}
}
