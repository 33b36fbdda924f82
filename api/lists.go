package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"boardflow/domain"
	"boardflow/position"
	"boardflow/realtime"
	"boardflow/storage"
)

type createListRequest struct {
	Name     string   `json:"name"`
	BoardID  string   `json:"boardId"`
	Position *float64 `json:"position,omitempty"`
}

func createList(store Storage, auth Authenticator, rt *realtime.Broadcaster) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, err := identify(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req createListRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			return c.String(http.StatusBadRequest, "please provide a list name")
		}
		if req.BoardID == "" {
			return c.String(http.StatusBadRequest, "invalid board id")
		}
		board, merr := boardForMember(c, store, req.BoardID, ident.ID)
		if merr != nil {
			return merr
		}

		ctx := c.Request().Context()
		pos := 0.0
		if req.Position != nil {
			pos = *req.Position
		} else {
			siblings, err := store.ListsByBoard(ctx, board.ID)
			if err != nil {
				c.Logger().Error(err)
				return c.String(http.StatusInternalServerError, err.Error())
			}
			existing := make([]float64, len(siblings))
			for i, l := range siblings {
				existing[i] = l.Position
			}
			pos = position.Next(existing)
		}

		list := domain.List{ID: uuid.NewString(), Name: req.Name, BoardID: board.ID, Position: pos}
		if err := store.CreateList(ctx, list); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to create list")
		}
		store.InvalidateBoard(ctx, board.ID)
		rt.ListCreated(board.ID, list)
		recordActivity(c, store, rt, board.ID, ident, "list.created", map[string]any{"name": list.Name})
		return c.JSON(http.StatusCreated, list)
	}
}

func renameList(store Storage, auth Authenticator, rt *realtime.Broadcaster) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, err := identify(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req renameRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			return c.String(http.StatusBadRequest, "please provide a list name")
		}
		ctx := c.Request().Context()
		listID := c.Param("id")
		boardID, err := store.BoardIDForList(ctx, listID)
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
		if err := store.RenameList(ctx, listID, req.Name); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to update list")
		}
		store.InvalidateBoard(ctx, board.ID)
		rt.ListUpdated(board.ID, domain.List{ID: listID, Name: req.Name, BoardID: board.ID})
		recordActivity(c, store, rt, board.ID, ident, "list.updated", map[string]any{"name": req.Name})
		return c.NoContent(http.StatusOK)
	}
}

func deleteList(store Storage, auth Authenticator, rt *realtime.Broadcaster) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, err := identify(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		ctx := c.Request().Context()
		listID := c.Param("id")
		boardID, err := store.BoardIDForList(ctx, listID)
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
		if err := store.DeleteList(ctx, listID); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to delete list")
		}
		store.InvalidateBoard(ctx, board.ID)
		rt.ListDeleted(board.ID, listID)
		recordActivity(c, store, rt, board.ID, ident, "list.deleted", nil)
		return c.NoContent(http.StatusOK)
	}
}

type listPositionsRequest struct {
	BoardID string                  `json:"boardId"`
	Updates []domain.PositionUpdate `json:"updates"`
}

func updateListPositions(store Storage, auth Authenticator, rt *realtime.Broadcaster) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, err := identify(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req listPositionsRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if req.BoardID == "" || len(req.Updates) == 0 {
			return c.String(http.StatusBadRequest, "invalid request data")
		}
		board, merr := boardForMember(c, store, req.BoardID, ident.ID)
		if merr != nil {
			return merr
		}
		ctx := c.Request().Context()
		if err := store.UpdateListPositions(ctx, req.Updates); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to update list positions")
		}
		store.InvalidateBoard(ctx, board.ID)
		recordActivity(c, store, rt, board.ID, ident, "list.moved", map[string]any{"listCount": len(req.Updates)})
		// list position entries never carry a listId
		updates := make([]domain.PositionUpdate, len(req.Updates))
		for i, u := range req.Updates {
			updates[i] = domain.PositionUpdate{ID: u.ID, Position: u.Position}
		}
		rt.ListPositions(board.ID, updates)
		return c.NoContent(http.StatusOK)
	}
}
