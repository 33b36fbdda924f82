package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"boardflow/domain"
	"boardflow/storage"
)

// workspaceForMember loads a workspace and verifies the caller belongs to it.
// It returns a ready-to-send error response on failure.
func workspaceForMember(c echo.Context, store Storage, workspaceID, userID string) (domain.Workspace, error) {
	ctx := c.Request().Context()
	ws, err := store.Workspace(ctx, workspaceID)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Workspace{}, c.String(http.StatusNotFound, "workspace not found")
	}
	if err != nil {
		c.Logger().Error(err)
		return domain.Workspace{}, c.String(http.StatusInternalServerError, err.Error())
	}
	member, err := store.IsMember(ctx, ws.ID, userID)
	if err != nil {
		c.Logger().Error(err)
		return domain.Workspace{}, c.String(http.StatusInternalServerError, err.Error())
	}
	if !member {
		return domain.Workspace{}, c.String(http.StatusForbidden, "not a member of this workspace")
	}
	return ws, nil
}

type inviteMemberRequest struct {
	Email string `json:"email"`
}

// inviteMember resolves an account by email and adds it to the workspace.
func inviteMember(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, err := identify(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req inviteMemberRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if req.Email == "" {
			return c.String(http.StatusBadRequest, "please provide an email")
		}
		ws, merr := workspaceForMember(c, store, c.Param("id"), ident.ID)
		if merr != nil {
			return merr
		}
		ctx := c.Request().Context()
		user, err := store.UserByEmail(ctx, req.Email)
		if errors.Is(err, storage.ErrNotFound) {
			return c.String(http.StatusNotFound, "no account with this email")
		}
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		already, err := store.IsMember(ctx, ws.ID, user.ID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		if already {
			return c.String(http.StatusBadRequest, "already a member of this workspace")
		}
		if err := store.AddMember(ctx, ws.ID, user.ID); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to add member")
		}
		return c.JSON(http.StatusCreated, user)
	}
}

// removeMember drops a user from the workspace's member set.
func removeMember(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, err := identify(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		ws, merr := workspaceForMember(c, store, c.Param("id"), ident.ID)
		if merr != nil {
			return merr
		}
		err = store.RemoveMember(c.Request().Context(), ws.ID, c.Param("userId"))
		if errors.Is(err, storage.ErrNotFound) {
			return c.String(http.StatusNotFound, "member not found in workspace")
		}
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to remove member")
		}
		return c.NoContent(http.StatusNoContent)
	}
}
