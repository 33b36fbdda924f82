package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"boardflow/bus"
	"boardflow/domain"
	"boardflow/realtime"
	"boardflow/storage"
)

const sessionTTL = 24 * time.Hour

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, auth *Auth, deduper Deduper, events *bus.Bus, rt *realtime.Broadcaster, logger *log.Logger) {
	e.POST("/api/auth/register", registerUser(store, auth))
	e.POST("/api/auth/login", login(store, auth))
	e.GET("/api/me", currentUser(store, auth))

	e.GET("/api/boards/:id", getBoard(store, auth, logger))
	e.GET("/api/boards/:id/activities", getActivities(store, auth))
	e.GET("/api/boards/:id/stream", streamBoard(store, auth, events, logger))
	e.GET("/healthz", healthz())

	mutations := e.Group("", gzipRequestBody(), IdempotencyMiddleware(deduper, auth))
	mutations.POST("/api/workspaces", createWorkspace(store, auth))
	mutations.POST("/api/workspaces/:id/members", inviteMember(store, auth))
	mutations.DELETE("/api/workspaces/:id/members/:userId", removeMember(store, auth))
	mutations.POST("/api/boards", createBoard(store, auth))
	mutations.PATCH("/api/boards/:id", renameBoard(store, auth, rt))

	mutations.POST("/api/lists", createList(store, auth, rt))
	mutations.PATCH("/api/lists/positions", updateListPositions(store, auth, rt))
	mutations.PATCH("/api/lists/:id", renameList(store, auth, rt))
	mutations.DELETE("/api/lists/:id", deleteList(store, auth, rt))

	mutations.POST("/api/cards", createCard(store, auth, rt))
	mutations.PATCH("/api/cards/positions", updateCardPositions(store, auth, rt))
	mutations.PATCH("/api/cards/:id", updateCard(store, auth, rt))
	mutations.DELETE("/api/cards/:id", deleteCard(store, auth, rt))

	mutations.POST("/api/cards/:id/comments", createComment(store, auth, rt))
	e.GET("/api/cards/:id/comments", getComments(store, auth))
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func identify(c echo.Context, auth Authenticator) (Identity, error) {
	return auth.IdentityFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
}

// boardForMember loads a board and verifies the caller belongs to its
// workspace. It returns a ready-to-send error response on failure.
func boardForMember(c echo.Context, store Storage, boardID, userID string) (domain.Board, error) {
	ctx := c.Request().Context()
	board, err := store.Board(ctx, boardID)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Board{}, c.String(http.StatusNotFound, "board not found")
	}
	if err != nil {
		c.Logger().Error(err)
		return domain.Board{}, c.String(http.StatusInternalServerError, err.Error())
	}
	member, err := store.IsMember(ctx, board.WorkspaceID, userID)
	if err != nil {
		c.Logger().Error(err)
		return domain.Board{}, c.String(http.StatusInternalServerError, err.Error())
	}
	if !member {
		return domain.Board{}, c.String(http.StatusForbidden, "not a member of this workspace")
	}
	return board, nil
}

// recordActivity persists an audit row and fans it out. Failures are logged
// and contained; a broken audit trail must not fail the mutation that
// triggered it.
func recordActivity(c echo.Context, store Storage, rt *realtime.Broadcaster, boardID string, ident Identity, action string, details map[string]any) {
	a := domain.Activity{
		ID:           uuid.NewString(),
		BoardID:      boardID,
		UserID:       ident.ID,
		UserFullName: ident.FullName,
		Action:       action,
		Details:      details,
		CreatedAt:    time.Now().UTC(),
	}
	if err := store.RecordActivity(c.Request().Context(), a); err != nil {
		c.Logger().Errorf("record activity: %v", err)
		return
	}
	rt.Activity(boardID, ident.ID, ident.FullName, action, details)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	FullName string `json:"fullName,omitempty"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func registerUser(store Storage, auth *Auth) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req credentialsRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		req.FullName = strings.TrimSpace(req.FullName)
		if req.Email == "" || req.FullName == "" || len(req.Password) < 8 {
			return c.String(http.StatusBadRequest, "email, full name and a password of at least 8 characters are required")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to register")
		}
		user := domain.User{
			ID:           uuid.NewString(),
			Email:        req.Email,
			FullName:     req.FullName,
			PasswordHash: string(hash),
		}
		if err := store.CreateUser(c.Request().Context(), user); err != nil {
			return c.String(http.StatusConflict, "email already registered")
		}
		token, err := auth.Issue(user.ID, user.FullName, sessionTTL)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to issue session")
		}
		return c.JSON(http.StatusCreated, sessionResponse{Token: token, User: user})
	}
}

func login(store Storage, auth *Auth) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req credentialsRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		user, err := store.UserByEmail(c.Request().Context(), strings.TrimSpace(strings.ToLower(req.Email)))
		if err != nil {
			return c.String(http.StatusUnauthorized, "invalid credentials")
		}
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			return c.String(http.StatusUnauthorized, "invalid credentials")
		}
		token, err := auth.Issue(user.ID, user.FullName, sessionTTL)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to issue session")
		}
		return c.JSON(http.StatusOK, sessionResponse{Token: token, User: user})
	}
}

// currentUser returns the account behind the presented token. Clients call it
// on startup to restore a saved session.
func currentUser(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, err := identify(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		user, err := store.UserByID(c.Request().Context(), ident.ID)
		if errors.Is(err, storage.ErrNotFound) {
			return c.String(http.StatusUnauthorized, "account no longer exists")
		}
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, user)
	}
}

type createWorkspaceRequest struct {
	Name string `json:"name"`
}

func createWorkspace(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, err := identify(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req createWorkspaceRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			return c.String(http.StatusBadRequest, "please provide a workspace name")
		}
		ws := domain.Workspace{ID: uuid.NewString(), Name: req.Name, OwnerID: ident.ID}
		if err := store.CreateWorkspace(c.Request().Context(), ws); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to create workspace")
		}
		return c.JSON(http.StatusCreated, ws)
	}
}

type createBoardRequest struct {
	Name        string `json:"name"`
	WorkspaceID string `json:"workspaceId"`
}

func createBoard(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, err := identify(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req createBoardRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" || req.WorkspaceID == "" {
			return c.String(http.StatusBadRequest, "please provide a board name and workspace id")
		}
		ctx := c.Request().Context()
		member, err := store.IsMember(ctx, req.WorkspaceID, ident.ID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		if !member {
			return c.String(http.StatusForbidden, "not a member of this workspace")
		}
		board := domain.Board{ID: uuid.NewString(), Name: req.Name, WorkspaceID: req.WorkspaceID}
		if err := store.CreateBoard(ctx, board); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to create board")
		}
		return c.JSON(http.StatusCreated, board)
	}
}

func getBoard(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		ident, authErr := identify(c, auth)
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		if _, merr := boardForMember(c, store, c.Param("id"), ident.ID); merr != nil {
			metrics.SetErrorStage("membership")
			err = merr
			return err
		}

		fetchStart := time.Now()
		snap, fetchErr := store.BoardSnapshot(c.Request().Context(), c.Param("id"))
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.String(http.StatusInternalServerError, fetchErr.Error())
			return err
		}
		metrics.SetListsReturned(len(snap.Lists))
		metrics.SetCardsReturned(len(snap.Cards))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, snap)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

type renameRequest struct {
	Name string `json:"name"`
}

func renameBoard(store Storage, auth Authenticator, rt *realtime.Broadcaster) echo.HandlerFunc {
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
			return c.String(http.StatusBadRequest, "please provide a board name")
		}
		board, merr := boardForMember(c, store, c.Param("id"), ident.ID)
		if merr != nil {
			return merr
		}
		ctx := c.Request().Context()
		if err := store.RenameBoard(ctx, board.ID, req.Name); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to update board")
		}
		store.InvalidateBoard(ctx, board.ID)
		recordActivity(c, store, rt, board.ID, ident, "board.updated", map[string]any{"name": req.Name})
		board.Name = req.Name
		return c.JSON(http.StatusOK, board)
	}
}

func getActivities(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, err := identify(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		board, merr := boardForMember(c, store, c.Param("id"), ident.ID)
		if merr != nil {
			return merr
		}
		limit := 0
		if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit <= 0 {
				return c.String(http.StatusBadRequest, "invalid limit")
			}
		}
		activities, err := store.ActivitiesByBoard(c.Request().Context(), board.ID, limit)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, activities)
	}
}
