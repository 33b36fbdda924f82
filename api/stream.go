package api

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"boardflow/bus"
	"boardflow/domain"
	"boardflow/realtime"
)

const (
	heartbeatInterval = 25 * time.Second
	streamBufferSize  = 256
)

// streamBoard bridges one board topic to one long-lived SSE connection. The
// bus callback hands events to the handler goroutine through a buffered
// channel; a full buffer drops the event rather than blocking the publisher
// (delivery is best-effort, reconnecting clients re-fetch the snapshot).
func streamBoard(store Storage, auth Authenticator, events *bus.Bus, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		// EventSource cannot set headers, so the token may arrive as a
		// query parameter instead.
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			if token := c.QueryParam("token"); token != "" {
				authHeader = "Bearer " + token
			}
		}
		ident, err := auth.IdentityFromAuthHeader(authHeader)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		boardID := c.Param("id")
		if _, merr := boardForMember(c, store, boardID, ident.ID); merr != nil {
			return merr
		}

		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache, no-transform")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		topic := realtime.Topic(boardID)
		ch := make(chan domain.Event, streamBufferSize)
		unsubscribe := events.Subscribe(topic, func(ev domain.Event) {
			select {
			case ch <- ev:
			default:
				logger.WithFields(log.Fields{"topic": topic, "event": ev.Type}).
					Warn("stream buffer full, dropping event")
			}
		})
		defer unsubscribe()

		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		if err := writeEvent(c.Response(), flusher, domain.Event{Type: domain.EventHello, BoardID: boardID}); err != nil {
			return nil
		}

		ctx := c.Request().Context()
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-ch:
				if err := writeEvent(c.Response(), flusher, ev); err != nil {
					return nil
				}
			case <-ticker.C:
				// Comment-only frame keeps idle proxies from cutting us off.
				if _, err := c.Response().Write([]byte(": ping\n\n")); err != nil {
					return nil
				}
				flusher.Flush()
			}
		}
	}
}

func writeEvent(w *echo.Response, flusher http.Flusher, ev domain.Event) error {
	data, err := sonic.ConfigStd.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\n\n")); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
