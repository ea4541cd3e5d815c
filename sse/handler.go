package sse

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/skillsenselab/streamhub/errors"
	"github.com/skillsenselab/streamhub/logger"
	"github.com/skillsenselab/streamhub/observability"
	"github.com/skillsenselab/streamhub/server"
	"github.com/skillsenselab/streamhub/server/middleware"
	"github.com/skillsenselab/streamhub/validation"
)

// writeDeadline is the per-write soft budget on a stream. A peer that cannot
// absorb a frame within this window is treated as failed and evicted.
const writeDeadline = 1 * time.Second

// HandlerConfig holds the deployment policy for the HTTP entry points.
type HandlerConfig struct {
	// RequireAuthForStream rejects anonymous GET stream requests with 401.
	RequireAuthForStream bool
	// RequireAuthForPublish rejects anonymous POST notification requests with 401.
	RequireAuthForPublish bool
}

// RegisterRoutes mounts the SSE endpoints on the given router. OPTIONS
// preflight is answered by the server's CORS middleware.
func RegisterRoutes(r gin.IRouter, h *Hub, cfg HandlerConfig) {
	r.GET("/api/sse", StreamHandler(h, cfg))
	r.POST("/api/sse/notifications", NotifyHandler(h, cfg))
	r.GET("/api/sse/stats", StatsHandler(h))
}

// StreamHandler upgrades a GET request to a long-lived event stream. The
// handler blocks until the peer disconnects or the hub closes the
// connection, and deregisters exactly once on the way out.
func StreamHandler(h *Hub, cfg HandlerConfig) gin.HandlerFunc {
	log := logger.WithComponent("sse_stream")

	return func(c *gin.Context) {
		userID := middleware.UserID(c)
		if cfg.RequireAuthForStream && userID == "" {
			server.RespondWithError(c, errors.Unauthorized(""))
			return
		}

		sessionID := c.Query("sessionId")
		if sessionID == "" {
			sessionID = deriveSessionID(c, userID)
		}

		metadata := map[string]string{
			"ip":              c.ClientIP(),
			"userAgent":       c.Request.UserAgent(),
			"isAuthenticated": strconv.FormatBool(userID != ""),
			"connectionTime":  time.Now().UTC().Format(time.RFC3339),
		}
		for key, values := range c.Request.URL.Query() {
			if key == "sessionId" || key == "token" || len(values) == 0 {
				continue
			}
			metadata[key] = values[0]
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Cache-Control")

		// Streams outlive the server's write timeout; lift it for this
		// response. Per-write deadlines are re-armed by the writer below.
		rc := http.NewResponseController(c.Writer)
		if err := rc.SetWriteDeadline(time.Time{}); err != nil {
			log.Warn("could not lift write deadline", logger.ErrorFields("stream", err))
		}

		conn, err := h.CreateConnection(userID, sessionID, metadata, &responseStreamWriter{w: c.Writer, rc: rc})
		if err != nil {
			server.RespondWithError(c, err)
			return
		}

		log.Info("stream opened", logger.Fields(
			logger.FieldConnectionID, conn.ID(),
			logger.FieldUserID, userID,
			logger.FieldSessionID, sessionID,
			"ip", metadata["ip"],
		))

		defer func() {
			h.RemoveConnection(conn.ID())
			log.Info("stream closed", logger.Fields(
				logger.FieldConnectionID, conn.ID(),
			))
		}()

		select {
		case <-c.Request.Context().Done():
			// Peer went away; deregistration happens in the deferred call.
		case <-conn.Done():
			// Hub closed the connection (eviction or shutdown).
		}
	}
}

// deriveSessionID builds a session id for requests that did not supply one.
func deriveSessionID(c *gin.Context, userID string) string {
	now := time.Now().UnixMilli()
	if userID != "" {
		return fmt.Sprintf("auth_%s_%d", userID, now)
	}
	seed := fmt.Sprintf("%s|%s|%d", c.ClientIP(), c.Request.UserAgent(), now)
	encoded := base64.StdEncoding.EncodeToString([]byte(seed))
	if len(encoded) > 16 {
		encoded = encoded[:16]
	}
	return "anon_" + encoded
}

// responseStreamWriter adapts the HTTP response into a StreamWriter. Every
// write arms the soft deadline, flushes, and disarms it again so a healthy
// stream is never killed between events.
type responseStreamWriter struct {
	w  gin.ResponseWriter
	rc *http.ResponseController
}

func (sw *responseStreamWriter) Write(p []byte) error {
	// Deadline errors are ignored: not every ResponseWriter supports them
	// (httptest recorders in particular), and the reaper still covers those.
	_ = sw.rc.SetWriteDeadline(time.Now().Add(writeDeadline))
	if _, err := sw.w.Write(p); err != nil {
		return err
	}
	sw.w.Flush()
	_ = sw.rc.SetWriteDeadline(time.Time{})
	return nil
}

// Close is a no-op: ending the response is the handler's job, triggered by
// the connection's done channel.
func (sw *responseStreamWriter) Close() error { return nil }

// NotificationRequest is the producer-facing POST body.
type NotificationRequest struct {
	EventType string               `json:"eventType" validate:"required"`
	Data      any                  `json:"data" validate:"required"`
	Target    *NotificationTarget  `json:"target"`
	Options   *NotificationOptions `json:"options"`
}

// NotificationTarget narrows delivery to a user and/or session.
type NotificationTarget struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

// NotificationOptions carries optional frame fields.
type NotificationOptions struct {
	ID    string `json:"id"`
	Retry int    `json:"retry"`
}

// NotificationResponse reports the fan-out outcome to the producer.
type NotificationResponse struct {
	Success   bool   `json:"success"`
	EventType string `json:"eventType"`
	Sent      int    `json:"sent"`
	Failed    int    `json:"failed"`
	Message   string `json:"message"`
}

// NotifyHandler accepts producer events over HTTP and fans them out.
func NotifyHandler(h *Hub, cfg HandlerConfig) gin.HandlerFunc {
	tracer := observability.Tracer("")

	return func(c *gin.Context) {
		userID := middleware.UserID(c)
		if cfg.RequireAuthForPublish && userID == "" {
			server.RespondWithError(c, errors.Unauthorized(""))
			return
		}

		var req NotificationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			server.RespondWithError(c, errors.InvalidInput("body", "request body must be valid JSON").WithCause(err))
			return
		}
		if err := validation.Validate(&req); err != nil {
			server.RespondWithError(c, err)
			return
		}
		if req.EventType == EventTypeConnected || req.EventType == EventTypeHeartbeat {
			server.RespondWithError(c, errors.InvalidInput("eventType", "event type is reserved"))
			return
		}

		event := Event{Type: req.EventType, Data: req.Data}
		if req.Options != nil {
			event.ID = req.Options.ID
			event.Retry = req.Options.Retry
		}

		sel := All
		if req.Target != nil {
			sel = Selector{UserID: req.Target.UserID, SessionID: req.Target.SessionID}
		}

		_, span := tracer.Start(c.Request.Context(), "sse.notify",
			trace.WithAttributes(attribute.String("event_type", req.EventType)))
		result, err := h.Send(event, sel)
		span.SetAttributes(
			attribute.Int("sent", result.Sent),
			attribute.Int("failed", result.Failed),
		)
		span.End()

		if err != nil {
			server.RespondWithError(c, err)
			return
		}

		server.RespondOK(c, NotificationResponse{
			Success:   true,
			EventType: req.EventType,
			Sent:      result.Sent,
			Failed:    result.Failed,
			Message:   fmt.Sprintf("event delivered to %d connections", result.Sent),
		})
	}
}

// StatsResponse is the body of the stats endpoint.
type StatsResponse struct {
	Stats       HubStats           `json:"stats"`
	Connections []ConnectionStatus `json:"connections,omitempty"`
	RequestInfo StatsRequestInfo   `json:"requestInfo"`
}

// StatsRequestInfo echoes who asked and when.
type StatsRequestInfo struct {
	UserID    string `json:"userId,omitempty"`
	Timestamp string `json:"timestamp"`
}

// StatsHandler serves a hub statistics snapshot, optionally with the
// per-connection list when showConnections=true or a filter is supplied.
func StatsHandler(h *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := StatsResponse{
			Stats: h.Stats(),
			RequestInfo: StatsRequestInfo{
				UserID:    middleware.UserID(c),
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			},
		}

		filter := Selector{
			UserID:    c.Query("userId"),
			SessionID: c.Query("sessionId"),
		}
		if c.Query("showConnections") == "true" || filter.UserID != "" || filter.SessionID != "" {
			resp.Connections = h.ActiveConnections(filter)
		}

		server.RespondOK(c, resp)
	}
}
