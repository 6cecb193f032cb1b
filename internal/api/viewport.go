package api

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stwalsh4118/cutroom/internal/input"
	"github.com/stwalsh4118/cutroom/internal/logger"
	"github.com/stwalsh4118/cutroom/internal/presenter"
	"github.com/stwalsh4118/cutroom/internal/session"
	"github.com/stwalsh4118/cutroom/internal/state"
)

const (
	viewportWriteWait    = 10 * time.Second
	viewportPingInterval = 30 * time.Second
	viewportReadLimit    = 64 * 1024
	viewportJPEGQuality  = 80
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// viewportMessage is a client message on the viewport socket
type viewportMessage struct {
	Type         string   `json:"type"`
	Code         string   `json:"code,omitempty"`
	InputFocused bool     `json:"input_focused,omitempty"`
	Width        float64  `json:"width,omitempty"`
	Height       float64  `json:"height,omitempty"`
	Time         *float64 `json:"time,omitempty"`
	Slider       *float64 `json:"slider,omitempty"`
}

// viewportEvent is a JSON message sent to the client. Frames go out as binary JPEG messages.
type viewportEvent struct {
	Type     string        `json:"type"`
	State    *session.View `json:"state,omitempty"`
	Consumed *bool         `json:"consumed,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// ViewportHandler streams session state and frames over a websocket and accepts
// control messages from the viewport
type ViewportHandler struct {
	sessions sessionManager
}

// NewViewportHandler creates a new viewport handler
func NewViewportHandler(sessions sessionManager) *ViewportHandler {
	return &ViewportHandler{sessions: sessions}
}

// Serve handles GET /sessions/:project_id/ws. The session is opened if needed.
func (h *ViewportHandler) Serve(c *gin.Context) {
	id, ok := parseUUIDParam(c, "project_id", "project")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	sess, err := h.sessions.Open(ctx, id)
	cancel()
	if err != nil {
		writeSessionError(c, err, "Failed to open session")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("project_id", id.String()).
			Msg("Viewport websocket upgrade failed")
		return
	}
	defer conn.Close()

	clients := sess.AddClient()
	defer sess.RemoveClient()

	logger.Log.Info().
		Str("project_id", id.String()).
		Str("remote_addr", c.Request.RemoteAddr).
		Int("clients", clients).
		Msg("Viewport connected")

	updates := make(chan session.View, 1)
	replies := make(chan viewportEvent, 8)
	done := make(chan struct{})

	offer(updates, sess.View())
	unsubscribe := sess.Subscribe(func(v session.View, _ state.Change) {
		offer(updates, v)
	})
	defer unsubscribe()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		// a failed write unblocks the read loop below
		defer conn.Close()
		writeViewport(conn, sess, updates, replies, done)
	}()

	conn.SetReadLimit(viewportReadLimit)
	for {
		var msg viewportMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Debug().Err(err).Str("project_id", id.String()).Msg("Viewport read failed")
			}
			break
		}
		sess.Touch()

		if reply, ok := handleViewportMessage(c.Request.Context(), sess, msg); ok {
			select {
			case replies <- reply:
			default:
			}
		}
	}

	close(done)
	<-writerDone

	logger.Log.Info().
		Str("project_id", id.String()).
		Msg("Viewport disconnected")
}

// offer replaces any pending view with v so a slow writer only sees the latest state
func offer(ch chan session.View, v session.View) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// handleViewportMessage applies one client message, returning a reply when there is one
func handleViewportMessage(ctx context.Context, sess *session.Session, msg viewportMessage) (viewportEvent, bool) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	switch msg.Type {
	case "key":
		var consumed bool
		consumed, err = sess.HandleKey(ctx, input.KeyEvent{Code: msg.Code, InputFocused: msg.InputFocused})
		if err == nil {
			return viewportEvent{Type: "key", Consumed: &consumed}, true
		}
	case "bounds":
		sess.SetViewport(presenter.Bounds{Width: msg.Width, Height: msg.Height})
	case "preview":
		if msg.Time == nil {
			sess.Controller().ClearPreview()
		} else if !sess.Controller().SetPreview(*msg.Time) {
			return viewportEvent{Type: "error", Error: "preview time cannot be set while playing"}, true
		}
	case "zoom":
		if msg.Slider != nil {
			sess.Zoom().SetSlider(*msg.Slider)
		}
	case "play":
		err = sess.Controller().Play(ctx)
	case "skip_start":
		err = sess.Controller().SkipToStart(ctx)
	case "skip_end":
		err = sess.Controller().SkipToEnd(ctx)
	default:
		return viewportEvent{Type: "error", Error: "unknown message type: " + msg.Type}, true
	}

	if err != nil {
		return viewportEvent{Type: "error", Error: err.Error()}, true
	}
	return viewportEvent{}, false
}

// writeViewport is the only writer on conn. It sends each state update, a JPEG
// whenever the drawn frame changes, queued replies and keepalive pings.
func writeViewport(conn *websocket.Conn, sess *session.Session, updates <-chan session.View, replies <-chan viewportEvent, done <-chan struct{}) {
	ticker := time.NewTicker(viewportPingInterval)
	defer ticker.Stop()

	var lastSeq uint64
	var buf bytes.Buffer

	for {
		select {
		case <-done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(viewportWriteWait))
			return

		case v := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(viewportWriteWait))
			if err := conn.WriteJSON(viewportEvent{Type: "state", State: &v}); err != nil {
				return
			}

			f, _, ok := sess.Surface().Frame()
			if !ok || f.Seq == lastSeq {
				continue
			}
			buf.Reset()
			if err := presenter.EncodeJPEG(&buf, f, viewportJPEGQuality); err != nil {
				logger.Log.Warn().Err(err).Uint64("seq", f.Seq).Msg("Failed to encode viewport frame")
				continue
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
				return
			}
			lastSeq = f.Seq

		case reply := <-replies:
			_ = conn.SetWriteDeadline(time.Now().Add(viewportWriteWait))
			if err := conn.WriteJSON(reply); err != nil {
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(viewportWriteWait)); err != nil {
				return
			}
		}
	}
}
