package api

import (
	"bytes"
	"encoding/json"
	"image/jpeg"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/cutroom/internal/presenter"
	"github.com/stwalsh4118/cutroom/internal/timeline"
)

func dialViewport(t *testing.T, server *httptest.Server, projectID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/sessions/" + projectID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until match accepts one or the deadline passes
func readUntil(t *testing.T, conn *websocket.Conn, match func(msgType int, data []byte) bool) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		msgType, data, err := conn.ReadMessage()
		require.NoError(t, err)
		if match(msgType, data) {
			return data
		}
	}
}

func eventOfType(want string) func(int, []byte) bool {
	return func(msgType int, data []byte) bool {
		if msgType != websocket.TextMessage {
			return false
		}
		var ev viewportEvent
		return json.Unmarshal(data, &ev) == nil && ev.Type == want
	}
}

func TestViewport_StreamsStateAndFrames(t *testing.T) {
	s := newTestSession(t, []timeline.Segment{{Start: 0, End: 0.5, Timescale: 1}})
	server := httptest.NewServer(setupSessionTestRouter(managerFor(s)))
	defer server.Close()

	conn := dialViewport(t, server, s.ProjectID.String())

	data := readUntil(t, conn, eventOfType("state"))
	var first viewportEvent
	require.NoError(t, json.Unmarshal(data, &first))
	require.NotNil(t, first.State)
	assert.Equal(t, s.ProjectID.String(), first.State.ProjectID)
	assert.Equal(t, 1, s.ClientCount())

	require.NoError(t, conn.WriteJSON(viewportMessage{Type: "bounds", Width: 108, Height: 104}))
	require.NoError(t, conn.WriteJSON(viewportMessage{Type: "play"}))

	jpg := readUntil(t, conn, func(msgType int, _ []byte) bool {
		return msgType == websocket.BinaryMessage
	})
	img, err := jpeg.Decode(bytes.NewReader(jpg))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())

	readUntil(t, conn, func(msgType int, data []byte) bool {
		if msgType != websocket.TextMessage {
			return false
		}
		var ev viewportEvent
		return json.Unmarshal(data, &ev) == nil && ev.State != nil && ev.State.AtEnd && !ev.State.Playing
	})
	assert.Equal(t, presenter.Bounds{Width: 108, Height: 104}, s.Presenter().Bounds())
}

func TestViewport_KeysPreviewAndErrors(t *testing.T) {
	s := newTestSession(t, []timeline.Segment{{Start: 0, End: 60, Timescale: 1}})
	server := httptest.NewServer(setupSessionTestRouter(managerFor(s)))
	defer server.Close()

	conn := dialViewport(t, server, s.ProjectID.String())
	readUntil(t, conn, eventOfType("state"))

	require.NoError(t, conn.WriteJSON(viewportMessage{Type: "key", Code: "KeyK"}))
	data := readUntil(t, conn, eventOfType("key"))
	var ev viewportEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	require.NotNil(t, ev.Consumed)
	assert.False(t, *ev.Consumed)

	at := 20.0
	require.NoError(t, conn.WriteJSON(viewportMessage{Type: "preview", Time: &at}))
	readUntil(t, conn, func(msgType int, data []byte) bool {
		var ev viewportEvent
		return msgType == websocket.TextMessage && json.Unmarshal(data, &ev) == nil &&
			ev.State != nil && ev.State.PreviewTime != nil && *ev.State.PreviewTime == 20
	})

	require.NoError(t, conn.WriteJSON(viewportMessage{Type: "rewind"}))
	data = readUntil(t, conn, eventOfType("error"))
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Contains(t, ev.Error, "rewind")
}

func TestViewport_DisconnectReleasesClient(t *testing.T) {
	s := newTestSession(t, []timeline.Segment{{Start: 0, End: 60, Timescale: 1}})
	server := httptest.NewServer(setupSessionTestRouter(managerFor(s)))
	defer server.Close()

	conn := dialViewport(t, server, s.ProjectID.String())
	readUntil(t, conn, eventOfType("state"))
	require.Equal(t, 1, s.ClientCount())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return s.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestViewport_UnknownProject(t *testing.T) {
	server := httptest.NewServer(setupSessionTestRouter(&mockSessionManager{}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/sessions/" + uuid.NewString() + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 404, resp.StatusCode)
}
