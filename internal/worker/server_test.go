package worker

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/pulpit/internal/logger"
	"github.com/codefionn/pulpit/internal/protocol"
)

type recorder struct {
	ch chan protocol.WorkerMessage
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan protocol.WorkerMessage, 64)}
}

func (r *recorder) Emit(msg protocol.WorkerMessage) {
	r.ch <- msg
}

func (r *recorder) expect(t *testing.T, typ protocol.WorkerType) protocol.WorkerMessage {
	t.Helper()
	select {
	case msg := <-r.ch:
		require.Equal(t, typ, msg.Type, "unexpected upstream message: %s", string(msg.Data))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for upstream %s", typ)
		return protocol.WorkerMessage{}
	}
}

func (r *recorder) expectNone(t *testing.T) {
	t.Helper()
	select {
	case msg := <-r.ch:
		t.Fatalf("unexpected upstream message %s: %s", msg.Type, string(msg.Data))
	case <-time.After(100 * time.Millisecond):
	}
}

type testServer struct {
	srv *Server
	up  *recorder
	ts  *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	up := newRecorder()
	srv := NewServer(up, Options{
		Logger:    logger.NewWriter(logger.LevelNone, io.Discard, ""),
		Addresses: func() []string { return []string{"192.168.1.20"} },
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		ts.Close()
	})
	return &testServer{srv: srv, up: up, ts: ts}
}

type testClient struct {
	conn *websocket.Conn
	id   string
}

func (s *testServer) connect(t *testing.T) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"User-Agent": {"stage-remote/1.0"}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c := &testClient{conn: conn}
	msg := c.read(t)
	require.Equal(t, protocol.ServerConnected, msg.Type)
	var hello protocol.ConnectedPayload
	require.NoError(t, msg.Decode(&hello))
	require.NotEmpty(t, hello.ClientID)
	c.id = hello.ClientID

	up := s.up.expect(t, protocol.WorkerClientConnected)
	var connected protocol.ClientConnectedPayload
	require.NoError(t, up.Decode(&connected))
	require.Equal(t, c.id, connected.ClientID)
	return c
}

func (c *testClient) read(t *testing.T) protocol.ServerMessage {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg protocol.ServerMessage
	require.NoError(t, c.conn.ReadJSON(&msg))
	return msg
}

func (c *testClient) send(t *testing.T, typ protocol.ClientType, payload any) {
	t.Helper()
	msg, err := protocol.NewMessage(typ, payload)
	require.NoError(t, err)
	require.NoError(t, c.conn.WriteJSON(msg))
}

func hostMessage(t *testing.T, typ protocol.HostType, payload any) protocol.HostMessage {
	t.Helper()
	msg, err := protocol.NewMessage(typ, payload)
	require.NoError(t, err)
	return msg
}

func TestConnectRegistersClient(t *testing.T) {
	s := newTestServer(t)
	c := s.connect(t)

	clients := s.srv.Hub().Clients()
	require.Len(t, clients, 1)
	assert.Equal(t, c.id, clients[0].ID)
	assert.Equal(t, "127.0.0.1", clients[0].IP)
	assert.Equal(t, "stage-remote/1.0", clients[0].UserAgent)
	assert.False(t, clients[0].ConnectedAt.IsZero())
}

func TestDisconnectRemovesClientExactlyOnce(t *testing.T) {
	s := newTestServer(t)
	c := s.connect(t)

	require.NoError(t, c.conn.Close())

	msg := s.up.expect(t, protocol.WorkerClientDisconnected)
	var ref protocol.ClientRef
	require.NoError(t, msg.Decode(&ref))
	assert.Equal(t, c.id, ref.ClientID)
	assert.Equal(t, 0, s.srv.Hub().Count())

	s.up.expectNone(t)
}

func TestScriptureReplyIsUnicast(t *testing.T) {
	s := newTestServer(t)
	c1 := s.connect(t)
	c2 := s.connect(t)

	c1.send(t, protocol.ClientGetScripture, protocol.ScriptureRequest{Book: "John", Chapter: 3, Version: "KJV"})
	up := s.up.expect(t, protocol.WorkerRequestScripture)
	var req protocol.ScriptureRequest
	require.NoError(t, up.Decode(&req))
	assert.Equal(t, c1.id, req.ClientID)
	assert.Equal(t, "John", req.Book)

	verses := make([]protocol.Verse, 36)
	for i := range verses {
		verses[i] = protocol.Verse{Verse: i + 1, Text: "verse"}
	}
	s.srv.HandleHost(hostMessage(t, protocol.HostScriptureChapter, protocol.ScriptureChapterPayload{
		ClientRef: protocol.ClientRef{ClientID: req.ClientID},
		Data:      protocol.ScriptureChapter{Book: "John", Chapter: 3, Version: "KJV", Verses: verses},
	}))
	// A broadcast right after lets us prove c2 never saw the chapter.
	s.srv.HandleHost(hostMessage(t, protocol.HostScheduleList, protocol.ScheduleListPayload{Items: []protocol.RemoteScheduleItem{}}))

	got := c1.read(t)
	require.Equal(t, protocol.ServerScripture, got.Type)
	var chapter protocol.ScriptureChapter
	require.NoError(t, got.Decode(&chapter))
	assert.Equal(t, "John", chapter.Book)
	assert.Equal(t, 3, chapter.Chapter)
	assert.Equal(t, "KJV", chapter.Version)
	assert.Len(t, chapter.Verses, 36)
	assert.NotContains(t, string(got.Data), "clientId")
	// The chapter is the data itself, not nested under "data".
	assert.NotContains(t, string(got.Data), `"data"`)

	assert.Equal(t, protocol.ServerSchedule, c1.read(t).Type)
	assert.Equal(t, protocol.ServerSchedule, c2.read(t).Type)
}

func TestStateIsBroadcastAndReplayedToLateJoiners(t *testing.T) {
	s := newTestServer(t)
	c1 := s.connect(t)
	c2 := s.connect(t)

	state := protocol.RemoteAppState{
		IsLive:      true,
		CurrentItem: &protocol.CurrentItem{Type: protocol.ItemSong, Title: "Amazing Grace", SlideIndex: 1, TotalSlides: 4},
	}
	s.srv.HandleHost(hostMessage(t, protocol.HostStateUpdate, protocol.StateUpdatePayload{State: state}))

	for _, c := range []*testClient{c1, c2} {
		msg := c.read(t)
		require.Equal(t, protocol.ServerState, msg.Type)
		var got protocol.RemoteAppState
		require.NoError(t, msg.Decode(&got))
		assert.Equal(t, state, got)
	}

	c3 := s.connect(t)
	msg := c3.read(t)
	require.Equal(t, protocol.ServerState, msg.Type)
}

func TestReplyWithoutClientIsBroadcast(t *testing.T) {
	s := newTestServer(t)
	c1 := s.connect(t)
	c2 := s.connect(t)

	s.srv.HandleHost(hostMessage(t, protocol.HostSongsList, protocol.SongsListPayload{
		Songs: []protocol.RemoteSong{{ID: 7, Title: "Be Thou My Vision"}},
	}))

	for _, c := range []*testClient{c1, c2} {
		msg := c.read(t)
		require.Equal(t, protocol.ServerSongs, msg.Type)
		// Other replies keep their field wrapper.
		assert.Contains(t, string(msg.Data), `"songs":[`)
		var p protocol.SongsListPayload
		require.NoError(t, msg.Decode(&p))
		require.Len(t, p.Songs, 1)
		assert.Equal(t, int64(7), p.Songs[0].ID)
	}
}

func TestReplyToDepartedClientIsNoop(t *testing.T) {
	s := newTestServer(t)
	c := s.connect(t)
	require.NoError(t, c.conn.Close())
	s.up.expect(t, protocol.WorkerClientDisconnected)

	assert.NotPanics(t, func() {
		s.srv.HandleHost(hostMessage(t, protocol.HostSongsList, protocol.SongsListPayload{
			ClientRef: protocol.ClientRef{ClientID: c.id},
			Songs:     []protocol.RemoteSong{},
		}))
	})
}

func TestClientRequestsAreStampedWithClientID(t *testing.T) {
	s := newTestServer(t)
	c := s.connect(t)

	tests := []struct {
		name    string
		client  protocol.ClientType
		payload any
		worker  protocol.WorkerType
	}{
		{"songs", protocol.ClientGetSongs, nil, protocol.WorkerRequestSongs},
		{"lyrics", protocol.ClientGetSongLyrics, map[string]any{"songId": 3}, protocol.WorkerRequestSongLyrics},
		{"themes", protocol.ClientGetThemes, nil, protocol.WorkerRequestThemes},
		{"schedule", protocol.ClientGetSchedule, nil, protocol.WorkerRequestSchedule},
		{"translations", protocol.ClientGetTranslations, nil, protocol.WorkerRequestTranslations},
		{"blank", protocol.ClientGoBlank, nil, protocol.WorkerGoBlank},
		{"spoofed id", protocol.ClientGoLive, map[string]any{"clientId": "someone-else", "item": map[string]any{"type": "song", "songId": 3}}, protocol.WorkerGoLive},
		{"navigate", protocol.ClientNavigate, protocol.NavigatePayload{Direction: protocol.NavigateNext}, protocol.WorkerNavigate},
		{"search songs", protocol.ClientSearchSongs, protocol.SearchSongsPayload{Query: "grace"}, protocol.WorkerSearchSongs},
		{"search scripture", protocol.ClientSearchScripture, protocol.SearchScripturePayload{Query: "love", Version: "KJV"}, protocol.WorkerSearchScripture},
		{"add to schedule", protocol.ClientAddToSchedule, protocol.AddToSchedulePayload{Item: protocol.RemoteAddScheduleItem{Type: protocol.ItemSong, SongID: 3}}, protocol.WorkerAddToSchedule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.send(t, tt.client, tt.payload)
			msg := s.up.expect(t, tt.worker)

			var fields map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(msg.Data, &fields))
			assert.JSONEq(t, `"`+c.id+`"`, string(fields["clientId"]))
		})
	}
}

func TestPingAndUnknownTagsAreNotForwarded(t *testing.T) {
	s := newTestServer(t)
	c := s.connect(t)

	c.send(t, protocol.ClientPing, nil)
	c.send(t, protocol.ClientType("hologram"), map[string]any{"x": 1})

	s.up.expectNone(t)
}

func TestInvalidRequestsGetAnError(t *testing.T) {
	s := newTestServer(t)
	c := s.connect(t)

	tests := []struct {
		name string
		raw  string
	}{
		{"malformed json", `{"type":`},
		{"missing chapter", `{"type":"get-scripture","data":{"book":"John"}}`},
		{"bad direction", `{"type":"navigate","data":{"direction":"up"}}`},
		{"wrong payload type", `{"type":"get-song-lyrics","data":{"songId":"three"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte(tt.raw)))
			msg := c.read(t)
			assert.Equal(t, protocol.ServerError, msg.Type)
		})
	}
	s.up.expectNone(t)
}

func TestShutdownAnnouncesEveryDisconnect(t *testing.T) {
	s := newTestServer(t)
	c1 := s.connect(t)
	c2 := s.connect(t)

	require.NoError(t, s.srv.Shutdown(context.Background()))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		msg := s.up.expect(t, protocol.WorkerClientDisconnected)
		var ref protocol.ClientRef
		require.NoError(t, msg.Decode(&ref))
		seen[ref.ClientID] = true
	}
	assert.True(t, seen[c1.id])
	assert.True(t, seen[c2.id])
	assert.Equal(t, 0, s.srv.Hub().Count())
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	s.connect(t)

	resp, err := http.Get(s.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, float64(1), health["clients"])

	metricsResp, err := http.Get(s.ts.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	body, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "pulpit_remote_clients_connected 1")
}

func TestUpgradeAfterShutdownIsRefused(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.srv.Shutdown(context.Background()))

	url := "ws" + strings.TrimPrefix(s.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	assert.Equal(t, 0, s.srv.Hub().Count())
	s.up.expectNone(t)
}
