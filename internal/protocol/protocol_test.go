package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageWithoutPayload(t *testing.T) {
	msg, err := NewMessage(HostStop, nil)
	require.NoError(t, err)

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"stop"}`, string(data))

	var into StartPayload
	require.NoError(t, msg.Decode(&into))
	assert.Zero(t, into.Port)
}

func TestReplyCarriesClientIDOnlyWhenSet(t *testing.T) {
	unicast, err := NewMessage(HostSongsList, SongsListPayload{
		ClientRef: ClientRef{ClientID: "c1"},
		Songs:     []RemoteSong{{ID: 1, Title: "Amazing Grace", Author: "John Newton"}},
	})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"clientId":"c1","songs":[{"id":1,"title":"Amazing Grace","author":"John Newton"}]}`,
		string(unicast.Data))

	broadcast, err := NewMessage(HostSongsList, SongsListPayload{Songs: []RemoteSong{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"songs":[]}`, string(broadcast.Data))
}

func TestDecodeRejectsWrongShape(t *testing.T) {
	msg := WorkerMessage{Type: WorkerStarted, Data: json.RawMessage(`{"port":"eighty"}`)}

	var started StartedPayload
	err := msg.Decode(&started)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "started")
}

func TestUnknownTagsStillDecodeAsEnvelopes(t *testing.T) {
	var msg WorkerMessage
	require.NoError(t, json.Unmarshal([]byte(`{"type":"future-thing","data":{"x":1}}`), &msg))

	assert.Equal(t, WorkerType("future-thing"), msg.Type)
	assert.False(t, msg.Type.IsRequest())
}

func TestClientUpstreamMapping(t *testing.T) {
	tests := []struct {
		client   ClientType
		worker   WorkerType
		forwards bool
	}{
		{ClientGetSongs, WorkerRequestSongs, true},
		{ClientGetSongLyrics, WorkerRequestSongLyrics, true},
		{ClientGetScripture, WorkerRequestScripture, true},
		{ClientGetThemes, WorkerRequestThemes, true},
		{ClientGetSchedule, WorkerRequestSchedule, true},
		{ClientGetTranslations, WorkerRequestTranslations, true},
		{ClientGoLive, WorkerGoLive, true},
		{ClientGoBlank, WorkerGoBlank, true},
		{ClientNavigate, WorkerNavigate, true},
		{ClientSearchSongs, WorkerSearchSongs, true},
		{ClientSearchScripture, WorkerSearchScripture, true},
		{ClientAddToSchedule, WorkerAddToSchedule, true},
		{ClientPing, "", false},
		{ClientType("teleport"), "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.client), func(t *testing.T) {
			wt, ok := tt.client.UpstreamType()
			assert.Equal(t, tt.forwards, ok)
			assert.Equal(t, tt.worker, wt)
			if ok {
				assert.True(t, wt.IsRequest())
			}
		})
	}
}

func TestHostDownstreamMapping(t *testing.T) {
	st, ok := HostScriptureChapter.DownstreamType()
	assert.True(t, ok)
	assert.Equal(t, ServerScripture, st)

	_, ok = HostStart.DownstreamType()
	assert.False(t, ok)
	_, ok = HostStop.DownstreamType()
	assert.False(t, ok)
}

func TestEncoderDecoderPreserveOrder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	for port := 1; port <= 3; port++ {
		msg, err := NewMessage(HostStart, StartPayload{Port: port})
		require.NoError(t, err)
		require.NoError(t, enc.Encode(msg))
	}
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))

	dec := NewDecoder(&buf)
	for want := 1; want <= 3; want++ {
		var msg HostMessage
		require.NoError(t, dec.Decode(&msg))
		var start StartPayload
		require.NoError(t, msg.Decode(&start))
		assert.Equal(t, want, start.Port)
	}

	var msg HostMessage
	assert.True(t, errors.Is(dec.Decode(&msg), io.EOF))
}

func TestNavigateDirectionValid(t *testing.T) {
	assert.True(t, NavigateNext.Valid())
	assert.True(t, NavigatePrev.Valid())
	assert.False(t, NavigateDirection("sideways").Valid())
}
