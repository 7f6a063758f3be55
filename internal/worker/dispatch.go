package worker

import (
	"encoding/json"
	"strings"

	"github.com/codefionn/pulpit/internal/protocol"
)

// handleClientMessage relays a client request upstream, stamped with the
// client's id. Whatever id the client put in the payload is overwritten.
func (s *Server) handleClientMessage(c *Client, msg protocol.ClientMessage) {
	s.metrics.clientMessages.WithLabelValues(string(msg.Type)).Inc()

	if msg.Type == protocol.ClientPing {
		return
	}

	upstreamType, ok := msg.Type.UpstreamType()
	if !ok {
		s.log.Debug("Ignoring unknown client message %q from %s", msg.Type, c.info.ID)
		return
	}

	ref := protocol.ClientRef{ClientID: c.info.ID}
	var payload any

	switch msg.Type {
	case protocol.ClientGetSongs, protocol.ClientGetThemes, protocol.ClientGetSchedule,
		protocol.ClientGetTranslations, protocol.ClientGoBlank:
		payload = ref

	case protocol.ClientGetSongLyrics:
		var p protocol.SongLyricsRequest
		if !s.decodeClientPayload(c, msg, &p) {
			return
		}
		p.ClientRef = ref
		payload = p

	case protocol.ClientGetScripture:
		var p protocol.ScriptureRequest
		if !s.decodeClientPayload(c, msg, &p) {
			return
		}
		if strings.TrimSpace(p.Book) == "" || p.Chapter <= 0 {
			s.replyError(c.info.ID, "get-scripture requires book and a positive chapter")
			return
		}
		p.ClientRef = ref
		payload = p

	case protocol.ClientGoLive:
		var p protocol.GoLivePayload
		if !s.decodeClientPayload(c, msg, &p) {
			return
		}
		p.ClientRef = ref
		payload = p

	case protocol.ClientNavigate:
		var p protocol.NavigatePayload
		if !s.decodeClientPayload(c, msg, &p) {
			return
		}
		if !p.Direction.Valid() {
			s.replyError(c.info.ID, "navigate direction must be next or prev")
			return
		}
		p.ClientRef = ref
		payload = p

	case protocol.ClientSearchSongs:
		var p protocol.SearchSongsPayload
		if !s.decodeClientPayload(c, msg, &p) {
			return
		}
		p.ClientRef = ref
		payload = p

	case protocol.ClientSearchScripture:
		var p protocol.SearchScripturePayload
		if !s.decodeClientPayload(c, msg, &p) {
			return
		}
		p.ClientRef = ref
		payload = p

	case protocol.ClientAddToSchedule:
		var p protocol.AddToSchedulePayload
		if !s.decodeClientPayload(c, msg, &p) {
			return
		}
		p.ClientRef = ref
		payload = p
	}

	s.emit(upstreamType, payload)
}

func (s *Server) decodeClientPayload(c *Client, msg protocol.ClientMessage, v any) bool {
	if err := msg.Decode(v); err != nil {
		s.log.Debug("Client %s: %v", c.info.ID, err)
		s.replyError(c.info.ID, "invalid "+string(msg.Type)+" payload")
		return false
	}
	return true
}

// HandleHost delivers a host push to clients. State and schedule always go to
// everyone; content replies go to the client named in the payload, or to
// everyone when none is named.
func (s *Server) HandleHost(msg protocol.HostMessage) {
	downstream, ok := msg.Type.DownstreamType()
	if !ok {
		s.log.Debug("Ignoring host message %q", msg.Type)
		return
	}

	switch msg.Type {
	case protocol.HostStateUpdate:
		var p protocol.StateUpdatePayload
		if err := msg.Decode(&p); err != nil {
			s.log.Warn("Dropping state update: %v", err)
			return
		}
		s.stateMu.Lock()
		state := p.State
		s.lastState = &state
		s.stateMu.Unlock()
		s.hub.Broadcast(mustServerMessage(downstream, state))
		return

	case protocol.HostScheduleList:
		s.hub.Broadcast(protocol.ServerMessage{Type: downstream, Data: msg.Data})
		return
	}

	clientID, data, err := splitReply(msg)
	if err != nil {
		s.log.Warn("Dropping %s: %v", msg.Type, err)
		return
	}
	out := protocol.ServerMessage{Type: downstream, Data: data}
	if clientID == "" {
		s.hub.Broadcast(out)
		return
	}
	s.hub.SendTo(clientID, out)
}

// splitReply strips the routing id from a host reply. Scripture chapters are
// unwrapped so clients receive the chapter itself as the message data.
func splitReply(msg protocol.HostMessage) (string, json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if err := msg.Decode(&fields); err != nil {
		return "", nil, err
	}

	var clientID string
	if raw, ok := fields["clientId"]; ok {
		if err := json.Unmarshal(raw, &clientID); err != nil {
			return "", nil, err
		}
		delete(fields, "clientId")
	}

	if msg.Type == protocol.HostScriptureChapter {
		if chapter, ok := fields["data"]; ok {
			return clientID, chapter, nil
		}
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return "", nil, err
	}
	return clientID, data, nil
}
