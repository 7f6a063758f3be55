// Package protocol defines the two message boundaries of the remote control
// subsystem.
//
// The host (supervisor) and the worker process exchange HostMessage and
// WorkerMessage values over a single ordered pipe, one JSON envelope per line:
//
//	{"type":"start","data":{"port":8080}}
//	{"type":"started","data":{"port":8080,"addresses":["192.168.1.20"]}}
//
// External clients and the worker exchange ClientMessage and ServerMessage
// values over WebSocket text frames using the same envelope shape.
//
// Every receiver dispatches with a switch over the tag and drops tags it does
// not know, so a newer peer can add message types without breaking an older
// one. Payloads stay raw until the receiver picks the matching struct.
//
// Replies to clients carry the host payload minus its clientId, so songs
// arrive as {"songs":[...]} and themes as {"themes":[...]}. The scripture
// reply is the one exception: its data is the chapter itself,
//
//	{"type":"scripture","data":{"book":"John","chapter":3,"version":"KJV","verses":[...]}}
//
// rather than {"data":{...}} nested inside data.
package protocol
