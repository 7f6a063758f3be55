// Package worker is the remote control worker process.
//
// The worker owns every external client socket. It is started by the
// supervisor with its stdin and stdout wired to the host pipe (see package
// protocol) and never touches the content store or UI state itself:
//
//   - Run reads host commands (start, stop, pushes) from stdin.
//   - Server accepts WebSocket clients on /ws and keeps them in the Hub.
//   - Client requests are relayed upward tagged with the client id; host
//     replies carrying that id are unicast back, everything else is broadcast.
//
// Logs go to stderr. Stdout carries protocol messages only.
package worker
