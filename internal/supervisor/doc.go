// Package supervisor runs on the host side of the remote control subsystem.
//
// A Supervisor owns at most one worker process. It launches the worker,
// issues start and stop, caches what the worker reports (running flag, port,
// addresses, connected clients) and turns worker messages into Events for
// the UI and the command bridge. The cached state is only ever written from
// worker messages and from teardown, which makes Status a cheap read.
package supervisor
