// Package session implements the top-level recording state machine. A
// Controller owns which of the Idle, Realtime, and Bounded modes is active,
// coordinates the capture device, chunk encoders, timers, and the streaming
// transport, and guarantees every resource is released on every exit path.
// Asynchronous continuations are validated against a monotonically increasing
// epoch so callbacks from a torn-down activation are guaranteed no-ops.
package session
