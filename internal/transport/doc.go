// Package transport implements the persistent WebSocket connection to the
// inference service. It sends flushed audio segments as binary frames, parses
// asynchronous text-frame results, and never reconnects on its own.
package transport
