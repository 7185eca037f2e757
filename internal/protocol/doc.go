// Package protocol implements the JSON wire contract of the inference backend.
// It parses and validates streaming socket frames (result or error messages)
// and the request/response bodies of the one-shot prediction endpoint.
package protocol
