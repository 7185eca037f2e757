// Package predict implements the one-shot HTTP client of the inference backend.
// It uploads a single audio payload as a multipart request to the synchronous
// prediction endpoint and parses the emotion/confidence response. Failed
// requests are reported once and never retried.
package predict
