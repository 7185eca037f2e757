// Package audio handles PCM accumulation, segment encoding, and format negotiation.
// It implements the single-use chunk encoder that flushes one independently decodable
// container per run, the WAV fallback encoder, and the microphone level meter.
package audio
