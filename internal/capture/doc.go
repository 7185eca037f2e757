// Package capture provides microphone acquisition and release-once session handling.
// A Session owns exactly one live device stream, delivers mono PCM frames to chunk
// encoders, and guarantees the device is released on every teardown path.
package capture
