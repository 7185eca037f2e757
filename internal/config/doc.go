// Package config provides configuration loading and validation for the capture engine.
// It layers a YAML file over built-in defaults and validates the backend endpoints,
// audio capture parameters, and recording windows before the engine starts.
package config
