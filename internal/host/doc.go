// Package host drives an Effect from real audio: a malgo duplex device for
// live use, and a WAV renderer with scheduled control events for offline
// use.
package host
