// Package platform abstracts the TV device surface a second-screen session
// drives: input keys, audio volume and playback state.
package platform

// A Key is an input key the device understands.
type Key struct {
	Name string
	Code int
}

// PlayState is the device's playback state.
type PlayState int

const (
	Stopped PlayState = iota
	Playing
	Paused
)

func (s PlayState) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// A Device exposes the parts of the TV platform the session touches.
// Implementations wrap the real platform APIs; SimDevice stands in for them
// in tests and demos.
type Device interface {
	// SupportedKeys enumerates every input key the platform can inject.
	SupportedKeys() []Key

	Volume() int
	SetVolume(level int)
	Muted() bool
	SetMute(mute bool)

	PlayState() PlayState
	// Position is the playback position in seconds.
	Position() float64
	// Duration is the length of the current stream in seconds.
	Duration() float64
}
