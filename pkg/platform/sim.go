package platform

import "sync"

// simKeys is a typical TV remote, beyond the navigation keys every
// device supports.
var simKeys = []Key{
	{Name: "Back", Code: 8},
	{Name: "Exit", Code: 27},
	{Name: "PageUp", Code: 33},
	{Name: "PageDown", Code: 34},
	{Name: "0", Code: 48},
	{Name: "1", Code: 49},
	{Name: "2", Code: 50},
	{Name: "3", Code: 51},
	{Name: "4", Code: 52},
	{Name: "5", Code: 53},
	{Name: "6", Code: 54},
	{Name: "7", Code: 55},
	{Name: "8", Code: 56},
	{Name: "9", Code: 57},
	{Name: "Play", Code: 415},
	{Name: "Pause", Code: 19},
	{Name: "Stop", Code: 413},
	{Name: "Rewind", Code: 412},
	{Name: "FastForward", Code: 417},
}

// SimDevice is an in-memory Device for tests and the demo host.
type SimDevice struct {
	mu       sync.Mutex
	keys     []Key
	volume   int
	muted    bool
	state    PlayState
	position float64
	duration float64
}

// NewSimDevice creates a simulated device at volume 50, stopped.
func NewSimDevice() *SimDevice {
	return &SimDevice{
		keys:   simKeys,
		volume: 50,
	}
}

// SupportedKeys returns the simulated remote's key map.
func (d *SimDevice) SupportedKeys() []Key {
	d.mu.Lock()
	defer d.mu.Unlock()
	keys := make([]Key, len(d.keys))
	copy(keys, d.keys)
	return keys
}

func (d *SimDevice) Volume() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume
}

func (d *SimDevice) SetVolume(level int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	d.volume = level
}

func (d *SimDevice) Muted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.muted
}

func (d *SimDevice) SetMute(mute bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.muted = mute
}

func (d *SimDevice) PlayState() PlayState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SetPlayState drives the simulated player.
func (d *SimDevice) SetPlayState(s PlayState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = s
}

func (d *SimDevice) Position() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position
}

// SetPosition drives the simulated player.
func (d *SimDevice) SetPosition(seconds float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.position = seconds
}

func (d *SimDevice) Duration() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.duration
}

// SetDuration drives the simulated player.
func (d *SimDevice) SetDuration(seconds float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.duration = seconds
}
