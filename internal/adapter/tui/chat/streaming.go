package chat

import "time"

// StreamSpeed controls how fast answers are revealed.
type StreamSpeed int

const (
	StreamNormal  StreamSpeed = iota // 8 runes per tick
	StreamFast                       // 32 runes per tick
	StreamInstant                    // whole answer at once
)

// String returns the label shown by /speed.
func (s StreamSpeed) String() string {
	switch s {
	case StreamInstant:
		return "instan"
	case StreamFast:
		return "cepat"
	case StreamNormal:
		return "normal"
	default:
		return "unknown"
	}
}

// StreamConfig holds streaming parameters.
type StreamConfig struct {
	Speed     StreamSpeed
	ChunkSize int           // runes per tick, 0 means instant
	TickRate  time.Duration // delay between ticks
}

// StreamConfigForSpeed returns the config for a speed preset.
func StreamConfigForSpeed(s StreamSpeed) StreamConfig {
	switch s {
	case StreamInstant:
		return StreamConfig{Speed: StreamInstant}
	case StreamFast:
		return StreamConfig{Speed: StreamFast, ChunkSize: 32, TickRate: 16 * time.Millisecond}
	default:
		return StreamConfig{Speed: StreamNormal, ChunkSize: 8, TickRate: 16 * time.Millisecond}
	}
}

// NextStreamSpeed cycles normal, fast, instant.
func NextStreamSpeed(current StreamSpeed) StreamSpeed {
	switch current {
	case StreamNormal:
		return StreamFast
	case StreamFast:
		return StreamInstant
	default:
		return StreamNormal
	}
}
