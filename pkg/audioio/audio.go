package audioio

import (
	"context"
	"io"
)

// AudioChunk is one buffer of PCM16 audio.
type AudioChunk struct {
	// Samples holds interleaved little-endian PCM16 samples.
	Samples []int16

	// SampleRate is the rate the samples were captured or decoded at.
	SampleRate int

	// Channels is the interleaved channel count.
	Channels int
}

// Bytes returns the chunk as raw little-endian PCM16.
func (c *AudioChunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// FromBytes fills the chunk from raw little-endian PCM16.
func (c *AudioChunk) FromBytes(data []byte, sampleRate, channels int) {
	c.Samples = BytesToSamples(data)
	c.SampleRate = sampleRate
	c.Channels = channels
}

// Source captures audio from a microphone.
//
// A started source delivers chunks on Stream's channel from a dedicated
// capture goroutine. That goroutine is the only closer of the channel:
// after Stop, consumers ranging over Stream see it close once the final
// chunk has been handed off.
type Source interface {
	// Start begins capture. Starting a running source is a no-op.
	Start(ctx context.Context) error

	// Stop halts capture and lets the stream channel drain closed.
	// Safe to call repeatedly.
	Stop() error

	// Stream returns the capture channel for the current run.
	Stream() <-chan AudioChunk

	// Config returns the audio configuration.
	Config() Config

	// Name returns the backend name.
	Name() string

	// Close releases the device. The source cannot be restarted after.
	io.Closer
}

// Sink plays audio on an output device.
type Sink interface {
	// Start opens the device. Starting a running sink is a no-op.
	Start(ctx context.Context) error

	// Stop closes the device stream. Safe to call repeatedly; a
	// subsequent Start reopens it fresh.
	Stop() error

	// Write queues a chunk on the device. Blocks while the device
	// drains earlier buffers.
	Write(ctx context.Context, chunk AudioChunk) error

	// Flush plays out anything the sink still holds.
	Flush(ctx context.Context) error

	// Clear discards held audio that has not reached the device.
	Clear() error

	// Config returns the audio configuration.
	Config() Config

	// Name returns the backend name.
	Name() string

	// Close releases the device. The sink cannot be restarted after.
	io.Closer
}
