// Package tts streams synthesized speech from remote text-to-speech
// services.
//
// A Provider takes normalized text for a configured voice and streams
// encoded audio back incrementally, so playback can begin before the
// service finishes rendering the utterance.
//
//	provider, _ := tts.NewElevenLabs(
//	    tts.WithAPIKey(os.Getenv("ELEVENLABS_API_KEY")),
//	    tts.WithVoice("your-voice-id"),
//	)
//	defer provider.Close()
//
//	stream, _ := provider.Stream(ctx, "Hello world")
//	// stream.Read returns encoded audio chunks as they arrive
package tts

import "context"

// Provider is a streaming speech-synthesis backend.
type Provider interface {
	// Stream converts text to audio, returning chunks as they become
	// available.
	Stream(ctx context.Context, text string) (AudioStream, error)

	// Close releases any resources held by the provider.
	Close() error
}

// AudioStream is one synthesis response in flight. Callers read until
// Read returns nil, then call Close.
type AudioStream interface {
	// Read returns the next audio chunk. A nil chunk with a nil error
	// means the stream is complete.
	Read() ([]byte, error)

	// Close stops the stream and releases resources.
	Close() error

	// Format returns the audio format metadata.
	Format() AudioFormat
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	// Encoding is the codec identifier (e.g. pcm_24000, mp3_44100_128).
	Encoding Encoding

	// SampleRate in Hz.
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int

	// BitDepth for PCM formats.
	BitDepth int
}

// Encoding names an output format. Values match ElevenLabs output
// format identifiers.
type Encoding string

const (
	EncodingPCM16 Encoding = "pcm_16000"
	EncodingPCM22 Encoding = "pcm_22050"
	EncodingPCM24 Encoding = "pcm_24000"
	EncodingPCM44 Encoding = "pcm_44100"

	EncodingMP3 Encoding = "mp3_44100_128"
)

// VoiceSettings shapes the rendered voice. Lower stability reads as more
// expressive; higher similarity tracks the reference voice more closely.
type VoiceSettings struct {
	Stability       float64
	SimilarityBoost float64

	// Style exaggeration; v2 models only.
	Style float64

	// SpeakerBoost enhances speaker clarity.
	SpeakerBoost bool
}

// DefaultVoiceSettings returns the production voice shaping values.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Style:           0.0,
		SpeakerBoost:    true,
	}
}

// SampleRateFromEncoding maps an encoding to its sample rate.
func SampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingPCM16:
		return 16000
	case EncodingPCM22:
		return 22050
	case EncodingPCM24:
		return 24000
	case EncodingPCM44, EncodingMP3:
		return 44100
	default:
		return 24000
	}
}
