// Command graviad runs the gravia voice daemon: it bridges a websocket
// application channel to live speech recognition and streaming speech
// synthesis on the local audio devices.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Naitik4516/gravia/internal/channel"
	"github.com/Naitik4516/gravia/internal/config"
	"github.com/Naitik4516/gravia/internal/log"
	"github.com/Naitik4516/gravia/pkg/audioio"
	"github.com/Naitik4516/gravia/pkg/speech"
	"github.com/Naitik4516/gravia/pkg/transcribe"
	"github.com/Naitik4516/gravia/pkg/tts"
	"github.com/Naitik4516/gravia/pkg/vad"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "graviad: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	log.Init(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Transcription side.
	transcribeCfg := transcribe.DefaultConfig()
	transcribeCfg.SampleRate = cfg.CaptureRate
	transcribeCfg.InactivityTimeout = cfg.InactivityTimeout
	transcribeCfg.VADThreshold = float32(cfg.VADThreshold)

	var scorer vad.Scorer
	if cfg.VADThreshold > 0 {
		scorer = vad.NewEnergy(0)
	}

	captureCfg := audioio.DefaultCaptureConfig()
	captureCfg.Backend = audioio.Backend(cfg.AudioBackend)
	captureCfg.SampleRate = cfg.CaptureRate
	captureCfg.Device = cfg.AudioDevice

	registry := transcribe.NewRegistry(
		transcribeCfg,
		transcribe.NewDeepgram(cfg.DeepgramAPIKey),
		func() (audioio.Source, error) { return audioio.NewSource(captureCfg, log.L()) },
		scorer,
	)
	defer registry.CloseAll()

	// Synthesis side.
	provider, err := tts.NewElevenLabs(
		tts.WithAPIKey(cfg.ElevenLabsAPIKey),
		tts.WithVoice(cfg.VoiceID),
		tts.WithLogger(log.L()),
	)
	if err != nil {
		return fmt.Errorf("creating synthesis provider: %w", err)
	}
	defer provider.Close()

	playbackCfg := audioio.DefaultPlaybackConfig()
	playbackCfg.Backend = audioio.Backend(cfg.AudioBackend)
	playbackCfg.SampleRate = cfg.PlaybackRate
	playbackCfg.Device = cfg.AudioDevice
	sink, err := audioio.NewSink(playbackCfg, log.L())
	if err != nil {
		return fmt.Errorf("creating audio sink: %w", err)
	}

	speechCfg := speech.DefaultConfig()
	speechCfg.MinWords = cfg.MinWords
	speechCfg.MinChars = cfg.MinChars
	speechCfg.FlushTimeout = cfg.FlushTimeout
	speechCfg.SampleRate = cfg.PlaybackRate

	engine := speech.NewEngine(cfg.DecoderCommand, speechCfg.SampleRate, speechCfg.ChunkBytes)

	// The router is the notifier so utterance lifecycle messages reach
	// the client that requested speech.
	router := channel.NewRouter(registry)
	manager, err := speech.NewManager(speechCfg, provider, engine, speech.NewStreamer(sink), router)
	if err != nil {
		return fmt.Errorf("creating speech manager: %w", err)
	}
	defer manager.Close()
	router.BindSpeaker(manager)

	server := channel.NewServer(cfg.ListenAddr, router)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("channel server: %w", err)
		}
	}

	if err := server.Shutdown(); err != nil {
		log.Warn("server shutdown", "error", err)
	}
	return nil
}
