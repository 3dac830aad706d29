package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/Naitik4516/gravia/internal/log"
	"github.com/Naitik4516/gravia/pkg/tts"
)

// Silence-trim parameters: drop samples quieter than the threshold from
// the synthesis engine's lead-in, scanning at most the first ~40ms.
const (
	silenceThreshold = 4
	silenceWindowMs  = 40
)

// Buffered re-decode thresholds: don't decode until the payload is at
// least minInitialBytes, then only after it has grown by minDeltaBytes.
const (
	minInitialBytes = 3000
	minDeltaBytes   = 1800
)

// EmitFunc receives decoded PCM chunks in playback order.
type EmitFunc func(pcm []byte) error

// Engine turns one utterance's encoded synthesis stream into PCM at the
// canonical playback rate.
type Engine interface {
	// Decode reads the stream to completion, calling emit for each PCM
	// chunk. A ctx cancellation or emit error aborts the decode.
	Decode(ctx context.Context, stream tts.AudioStream, emit EmitFunc) error

	// Name identifies the engine in logs.
	Name() string
}

// silenceTrimmer strips a synthesis engine's characteristic silent
// lead-in. It inspects at most the first window of PCM; once a loud
// sample appears or the window is exhausted, it passes data through
// untouched.
type silenceTrimmer struct {
	done   bool
	budget int // bytes left to inspect
}

func newSilenceTrimmer(sampleRate int) *silenceTrimmer {
	return &silenceTrimmer{budget: sampleRate * 2 * silenceWindowMs / 1000}
}

func (t *silenceTrimmer) process(pcm []byte) []byte {
	if t.done {
		return pcm
	}
	limit := len(pcm)
	if t.budget < limit {
		limit = t.budget
	}
	for i := 0; i+1 < limit; i += 2 {
		s := int16(pcm[i]) | int16(pcm[i+1])<<8
		if s > silenceThreshold || s < -silenceThreshold {
			t.done = true
			return pcm[i:]
		}
	}
	t.budget -= limit
	if t.budget <= 0 {
		t.done = true
	}
	return pcm[limit:]
}

// StreamEngine decodes through a long-lived external decoder process with
// independent feed and read loops, so network jitter on the encoded side
// never stalls PCM delivery and vice versa.
type StreamEngine struct {
	command    string
	sampleRate int
	chunkBytes int
}

// NewStreamEngine verifies the decoder command is available and returns a
// streaming engine. Returns an error when the command cannot be found, in
// which case callers should fall back to a BufferEngine.
func NewStreamEngine(command string, sampleRate, chunkBytes int) (*StreamEngine, error) {
	if _, err := exec.LookPath(command); err != nil {
		return nil, fmt.Errorf("decoder command %q not available: %w", command, err)
	}
	return &StreamEngine{command: command, sampleRate: sampleRate, chunkBytes: chunkBytes}, nil
}

func (e *StreamEngine) Name() string { return "stream:" + e.command }

func (e *StreamEngine) Decode(ctx context.Context, stream tts.AudioStream, emit EmitFunc) error {
	cmd := exec.CommandContext(ctx, e.command,
		"-loglevel", "quiet",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", strconv.Itoa(e.sampleRate),
		"-ac", "1",
		"pipe:1",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("decoder stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("decoder stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting decoder: %w", err)
	}

	// Feed loop: encoded bytes from the service into the decoder.
	var feedErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer stdin.Close()
		for {
			if ctx.Err() != nil {
				feedErr = ctx.Err()
				return
			}
			data, err := stream.Read()
			if err != nil {
				feedErr = err
				return
			}
			if data == nil {
				return
			}
			if _, err := stdin.Write(data); err != nil {
				// Decoder gone; the read side reports the real cause.
				return
			}
		}
	}()

	// Read loop: decoded PCM out of the decoder, trimmed and chunked.
	trimmer := newSilenceTrimmer(e.sampleRate)
	buf := make([]byte, e.chunkBytes)
	var readErr error
	for {
		if ctx.Err() != nil {
			readErr = ctx.Err()
			break
		}
		n, err := io.ReadFull(stdout, buf)
		if n > 0 {
			pcm := trimmer.process(buf[:n])
			if len(pcm) > 0 {
				if emitErr := emit(pcm); emitErr != nil {
					readErr = emitErr
					break
				}
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			readErr = fmt.Errorf("reading decoder output: %w", err)
			break
		}
	}

	if readErr != nil {
		// Tear the process down so the feed loop unblocks.
		cmd.Process.Kill()
	}
	wg.Wait()
	waitErr := cmd.Wait()

	if readErr != nil {
		return readErr
	}
	if feedErr != nil {
		return fmt.Errorf("reading synthesis stream: %w", feedErr)
	}
	if waitErr != nil && ctx.Err() == nil {
		return fmt.Errorf("decoder exited: %w", waitErr)
	}
	return ctx.Err()
}

// DecodeAllFunc decodes a complete encoded payload to PCM in one shot.
type DecodeAllFunc func(ctx context.Context, encoded []byte) ([]byte, error)

// BufferEngine is the fallback decode strategy: accumulate the encoded
// payload and re-decode the whole buffer whenever it has grown enough,
// emitting only the newly decoded tail. Costs more CPU per utterance than
// StreamEngine but needs no long-lived decoder process.
type BufferEngine struct {
	decode     DecodeAllFunc
	sampleRate int
}

// NewBufferEngine builds a fallback engine around a one-shot decode
// function.
func NewBufferEngine(decode DecodeAllFunc, sampleRate int) *BufferEngine {
	return &BufferEngine{decode: decode, sampleRate: sampleRate}
}

// NewCommandBufferEngine builds a fallback engine that runs the decoder
// command once per re-decode, piping the whole payload through it.
func NewCommandBufferEngine(command string, sampleRate int) *BufferEngine {
	decode := func(ctx context.Context, encoded []byte) ([]byte, error) {
		cmd := exec.CommandContext(ctx, command,
			"-loglevel", "quiet",
			"-i", "pipe:0",
			"-f", "s16le",
			"-ar", strconv.Itoa(sampleRate),
			"-ac", "1",
			"pipe:1",
		)
		cmd.Stdin = bytes.NewReader(encoded)
		var out bytes.Buffer
		cmd.Stdout = &out
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("decode run: %w", err)
		}
		return out.Bytes(), nil
	}
	return &BufferEngine{decode: decode, sampleRate: sampleRate}
}

func (e *BufferEngine) Name() string { return "buffer" }

func (e *BufferEngine) Decode(ctx context.Context, stream tts.AudioStream, emit EmitFunc) error {
	var (
		encoded     []byte
		lastDecoded int // encoded bytes covered by the last decode
		emitted     int // PCM bytes already emitted
	)
	trimmer := newSilenceTrimmer(e.sampleRate)

	flush := func() error {
		pcm, err := e.decode(ctx, encoded)
		if err != nil {
			return err
		}
		lastDecoded = len(encoded)
		if len(pcm) <= emitted {
			return nil
		}
		tail := trimmer.process(pcm[emitted:])
		emitted = len(pcm)
		if len(tail) == 0 {
			return nil
		}
		return emit(tail)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		data, err := stream.Read()
		if err != nil {
			return fmt.Errorf("reading synthesis stream: %w", err)
		}
		if data == nil {
			break
		}
		encoded = append(encoded, data...)
		if len(encoded) >= minInitialBytes && len(encoded)-lastDecoded >= minDeltaBytes {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	if len(encoded) > lastDecoded {
		if err := flush(); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// NewEngine picks the streaming engine when the decoder command is
// available and falls back to whole-buffer re-decode otherwise.
func NewEngine(command string, sampleRate, chunkBytes int) Engine {
	engine, err := NewStreamEngine(command, sampleRate, chunkBytes)
	if err != nil {
		log.Warn("streaming decoder unavailable, using buffered fallback", "error", err)
		return NewCommandBufferEngine(command, sampleRate)
	}
	return engine
}
