package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Naitik4516/gravia/internal/log"
)

const (
	deepgramLiveURL = "wss://api.deepgram.com/v1/listen"

	// keepAliveInterval keeps the socket open through quiet stretches.
	keepAliveInterval = 5 * time.Second

	wsWriteTimeout = 10 * time.Second
)

// Deepgram dials live transcription sessions against the Deepgram
// streaming API. The zero value is not usable; use NewDeepgram.
type Deepgram struct {
	apiKey string
	dialer *websocket.Dialer
}

// NewDeepgram returns a Connector backed by the Deepgram live API.
func NewDeepgram(apiKey string) *Deepgram {
	return &Deepgram{
		apiKey: apiKey,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Connect opens a live transcription socket. The returned connection is
// ready for Send immediately; h.OnOpen fires before Connect returns.
func (d *Deepgram) Connect(ctx context.Context, opts LiveOptions, h LiveHandler) (LiveConnection, error) {
	if d.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	q := url.Values{}
	q.Set("model", opts.Model)
	q.Set("encoding", opts.Encoding)
	q.Set("sample_rate", strconv.Itoa(opts.SampleRate))
	q.Set("channels", strconv.Itoa(opts.Channels))
	q.Set("interim_results", strconv.FormatBool(opts.InterimResults))
	q.Set("smart_format", strconv.FormatBool(opts.SmartFormat))
	q.Set("vad_events", "true")
	q.Set("mip_opt_out", "true")
	if opts.UtteranceEndMs > 0 {
		q.Set("utterance_end_ms", strconv.Itoa(opts.UtteranceEndMs))
	}

	header := http.Header{}
	header.Set("Authorization", "Token "+d.apiKey)

	conn, resp, err := d.dialer.DialContext(ctx, deepgramLiveURL+"?"+q.Encode(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("deepgram dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("deepgram dial failed: %w", err)
	}

	c := &deepgramConn{
		ws:      conn,
		handler: h,
		done:    make(chan struct{}),
	}
	go c.readLoop()
	go c.keepAliveLoop()

	if h.OnOpen != nil {
		h.OnOpen()
	}
	return c, nil
}

type deepgramConn struct {
	ws      *websocket.Conn
	handler LiveHandler

	writeMu sync.Mutex // serializes writes to ws
	done    chan struct{}
	closeMu sync.Mutex
	closed  bool
}

// deepgramMessage is the subset of the live API response we consume.
type deepgramMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

func (c *deepgramConn) Send(pcm []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.ws.WriteMessage(websocket.BinaryMessage, pcm)
}

func (c *deepgramConn) Finish() error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.closeMu.Unlock()

	c.writeMu.Lock()
	c.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	// Ask the service to flush pending results before tearing down.
	c.ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
	c.writeMu.Unlock()

	// Give the read loop a moment to drain final results, then close.
	time.AfterFunc(2*time.Second, func() { c.ws.Close() })
	return nil
}

func (c *deepgramConn) readLoop() {
	defer func() {
		c.ws.Close()
		if c.handler.OnClose != nil {
			c.handler.OnClose()
		}
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				// Expected teardown.
			default:
				if c.handler.OnError != nil {
					c.handler.OnError(fmt.Errorf("deepgram read: %w", err))
				}
			}
			return
		}

		var msg deepgramMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug("deepgram: unparseable message", "error", err)
			continue
		}

		switch msg.Type {
		case "Results":
			if len(msg.Channel.Alternatives) == 0 {
				continue
			}
			text := msg.Channel.Alternatives[0].Transcript
			if text == "" {
				continue
			}
			if c.handler.OnTranscript != nil {
				c.handler.OnTranscript(text, msg.IsFinal)
			}
		case "UtteranceEnd":
			if c.handler.OnUtteranceEnd != nil {
				c.handler.OnUtteranceEnd()
			}
		case "Error":
			if c.handler.OnError != nil {
				desc := msg.Description
				if desc == "" {
					desc = msg.Message
				}
				c.handler.OnError(fmt.Errorf("deepgram: %s", desc))
			}
		}
	}
}

func (c *deepgramConn) keepAliveLoop() {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			err := c.ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
