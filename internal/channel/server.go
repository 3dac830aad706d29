package channel

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/Naitik4516/gravia/internal/log"
)

// Server exposes the voice channel over a websocket endpoint.
type Server struct {
	app    *fiber.App
	addr   string
	router *Router
}

// NewServer builds the channel server around a router.
func NewServer(addr string, router *Router) *Server {
	s := &Server{addr: addr, router: router}

	app := fiber.New(fiber.Config{
		AppName:               "gravia voice channel",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/voice", websocket.New(s.handleVoice))

	s.app = app
	return s
}

// handleVoice owns one client connection for its lifetime.
func (s *Server) handleVoice(conn *websocket.Conn) {
	client := newClient(conn)
	s.router.register(client)
	defer s.router.unregister(client)

	client.Send(sessionCreated(client.ID()))
	client.run(func(msg Message) {
		s.router.handleCommand(client, msg)
	})
}

// Start blocks serving the channel endpoint.
func (s *Server) Start() error {
	log.Info("voice channel listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
