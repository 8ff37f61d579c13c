// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package devserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/alumnet-portal/chatsync/lib/clock"
	"github.com/alumnet-portal/chatsync/lib/codec"
	"github.com/alumnet-portal/chatsync/lib/ref"
	"github.com/alumnet-portal/chatsync/portal"
)

// APIPrefix is the path the REST endpoints are mounted under, so a
// client's portal base URL is "http://host:port/api". The event
// channel is at "/ws".
const APIPrefix = "/api"

const (
	localUser  = "devserver.user"
	localCodec = "devserver.codec"
)

// Server is the development backend. Create it with New, serve it
// with Serve or Listen, and stop it with Shutdown.
type Server struct {
	app        *fiber.App
	hub        *hub
	sendBuffer int
	cancel     context.CancelFunc
	logger     *slog.Logger
}

// New validates config and starts the hub. The HTTP side does not
// accept connections until Serve or Listen.
func New(config Config) (*Server, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	config.Logger = config.Logger.With("component", "devserver")
	if config.SendBuffer <= 0 {
		config.SendBuffer = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := newHub(config)
	go h.run(ctx)

	server := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "alumnet-chat-devserver",
			DisableStartupMessage: true,
			ErrorHandler:          errorHandler,
		}),
		hub:        h,
		sendBuffer: config.SendBuffer,
		cancel:     cancel,
		logger:     config.Logger,
	}
	server.routes()
	return server, nil
}

func (s *Server) routes() {
	s.app.Get("/ws", s.upgrade, websocket.New(s.serveChannel))

	api := s.app.Group(APIPrefix, s.authenticate)
	api.Get("/messages", s.listConversations)
	api.Get("/messages/:userId", s.history)
	api.Post("/messages/:userId/pin", s.togglePin)
	api.Post("/messages/:userId/delete", s.deleteConversation)
}

// Serve accepts connections on listener until Shutdown.
func (s *Server) Serve(listener net.Listener) error {
	s.logger.Info("serving", "address", listener.Addr().String())
	return s.app.Listener(listener)
}

// Listen serves on address until Shutdown.
func (s *Server) Listen(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Shutdown closes every channel connection, then stops the HTTP
// server, waiting up to timeout for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.cancel()
	<-s.hub.done
	return s.app.ShutdownWithTimeout(timeout)
}

// Revoke invalidates token. Its user's open channel connections get a
// disconnect frame with reason "auth", and the token is rejected from
// then on. Revoke reports whether token was known.
func (s *Server) Revoke(ctx context.Context, token string) (bool, error) {
	return s.hub.revoke(ctx, token)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}
	return c.Status(code).JSON(fiber.Map{"message": err.Error()})
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return ""
	}
	return strings.TrimSpace(token)
}

func (s *Server) authenticate(c *fiber.Ctx) error {
	token := bearerToken(c)
	if token == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
	}
	user, ok, err := s.hub.authenticate(c.UserContext(), token)
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid bearer token")
	}
	c.Locals(localUser, user)
	return c.Next()
}

// upgrade authenticates a websocket upgrade before it happens, so a
// bad token is refused with a plain 401.
func (s *Server) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	frameCodec, err := codec.ForFormat(codec.Format(c.Query("codec")))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	c.Locals(localCodec, frameCodec)
	return s.authenticate(c)
}

func (s *Server) serveChannel(conn *websocket.Conn) {
	user, _ := conn.Locals(localUser).(portal.User)
	frameCodec, _ := conn.Locals(localCodec).(codec.FrameCodec)
	if user.ID.IsZero() || frameCodec == nil {
		return
	}

	c := newClient(user.ID, frameCodec, s.sendBuffer)
	if !s.hub.enter(c) {
		return
	}
	written := make(chan struct{})
	go func() {
		defer close(written)
		c.writePump(conn)
	}()
	c.readPump(conn, s.hub)
	<-written
}

func currentUser(c *fiber.Ctx) portal.User {
	user, _ := c.Locals(localUser).(portal.User)
	return user
}

func counterpartParam(c *fiber.Ctx) (ref.UserID, error) {
	counterpart, err := ref.UserIDOf(c.Params("userId"))
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if counterpart == currentUser(c).ID {
		return "", fiber.NewError(fiber.StatusBadRequest, "cannot open a conversation with yourself")
	}
	return counterpart, nil
}

func (s *Server) listConversations(c *fiber.Ctx) error {
	summaries, err := s.hub.conversations(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(summaries)
}

func (s *Server) history(c *fiber.Ctx) error {
	counterpart, err := counterpartParam(c)
	if err != nil {
		return err
	}
	messages, err := s.hub.history(c.UserContext(), currentUser(c).ID, counterpart)
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(messages)
}

func (s *Server) togglePin(c *fiber.Ctx) error {
	counterpart, err := counterpartParam(c)
	if err != nil {
		return err
	}
	pinned, err := s.hub.togglePin(c.UserContext(), currentUser(c).ID, counterpart)
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	s.logger.Debug("pin toggled", "user_id", currentUser(c).ID, "counterpart", counterpart, "pinned", pinned)
	return c.JSON(portal.ToggleResult{Success: true})
}

func (s *Server) deleteConversation(c *fiber.Ctx) error {
	counterpart, err := counterpartParam(c)
	if err != nil {
		return err
	}
	if err := s.hub.deleteConversation(c.UserContext(), currentUser(c).ID, counterpart); err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(portal.ToggleResult{Success: true})
}
