// Package server exposes a running control loop over HTTP and websocket:
// runtime params and scene layout for reading, commands and lifecycle
// control for writing, and a render-sync frame stream for remote viewers.
package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/san-kum/policyloop/internal/config"
	"github.com/san-kum/policyloop/internal/loop"
	"go.uber.org/zap"
)

var errUnknownAction = errors.New("unknown control action")

type Server struct {
	app         *fiber.App
	orch        *loop.Orchestrator
	logger      *zap.Logger
	hub         *hub
	frameEvery  uint64
	unsubscribe func()
}

func New(o *loop.Orchestrator, cfg config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	every := cfg.FrameEvery
	if every < 1 {
		every = 1
	}
	s := &Server{
		app:        fiber.New(fiber.Config{DisableStartupMessage: true}),
		orch:       o,
		logger:     logger.Named("server"),
		hub:        newHub(),
		frameEvery: uint64(every),
	}
	s.routes()
	s.unsubscribe = o.Subscribe(s)
	return s
}

func (s *Server) App() *fiber.App { return s.app }

func (s *Server) routes() {
	s.app.Get("/params", s.getParams)
	s.app.Get("/scene", s.getScene)
	s.app.Post("/commands", s.postCommands)
	s.app.Post("/control/:action", s.postControl)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws", websocket.New(s.serveWS))
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown detaches from the loop, disconnects viewers and stops the
// HTTP server.
func (s *Server) Shutdown() error {
	s.unsubscribe()
	s.hub.closeAll()
	return s.app.Shutdown()
}

// OnTick streams every frameEvery-th frame to connected viewers.
func (s *Server) OnTick(f loop.Frame) {
	if f.Tick%s.frameEvery != 0 || s.hub.len() == 0 {
		return
	}
	msg, err := encode(TypeFrame, newFrameMessage(f))
	if err != nil {
		s.logger.Warn("encoding frame", zap.Uint64("tick", f.Tick), zap.Error(err))
		return
	}
	s.hub.broadcast(msg)
}

func (s *Server) getParams(c *fiber.Ctx) error {
	return c.JSON(s.orch.Params())
}

func (s *Server) getScene(c *fiber.Ctx) error {
	return c.JSON(newSceneInfo(s.orch.Binding()))
}

func (s *Server) postCommands(c *fiber.Ctx) error {
	var req CommandsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}
	if err := s.setCommands(req.Values); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.JSON(s.orch.Binding().Commands.Snapshot())
}

func (s *Server) postControl(c *fiber.Ctx) error {
	err := s.control(c.Params("action"))
	switch {
	case errors.Is(err, errUnknownAction):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error()})
	case err != nil:
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.JSON(s.orch.Params())
}

func (s *Server) setCommands(values map[string]float64) error {
	cmds := s.orch.Binding().Commands
	if cmds == nil {
		return fmt.Errorf("scene %s takes no commands", s.orch.Binding().Name)
	}
	return cmds.SetMany(values)
}

func (s *Server) control(action string) error {
	var err error
	switch action {
	case "start":
		err = s.orch.Start()
	case "pause":
		err = s.orch.Pause()
	case "resume":
		err = s.orch.Resume()
	case "stop":
		err = s.orch.Stop()
	case "reset":
		s.orch.Reset()
	default:
		return fmt.Errorf("%w: %q", errUnknownAction, action)
	}
	if err == nil {
		s.logger.Info("control", zap.String("action", action), zap.Stringer("state", s.orch.State()))
	}
	return err
}

func (s *Server) serveWS(c *websocket.Conn) {
	scene, err := encode(TypeScene, newSceneInfo(s.orch.Binding()))
	if err != nil {
		s.logger.Warn("encoding scene", zap.Error(err))
		return
	}
	if err := c.WriteMessage(websocket.TextMessage, scene); err != nil {
		return
	}

	cl := s.hub.add()
	defer s.hub.remove(cl)
	s.logger.Debug("viewer connected", zap.String("remote", c.RemoteAddr().String()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range cl.send {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
		c.Close()
	}()

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			break
		}
		s.hub.sendTo(cl, s.handleMessage(raw))
	}
	s.hub.remove(cl)
	<-done
	s.logger.Debug("viewer disconnected")
}

// handleMessage applies one inbound message and returns the reply.
func (s *Server) handleMessage(raw []byte) []byte {
	var in Message
	if err := json.Unmarshal(raw, &in); err != nil {
		return s.errorReply(fmt.Errorf("invalid message: %w", err))
	}

	switch in.Type {
	case TypeCommands:
		var req CommandsRequest
		if err := json.Unmarshal(in.Data, &req); err != nil {
			return s.errorReply(err)
		}
		if err := s.setCommands(req.Values); err != nil {
			return s.errorReply(err)
		}
	case TypeControl:
		var req ControlRequest
		if err := json.Unmarshal(in.Data, &req); err != nil {
			return s.errorReply(err)
		}
		if err := s.control(req.Action); err != nil {
			return s.errorReply(err)
		}
	default:
		return s.errorReply(fmt.Errorf("unknown message type %q", in.Type))
	}

	msg, err := encode(TypeParams, s.orch.Params())
	if err != nil {
		return s.errorReply(err)
	}
	return msg
}

func (s *Server) errorReply(err error) []byte {
	msg, _ := encode(TypeError, ErrorResponse{Error: err.Error()})
	return msg
}
