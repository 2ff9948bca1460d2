package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/yourorg/forum-chat/internal/apperr"
	"github.com/yourorg/forum-chat/internal/auth"
	"github.com/yourorg/forum-chat/internal/media"
	"github.com/yourorg/forum-chat/internal/metrics"
	"github.com/yourorg/forum-chat/internal/service"
	wsx "github.com/yourorg/forum-chat/internal/ws"
)

type Server struct {
	chat     *service.ChatService
	pipeline *media.Pipeline
	log      *zap.SugaredLogger
}

func NewServer(chat *service.ChatService, pipeline *media.Pipeline, wsh *wsx.Handler, jv *auth.JWTValidator, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: 64 * 1024 * 1024,
	})
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{chat: chat, pipeline: pipeline, log: log}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(metrics.Handler())(c.Context())
		return nil
	})

	v1 := app.Group("/v1")
	v1.Use(AuthMiddleware(jv))

	v1.Post("/channels", s.getOrCreateChannel)
	v1.Get("/channels/:channel_id/messages", s.listMessages)
	v1.Post("/channels/:channel_id/messages", s.createMessage)
	v1.Patch("/messages/:msg_id", s.updateMessage)
	v1.Delete("/messages/:msg_id", s.deleteMessage)
	v1.Post("/channels/:channel_id/heartbeat", s.heartbeat)
	v1.Post("/channels/:channel_id/typing", s.typing)
	v1.Get("/channels/:channel_id/presence", s.presence)
	v1.Post("/attachments", s.uploadAttachment)
	v1.Get("/attachments/:attachment_id/url", s.attachmentURL)

	v1.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	v1.Get("/ws", websocket.New(wsh.Serve))

	return app
}

// AuthMiddleware resolves the trusted user id from the session token. A
// query token is accepted for the websocket upgrade, where clients cannot
// set headers.
func AuthMiddleware(jv *auth.JWTValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := ""
		const pref = "Bearer "
		if h := c.Get("Authorization"); len(h) > len(pref) && h[:len(pref)] == pref {
			token = h[len(pref):]
		} else if q := c.Query("token"); q != "" {
			token = q
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing auth"})
		}
		sub, err := jv.Validate(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		c.Locals("user_id", sub)
		return c.Next()
	}
}

// fail maps domain errors onto HTTP statuses with the precise reason.
func fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrValidation):
		status = fiber.StatusBadRequest
	case errors.Is(err, apperr.ErrFileTooLarge):
		status = fiber.StatusRequestEntityTooLarge
	case errors.Is(err, apperr.ErrUnsupportedType):
		status = fiber.StatusUnsupportedMediaType
	case errors.Is(err, apperr.ErrForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		status = fiber.StatusConflict
	case errors.Is(err, apperr.ErrUploadFailed):
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
