package controller

import (
	"github.com/gofiber/fiber/v2"

	"doc-chat-be/internal/apperr"
	"doc-chat-be/internal/pkg/serverutils"
	"doc-chat-be/internal/service"
)

const (
	// HeaderSessionID scopes every document and question to one session.
	HeaderSessionID = "X-Session-ID"
	// HeaderProvider selects the embedding provider at session creation.
	HeaderProvider = "X-Provider"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Clear(ctx *fiber.Ctx) error
}

type sessionController struct {
	sessionService service.ISessionService
}

func NewSessionController(sessionService service.ISessionService) ISessionController {
	return &sessionController{
		sessionService: sessionService,
	}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/session/v1")
	h.Post("", c.Create)
	h.Delete("", c.Clear)
}

func (c *sessionController) Create(ctx *fiber.Ctx) error {
	provider := ctx.Get(HeaderProvider)

	res, err := c.sessionService.Create(ctx.Context(), provider)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Session created", res))
}

func (c *sessionController) Clear(ctx *fiber.Ctx) error {
	sessionID, err := RequireSessionID(ctx)
	if err != nil {
		return err
	}

	res, err := c.sessionService.Clear(ctx.Context(), sessionID)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Session cleared", res))
}

// RequireSessionID reads the session header shared by every session-scoped
// route.
func RequireSessionID(ctx *fiber.Ctx) (string, error) {
	sessionID := ctx.Get(HeaderSessionID)
	if sessionID == "" {
		return "", apperr.Newf(apperr.ErrInvalidQuery, "missing %s header", HeaderSessionID)
	}
	return sessionID, nil
}
