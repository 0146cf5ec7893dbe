package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"marketchat/domain"
	"marketchat/domain/event"
	apperrors "marketchat/errors"
	"marketchat/services"
)

type ChatHandler struct {
	service  services.IChatService
	uploads  *Uploader
	validate *validator.Validate
	log      *slog.Logger
}

func NewChatHandler(service services.IChatService, uploads *Uploader, log *slog.Logger) *ChatHandler {
	return &ChatHandler{
		service:  service,
		uploads:  uploads,
		validate: validator.New(),
		log:      log,
	}
}

func (h *ChatHandler) Register(api fiber.Router) {
	api.Post("/start", h.start)
	api.Get("/conversations", h.listConversations)
	api.Get("/conversations/:id/messages", h.listMessages)
	api.Get("/conversations/:id/search", h.searchMessages)
	api.Post("/messages", h.sendMessage)
	api.Post("/conversations/:id/read", h.markRead)
	api.Delete("/conversations/:id", h.deleteConversation)
	api.Delete("/messages/:id", h.deleteMessage)
}

type startRequest struct {
	ParticipantID string `json:"participantId" validate:"required,uuid4"`
}

func (h *ChatHandler) start(c *fiber.Ctx) error {
	var req startRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, fmt.Errorf("%w: bad body", apperrors.ErrInvalidParticipant))
	}
	if err := h.validate.Struct(req); err != nil {
		return h.fail(c, fmt.Errorf("%w: %v", apperrors.ErrInvalidParticipant, err))
	}

	summary, err := h.service.Start(currentUser(c), req.ParticipantID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(summary)
}

func (h *ChatHandler) listConversations(c *fiber.Ctx) error {
	summaries, err := h.service.ListMine(currentUser(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(summaries)
}

func (h *ChatHandler) listMessages(c *fiber.Ctx) error {
	msgs, err := h.service.FetchMessages(
		currentUser(c),
		c.Params("id"),
		c.QueryInt("skip", 0),
		c.QueryInt("limit", 0),
	)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(toMessageViews(msgs))
}

func (h *ChatHandler) searchMessages(c *fiber.Ctx) error {
	msgs, err := h.service.SearchMessages(
		c.UserContext(),
		currentUser(c),
		c.Params("id"),
		c.Query("q"),
		c.QueryInt("limit", 0),
	)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(toMessageViews(msgs))
}

// sendMessage accepts multipart form data: conversationId, optional text,
// optional image file. The image is stored first; its URL travels with the
// message.
func (h *ChatHandler) sendMessage(c *fiber.Ctx) error {
	convID := c.FormValue("conversationId")
	text := c.FormValue("text")

	imageURL := ""
	if file, err := c.FormFile("image"); err == nil && file != nil {
		url, err := h.uploads.Save(file)
		if err != nil {
			return h.fail(c, err)
		}
		imageURL = url
	}

	msg, err := h.service.Send(currentUser(c), convID, text, imageURL)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toMessageView(msg))
}

func (h *ChatHandler) markRead(c *fiber.Ctx) error {
	if err := h.service.MarkRead(currentUser(c), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (h *ChatHandler) deleteConversation(c *fiber.Ctx) error {
	if err := h.service.DeleteConversation(currentUser(c), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (h *ChatHandler) deleteMessage(c *fiber.Ctx) error {
	if err := h.service.DeleteMessage(currentUser(c), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (h *ChatHandler) fail(c *fiber.Ctx, err error) error {
	status := apperrors.MapToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "path", c.Path(), "error", err)
		return c.Status(status).JSON(fiber.Map{"error": "temporarily unavailable"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func toMessageView(m domain.Message) event.MessageView {
	return event.NewMessageEvent(m).MessageView
}

func toMessageViews(msgs []domain.Message) []event.MessageView {
	return lo.Map(msgs, func(m domain.Message, _ int) event.MessageView {
		return toMessageView(m)
	})
}
