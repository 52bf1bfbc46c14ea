package controller

import (
	"ai-support-be/internal/dto"
	"ai-support-be/internal/entity"
	"ai-support-be/internal/pkg/logger"
	"ai-support-be/internal/pkg/serverutils"
	"ai-support-be/internal/service"
	internalWS "ai-support-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Start(ctx *fiber.Ctx) error
	Continue(ctx *fiber.Ctx) error
	End(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
	Stream(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
	hub         *internalWS.Hub
	logger      logger.ILogger
}

func NewChatController(chatService service.IChatService, hub *internalWS.Hub, log logger.ILogger) IChatController {
	return &chatController{
		chatService: chatService,
		hub:         hub,
		logger:      log,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/chat/v1/conversations")
	h.Use(auth)
	h.Post("", c.Start)
	h.Post(":id/messages", c.Continue)
	h.Delete(":id", c.End)
	h.Get(":id/history", c.History)
	h.Get(":id/ws", c.Stream)
}

func (c *chatController) Start(ctx *fiber.Ctx) error {
	orgID := serverutils.OrganizationID(ctx)

	var req dto.StartChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	sender := entity.Sender{Id: req.SenderId, Name: req.SenderName, Avatar: req.SenderAvatar}
	id, err := c.chatService.StartChat(ctx.UserContext(), orgID, sender)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Conversation started", dto.StartChatResponse{ConversationId: id}))
}

func (c *chatController) Continue(ctx *fiber.Ctx) error {
	orgID := serverutils.OrganizationID(ctx)
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid conversation id")
	}

	var req dto.ContinueChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.ContinueChat(ctx.UserContext(), orgID, id, req.Message)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success", dto.ContinueChatResponse{
		ConversationId: res.ConversationID,
		Message:        res.Content,
	}))
}

func (c *chatController) End(ctx *fiber.Ctx) error {
	orgID := serverutils.OrganizationID(ctx)
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid conversation id")
	}

	if err := c.chatService.EndChat(ctx.UserContext(), orgID, id); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Conversation ended", nil))
}

func (c *chatController) History(ctx *fiber.Ctx) error {
	orgID := serverutils.OrganizationID(ctx)
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid conversation id")
	}

	res, err := c.chatService.History(ctx.UserContext(), orgID, id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success", res))
}

// Stream upgrades to a websocket that carries the conversation's token events.
func (c *chatController) Stream(ctx *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}

	orgID := serverutils.OrganizationID(ctx)
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid conversation id")
	}
	if err := c.chatService.AuthorizeConversation(ctx.UserContext(), orgID, id); err != nil {
		return err
	}

	return websocket.New(func(conn *websocket.Conn) {
		c.logger.Info("CHAT", "Stream attached", map[string]interface{}{"conversation_id": id.String()})
		internalWS.ServeWs(c.hub, conn, id)
		c.logger.Info("CHAT", "Stream detached", map[string]interface{}{"conversation_id": id.String()})
	})(ctx)
}
