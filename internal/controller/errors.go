package controller

import (
	"ai-support-be/internal/pkg/serverutils"
	"ai-support-be/internal/repository/contract"
	"ai-support-be/internal/service"
	"ai-support-be/pkg/chat/session"
	"ai-support-be/pkg/chat/turn"
	"ai-support-be/pkg/ingest"

	"github.com/gofiber/fiber/v2"
)

// ErrorStatuses maps domain errors to HTTP status codes for serverutils.ErrorHandlerMiddleware.
func ErrorStatuses() serverutils.StatusMapping {
	return serverutils.StatusMapping{
		contract.ErrSessionNotFound:     fiber.StatusNotFound,
		service.ErrConversationNotFound: fiber.StatusNotFound,
		ingest.ErrDocumentNotFound:      fiber.StatusNotFound,

		service.ErrConversationEnded: fiber.StatusConflict,
		turn.ErrGateTimeout:          fiber.StatusConflict,
		ingest.ErrNotResubmittable:   fiber.StatusConflict,
		session.ErrSessionClosed:     fiber.StatusGone,

		ingest.ErrInvalidPayload:    fiber.StatusBadRequest,
		ingest.ErrInvalidSourceType: fiber.StatusBadRequest,

		turn.ErrGeneration: fiber.StatusBadGateway,
	}
}
