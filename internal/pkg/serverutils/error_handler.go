package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// AppError carries an explicit HTTP status.
type AppError struct {
	Code    int
	Message string
}

func (e *AppError) Error() string { return e.Message }

func NewAppError(code int, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// StatusMapping maps sentinel errors to HTTP status codes.
type StatusMapping map[error]int

// ErrorHandlerMiddleware turns errors returned by handlers into the error envelope.
func ErrorHandlerMiddleware(mappings ...StatusMapping) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		code, message := resolve(err, mappings)
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}

func resolve(err error, mappings []StatusMapping) (int, string) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code, appErr.Message
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return fiber.StatusBadRequest, verr.Error()
	}
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		return ferr.Code, ferr.Message
	}
	for _, m := range mappings {
		for target, code := range m {
			if errors.Is(err, target) {
				return code, err.Error()
			}
		}
	}
	return fiber.StatusInternalServerError, err.Error()
}
