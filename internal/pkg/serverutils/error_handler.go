package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"rag-chatbot-be/internal/pkg/apperror"
)

// ErrorHandlerMiddleware turns errors returned by handlers into the JSON envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return WriteError(ctx, err)
	}
}

// WriteError is also used as fiber.Config.ErrorHandler so errors raised
// outside the middleware chain (body limit, routing) get the same envelope.
func WriteError(ctx *fiber.Ctx, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		code := appErr.StatusCode()
		if appErr.Kind == apperror.KindValidation {
			return ctx.Status(code).JSON(ValidationErrorResponse(appErr.Message, appErr.Fields))
		}
		return ctx.Status(code).JSON(ErrorResponse(code, appErr.Message))
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
	}

	return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(500, "Internal server error"))
}
