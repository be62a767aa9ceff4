package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/example/chat-app/domain/apperror"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
)

// fail writes err as an ErrorResponse with the status of its kind.
func fail(c *fiber.Ctx, err error) error {
	return c.Status(apperror.HTTPStatus(apperror.KindOf(err))).JSON(ErrorResponse{
		Error:   apperror.CodeOf(err),
		Message: apperror.MessageOf(err),
	})
}

func badRequest(message string) error {
	return apperror.New(apperror.KindValidation, apperror.CodeInvalidRequest, message)
}

// errorHandler handles errors returned from handlers and middleware.
func errorHandler(logger types.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(ErrorResponse{
				Error:   statusCode(fe.Code),
				Message: fe.Message,
			})
		}
		if apperror.KindOf(err) == apperror.KindInternal {
			logger.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
		}
		return fail(c, err)
	}
}

// statusOf returns the status an error will be written with.
func statusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return apperror.HTTPStatus(apperror.KindOf(err))
}

// statusCode turns an HTTP status into a reason code, "Not Found" -> "not_found".
func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return apperror.CodeInternal
	}
	return strings.ReplaceAll(strings.ToLower(text), " ", "_")
}
