package server

import (
	"errors"
	"log/slog"

	"lumen/internal/models"
	"lumen/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// statusFor maps an error code to its HTTP status.
func statusFor(code string) int {
	switch code {
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeValidation, models.CodeInvalidArgument:
		return fiber.StatusBadRequest
	case models.CodeUnauthorized:
		return fiber.StatusForbidden
	case models.CodeBadCredentials:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError writes err as an ErrorResponse. Messages of non-client
// errors are logged rather than returned.
func RespondWithError(c *fiber.Ctx, err error) error {
	code := models.ErrorCode(err)
	status := statusFor(code)

	var response models.ErrorResponse
	var appErr *models.AppError
	switch {
	case status < fiber.StatusInternalServerError && errors.As(err, &appErr):
		response = models.ErrorResponse{Error: appErr.Message, Code: appErr.Code}
	default:
		observability.Logger.ErrorContext(c.UserContext(), "request error",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
		response = models.ErrorResponse{Error: "Internal server error", Code: code}
	}

	return c.Status(status).JSON(response)
}

func badRequest(c *fiber.Ctx, message string) error {
	return RespondWithError(c, models.NewValidationError(message))
}

func messageResponse(c *fiber.Ctx, message string) error {
	return c.JSON(fiber.Map{"message": message})
}
