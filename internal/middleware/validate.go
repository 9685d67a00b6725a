package middleware

import (
	"errors"

	"github.com/bilgisen/newskit/internal/logger"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ValidatedLocalKey is the fiber locals key holding the parsed request body
const ValidatedLocalKey = "validated"

var validate = validator.New()

// ValidateRequest parses the body into a fresh T, validates it and stores *T in locals
func ValidateRequest[T any]() fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := new(T)
		if len(c.Body()) > 0 {
			if err := c.BodyParser(req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid request body",
					"msg":   err.Error(),
				})
			}
		}

		if err := validate.Struct(req); err != nil {
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid request body",
				})
			}
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Namespace()] = fe.Tag()
			}
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":  "Validation failed",
				"fields": fields,
			})
		}

		c.Locals(ValidatedLocalKey, req)
		return c.Next()
	}
}

// Validated returns the body stored by ValidateRequest[T]
func Validated[T any](c *fiber.Ctx) *T {
	req, _ := c.Locals(ValidatedLocalKey).(*T)
	return req
}

// ErrorHandler renders errors as a JSON envelope carrying the request ID
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	logger.Get().Error().
		Err(err).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Str("request_id", RequestIDFromCtx(c)).
		Int("status", code).
		Msg("HTTP error")

	message := "internal server error"
	if fiberErr != nil {
		message = fiberErr.Message
	}
	return c.Status(code).JSON(fiber.Map{
		"error":      message,
		"request_id": RequestIDFromCtx(c),
	})
}
