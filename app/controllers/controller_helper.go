package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/MarvinWeber/LiftLog/internal/pkg/usercontext"
)

// Shared Locals/session keys, aligned with the usercontext package.
const (
	AUTH_KEY        string = usercontext.AuthKey
	USER_ID         string = usercontext.KeyUserID
	USER_NAME       string = usercontext.KeyUsername
	USER_IS_ADMIN   string = usercontext.KeyIsAdmin
	USER_IS_PREMIUM string = usercontext.KeyIsPremium
	FROM_PROTECTED  string = usercontext.KeyFromProtected
)

// API error codes returned in the "error" field of failure responses.
const (
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodePremiumRequired = "PREMIUM_REQUIRED"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeProvider        = "PROVIDER_ERROR"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

func isLoggedIn(c *fiber.Ctx) bool {
	var fromProtected bool
	if protectedValue := c.Locals(FROM_PROTECTED); protectedValue != nil {
		fromProtected = protectedValue.(bool)
	}

	return fromProtected
}

// ExtractUsername gets the username from Locals (set by middleware)
func ExtractUsername(c *fiber.Ctx) string {
	// Get from Locals (set by authentication middleware)
	if userNameValue := c.Locals(USER_NAME); userNameValue != nil {
		if userName, ok := userNameValue.(string); ok {
			return userName
		}
	}

	return ""
}

// jsonError writes a uniform API error response.
func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   code,
		"message": message,
	})
}

// GetClientIP determines the actual client IP address considering proxies.
func GetClientIP(c *fiber.Ctx) string {
	if cfIP := c.Get("CF-Connecting-IP"); cfIP != "" {
		return cfIP
	}
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	return c.IP()
}
