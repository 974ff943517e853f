package middleware

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/reelads/ReelAds/app/models"
	"github.com/reelads/ReelAds/app/repository"
	"github.com/reelads/ReelAds/internal/pkg/database"
	"github.com/reelads/ReelAds/internal/pkg/usercontext"
)

// APIKeyAuthMiddleware authenticates requests carrying an account API key.
func APIKeyAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing API key"})
		}

		db := database.GetDB()
		if db == nil {
			log.Print("api key middleware: database unavailable")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Database unavailable"})
		}

		hash := models.HashAPIKey(apiKey)
		repo := repository.GetGlobalFactory().GetAccountRepository()
		account, err := repo.GetByAPIKeyHash(hash)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
			}
			log.Printf("api key lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "API key verification failed"})
		}

		// Refresh last-seen timestamp best-effort.
		if err := repo.TouchLastSeen(account.ID); err != nil {
			log.Printf("failed to update last-seen timestamp for account %d: %v", account.ID, err)
		}

		accountCtx := usercontext.AccountContext{
			AccountID:   account.ID,
			AccountUUID: account.UUID,
			Email:       account.Email,
			IsLoggedIn:  true,
			IsAdmin:     account.IsAdmin(),
		}
		c.Locals("ACCOUNT_CONTEXT", accountCtx)
		c.Locals(usercontext.KeyFromProtected, true)
		c.Locals(usercontext.KeyAccountID, account.ID)
		c.Locals(usercontext.KeyAccountUUID, account.UUID)
		c.Locals(usercontext.KeyIsAdmin, account.IsAdmin())

		return c.Next()
	}
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
