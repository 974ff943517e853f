package apiv1

import (
	"crypto/subtle"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/reelads/ReelAds/internal/pkg/accountsvc"
	"github.com/reelads/ReelAds/internal/pkg/env"
	"github.com/reelads/ReelAds/internal/pkg/usercontext"
)

type identityEventRequest struct {
	ExternalID string    `json:"external_id" validate:"required,max=191"`
	Email      string    `json:"email" validate:"required,email"`
	IssuedAt   time.Time `json:"issued_at"`
}

// PostIdentityEvent ingests a sign-in/sign-up event from the identity
// provider. Account creation happens exactly once per subject; repeat events
// settle on the existing account. On creation the response carries the raw
// API key, which is never stored or shown again.
func (s *APIServer) PostIdentityEvent(c *fiber.Ctx) error {
	secret := env.GetEnv("IDENTITY_WEBHOOK_SECRET", "")
	given := c.Get("X-Webhook-Secret")
	if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(given)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid webhook secret"})
	}

	var req identityEventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	account, created, err := s.accounts.HandleIdentityEvent(c.Context(), accountsvc.IdentityEvent{
		ExternalID: req.ExternalID,
		Email:      req.Email,
		IssuedAt:   req.IssuedAt,
	})
	if err != nil {
		log.Printf("identity event failed for subject %s: %v", req.ExternalID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Identity event processing failed"})
	}

	if s.refresher != nil {
		s.refresher.Start(s.baseCtx, account.ID)
	}

	resp := fiber.Map{
		"account_uuid": account.UUID,
		"created":      created,
		"credits":      account.Credits,
	}
	if created {
		rawKey, err := s.accounts.IssueAPIKey(c.Context(), account.ID)
		if err != nil {
			log.Printf("api key issuance failed for account %d: %v", account.ID, err)
		} else {
			resp["api_key"] = rawKey
		}
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(resp)
}

// PostCompleteOnboarding marks the onboarding flow finished for the
// authenticated account.
func (s *APIServer) PostCompleteOnboarding(c *fiber.Ctx) error {
	accountID := usercontext.GetAccountID(c)
	if err := s.accounts.CompleteOnboarding(c.Context(), accountID); err != nil {
		if errors.Is(err, accountsvc.ErrAccountNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Account not found"})
		}
		log.Printf("onboarding completion failed for account %d: %v", accountID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Onboarding update failed"})
	}
	return c.JSON(fiber.Map{"completed": true})
}

// PostSessionEnd marks the authenticated account inactive and stops its
// background subscription refresh.
func (s *APIServer) PostSessionEnd(c *fiber.Ctx) error {
	accountID := usercontext.GetAccountID(c)
	if s.refresher != nil {
		s.refresher.Stop(accountID)
	}
	return c.JSON(fiber.Map{"ended": true})
}
