package apiv1

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/reelads/ReelAds/app/models"
	"github.com/reelads/ReelAds/internal/pkg/accountsvc"
	"github.com/reelads/ReelAds/internal/pkg/ledger"
	"github.com/reelads/ReelAds/internal/pkg/redemption"
	"github.com/reelads/ReelAds/internal/pkg/usercontext"
)

type createLinkRequest struct {
	Kind         string     `json:"kind" validate:"required,oneof=marketing invite promo"`
	CreditAmount int64      `json:"credit_amount" validate:"gte=0"`
	MaxUses      *int64     `json:"max_uses" validate:"omitempty,gt=0"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

// PostAdminCreateLink mints a new redemption link.
func (s *APIServer) PostAdminCreateLink(c *fiber.Ctx) error {
	var req createLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	adminID := usercontext.GetAccountID(c)
	link, err := s.redeemer.CreateLink(c.Context(), adminID, redemption.LinkSpec{
		Kind:         req.Kind,
		CreditAmount: req.CreditAmount,
		MaxUses:      req.MaxUses,
		ExpiresAt:    req.ExpiresAt,
	})
	if err != nil {
		if errors.Is(err, redemption.ErrInvalidLink) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
		}
		log.Printf("link creation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Link creation failed"})
	}
	return c.Status(fiber.StatusCreated).JSON(link)
}

// DeleteAdminLink revokes a link.
func (s *APIServer) DeleteAdminLink(c *fiber.Ctx) error {
	adminID := usercontext.GetAccountID(c)
	err := s.redeemer.RevokeLink(c.Context(), adminID, c.Params("token"))
	if err != nil {
		switch {
		case errors.Is(err, redemption.ErrLinkNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "link_not_found", "message": "This link does not exist"})
		case errors.Is(err, redemption.ErrLinkRevoked):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "link_revoked", "message": "This link is already revoked"})
		default:
			log.Printf("link revocation failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Link revocation failed"})
		}
	}
	return c.JSON(fiber.Map{"revoked": true})
}

// GetAdminLinks lists links, newest first.
func (s *APIServer) GetAdminLinks(c *fiber.Ctx) error {
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)
	links, err := s.redeemer.ListLinks(c.Context(), offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Link listing failed"})
	}
	return c.JSON(fiber.Map{"links": links})
}

type pauseRequest struct {
	Paused bool `json:"paused"`
}

// PostAdminPause toggles the pause flag on an account.
func (s *APIServer) PostAdminPause(c *fiber.Ctx) error {
	account, err := s.accounts.GetByUUID(c.Context(), c.Params("uuid"))
	if err != nil {
		return adminAccountError(c, err)
	}

	var req pauseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	adminID := usercontext.GetAccountID(c)
	if err := s.accounts.SetPaused(c.Context(), adminID, account.ID, req.Paused); err != nil {
		return adminAccountError(c, err)
	}
	return c.JSON(fiber.Map{"paused": req.Paused})
}

type unlimitedRequest struct {
	Grant bool `json:"grant"`
}

// PostAdminUnlimited grants or revokes unlimited access on an account.
func (s *APIServer) PostAdminUnlimited(c *fiber.Ctx) error {
	account, err := s.accounts.GetByUUID(c.Context(), c.Params("uuid"))
	if err != nil {
		return adminAccountError(c, err)
	}

	var req unlimitedRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	adminID := usercontext.GetAccountID(c)
	if err := s.accounts.GrantUnlimitedAccess(c.Context(), adminID, account.ID, req.Grant); err != nil {
		return adminAccountError(c, err)
	}
	return c.JSON(fiber.Map{"has_unlimited_access": req.Grant})
}

type adjustmentRequest struct {
	Amount int64  `json:"amount" validate:"required"`
	Note   string `json:"note" validate:"max=255"`
}

// PostAdminAdjustment applies a manual credit adjustment through the ledger.
func (s *APIServer) PostAdminAdjustment(c *fiber.Ctx) error {
	account, err := s.accounts.GetByUUID(c.Context(), c.Params("uuid"))
	if err != nil {
		return adminAccountError(c, err)
	}

	var req adjustmentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	adminID := usercontext.GetAccountID(c)
	meta := &models.TransactionMetadata{AdminID: adminID, Note: req.Note}
	newBalance, err := s.ledger.ApplyTransaction(c.Context(), account.ID, req.Amount, models.ReasonAdminAdjustment, meta)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "insufficient_funds", "message": "Adjustment would make the balance negative"})
		case errors.Is(err, ledger.ErrLedgerFrozen):
			return c.Status(fiber.StatusLocked).JSON(fiber.Map{"error": "ledger_frozen", "message": "Account ledger is frozen pending review"})
		default:
			log.Printf("admin adjustment failed for account %d: %v", account.ID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Adjustment failed"})
		}
	}
	return c.JSON(fiber.Map{"new_balance": newBalance})
}

// PostAdminReconcile replays the transaction log against the cached balance.
// A mismatch freezes the account ledger and reports the violation.
func (s *APIServer) PostAdminReconcile(c *fiber.Ctx) error {
	account, err := s.accounts.GetByUUID(c.Context(), c.Params("uuid"))
	if err != nil {
		return adminAccountError(c, err)
	}

	adminID := usercontext.GetAccountID(c)
	balance, err := s.ledger.Reconcile(c.Context(), adminID, account.ID)
	if err != nil {
		if errors.Is(err, ledger.ErrIntegrityViolation) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":   "integrity_violation",
				"message": "Ledger log does not match the cached balance; account frozen",
				"credits": balance,
			})
		}
		log.Printf("reconcile failed for account %d: %v", account.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Reconcile failed"})
	}
	return c.JSON(fiber.Map{"credits": balance, "consistent": true})
}

// PostAdminUnfreeze clears a reconciliation freeze.
func (s *APIServer) PostAdminUnfreeze(c *fiber.Ctx) error {
	account, err := s.accounts.GetByUUID(c.Context(), c.Params("uuid"))
	if err != nil {
		return adminAccountError(c, err)
	}

	adminID := usercontext.GetAccountID(c)
	if err := s.ledger.Unfreeze(c.Context(), adminID, account.ID); err != nil {
		log.Printf("unfreeze failed for account %d: %v", account.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Unfreeze failed"})
	}
	return c.JSON(fiber.Map{"ledger_frozen": false})
}

// GetAdminAuditLog lists audit entries for an account.
func (s *APIServer) GetAdminAuditLog(c *fiber.Ctx) error {
	account, err := s.accounts.GetByUUID(c.Context(), c.Params("uuid"))
	if err != nil {
		return adminAccountError(c, err)
	}
	entries, err := s.audits.ListForTarget(c.Context(), models.AuditTargetAccount, account.ID, c.QueryInt("limit", 50))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Audit log lookup failed"})
	}
	return c.JSON(fiber.Map{"entries": entries})
}

func adminAccountError(c *fiber.Ctx, err error) error {
	if errors.Is(err, accountsvc.ErrAccountNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Account not found"})
	}
	log.Printf("admin account operation failed: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Operation failed"})
}
