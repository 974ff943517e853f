package apiv1

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/reelads/ReelAds/app/models"
	"github.com/reelads/ReelAds/internal/pkg/accountsvc"
	"github.com/reelads/ReelAds/internal/pkg/audit"
	"github.com/reelads/ReelAds/internal/pkg/entitlements"
	"github.com/reelads/ReelAds/internal/pkg/ledger"
	"github.com/reelads/ReelAds/internal/pkg/redemption"
	"github.com/reelads/ReelAds/internal/pkg/subscription"
	"github.com/reelads/ReelAds/internal/pkg/usercontext"
)

// APIServer carries the domain services behind the JSON API.
type APIServer struct {
	accounts  *accountsvc.Service
	redeemer  *redemption.Service
	ledger    *ledger.Service
	audits    *audit.Service
	refresher *subscription.Refresher
	validate  *validator.Validate

	// baseCtx parents the background refresh loops so they outlive the
	// request that started them.
	baseCtx context.Context
}

// NewAPIServer creates a new API server instance.
func NewAPIServer(baseCtx context.Context, accounts *accountsvc.Service, redeemer *redemption.Service, ledgerSvc *ledger.Service, audits *audit.Service, refresher *subscription.Refresher) *APIServer {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &APIServer{
		accounts:  accounts,
		redeemer:  redeemer,
		ledger:    ledgerSvc,
		audits:    audits,
		refresher: refresher,
		validate:  validator.New(),
		baseCtx:   baseCtx,
	}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ping": "pong"})
}

// GetAccess returns the access verdict for the authenticated account. Route
// guards call this on every protected-route entry.
func (s *APIServer) GetAccess(c *fiber.Ctx) error {
	accountID := usercontext.GetAccountID(c)
	verdict, account, err := s.accounts.EvaluateAccess(c.Context(), accountID)
	if err != nil {
		if errors.Is(err, accountsvc.ErrAccountNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Account not found"})
		}
		log.Printf("access evaluation failed for account %d: %v", accountID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Access evaluation failed"})
	}

	resp := fiber.Map{
		"verdict": string(verdict),
		"credits": account.Credits,
	}
	if verdict == entitlements.VerdictRedirectBilling {
		resp["redirect_url"] = subscription.CheckoutURL(account.UUID)
		resp["reason"] = "no active subscription and no credits"
	}
	return c.JSON(resp)
}

type redeemRequest struct {
	Token    string `json:"token" validate:"required,min=6,max=64"`
	Referrer string `json:"referrer" validate:"max=255"`
	Device   string `json:"device" validate:"max=255"`
}

// PostRedeem consumes one use of a redemption link for the authenticated
// account. Failures carry distinct codes because the UX depends on the
// difference between expired, revoked, exhausted and already-used.
func (s *APIServer) PostRedeem(c *fiber.Ctx) error {
	var req redeemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	accountID := usercontext.GetAccountID(c)
	grant, err := s.redeemer.Redeem(c.Context(), req.Token, accountID, redemption.Attribution{
		ReferrerURL: req.Referrer,
		DeviceInfo:  req.Device,
	})
	if err != nil {
		return redeemError(c, err)
	}

	return c.JSON(fiber.Map{
		"granted":     grant.Amount,
		"new_balance": grant.NewBalance,
		"kind":        grant.LinkKind,
	})
}

func redeemError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, redemption.ErrLinkNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "link_not_found", "message": "This link does not exist"})
	case errors.Is(err, redemption.ErrLinkExpired):
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "link_expired", "message": "This link has expired"})
	case errors.Is(err, redemption.ErrLinkRevoked):
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "link_revoked", "message": "This link is no longer active"})
	case errors.Is(err, redemption.ErrLinkExhausted):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "link_exhausted", "message": "This link has reached its maximum number of uses"})
	case errors.Is(err, redemption.ErrAlreadyRedeemed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "already_redeemed", "message": "You have already used this link"})
	default:
		log.Printf("redemption failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Redemption failed"})
	}
}

// GetLinkPreview returns public link info for the landing page and counts
// the visit. The click counter is analytics and never blocks the response.
func (s *APIServer) GetLinkPreview(c *fiber.Ctx) error {
	token := c.Params("token")
	link, err := s.redeemer.GetLink(c.Context(), token)
	if err != nil {
		if errors.Is(err, redemption.ErrLinkNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "link_not_found", "message": "This link does not exist"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Link lookup failed"})
	}

	go s.redeemer.TrackClick(link.ID)

	active := !link.Revoked && !link.IsExpired(time.Now()) && !link.IsExhausted()
	return c.JSON(fiber.Map{
		"kind":          link.Kind,
		"credit_amount": link.CreditAmount,
		"active":        active,
	})
}

type debitRequest struct {
	Cost  int64  `json:"cost" validate:"required,gt=0"`
	JobID string `json:"job_id" validate:"required,max=64"`
}

// PostGenerationDebit spends credits for a generation job. This is the entry
// point the generation-job service calls on job start.
func (s *APIServer) PostGenerationDebit(c *fiber.Ctx) error {
	var req debitRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	accountID := usercontext.GetAccountID(c)
	meta := &models.TransactionMetadata{JobID: req.JobID}
	newBalance, err := s.ledger.ApplyTransaction(c.Context(), accountID, -req.Cost, models.ReasonGenerationDebit, meta)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "insufficient_funds", "message": "Not enough credits for this generation"})
		case errors.Is(err, ledger.ErrLedgerFrozen):
			return c.Status(fiber.StatusLocked).JSON(fiber.Map{"error": "ledger_frozen", "message": "Account ledger is frozen pending review"})
		case errors.Is(err, ledger.ErrAccountNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Account not found"})
		default:
			log.Printf("generation debit failed for account %d: %v", accountID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Debit failed"})
		}
	}
	return c.JSON(fiber.Map{"new_balance": newBalance})
}

// GetBalance returns the cached balance for the authenticated account.
func (s *APIServer) GetBalance(c *fiber.Ctx) error {
	accountID := usercontext.GetAccountID(c)
	balance, err := s.ledger.GetBalance(c.Context(), accountID)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Account not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Balance lookup failed"})
	}
	return c.JSON(fiber.Map{"credits": balance})
}
