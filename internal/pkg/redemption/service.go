package redemption

import (
	"context"
	"fmt"
	"time"

	"github.com/reelads/ReelAds/app/models"
	"github.com/reelads/ReelAds/internal/pkg/audit"
	"github.com/reelads/ReelAds/internal/pkg/shortener"
	"gorm.io/gorm"
)

const tokenLength = 12

// Grant is the result of a successful redemption.
type Grant struct {
	Amount     int64
	NewBalance int64
	LinkKind   string
}

// LinkSpec describes a link to create.
type LinkSpec struct {
	Kind         string
	CreditAmount int64
	MaxUses      *int64
	ExpiresAt    *time.Time
}

// Service coordinates race-safe consumption of usage-limited links.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a redemption coordinator.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// NewServiceFromDB creates a redemption coordinator from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Redeem consumes one use of the link for the account and credits the
// reward. Expired and revoked links fail fast without mutation. Under
// concurrent redemption of the last remaining slot exactly one caller
// receives a Grant; the others receive ErrLinkExhausted.
func (s *Service) Redeem(ctx context.Context, token string, accountID uint, attr Attribution) (*Grant, error) {
	_ = ctx
	link, err := s.repo.GetLinkByToken(token)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if link.Revoked {
		return nil, ErrLinkRevoked
	}
	if link.IsExpired(now) {
		return nil, ErrLinkExpired
	}

	var row *models.LedgerTransaction
	if link.CreditAmount > 0 {
		meta := &models.TransactionMetadata{
			LinkToken:   link.Token,
			ReferrerURL: attr.ReferrerURL,
		}
		reason := grantReason(link.Kind)
		if err := meta.ValidateFor(reason); err != nil {
			return nil, err
		}
		metadataJSON, err := meta.Encode()
		if err != nil {
			return nil, err
		}
		row = &models.LedgerTransaction{
			Amount:       link.CreditAmount,
			Reason:       reason,
			MetadataJSON: metadataJSON,
		}
	}

	// Slot, usage row and credit land in one transaction; a failed grant
	// rolls all three back and leaves the redemption retryable.
	newBalance, err := s.repo.ConsumeSlot(link, accountID, attr, now, row)
	if err != nil {
		return nil, err
	}
	return &Grant{Amount: link.CreditAmount, LinkKind: link.Kind, NewBalance: newBalance}, nil
}

// CreateLink mints a new redemption link with a secure random token and
// records the audit entry in the same transaction.
func (s *Service) CreateLink(ctx context.Context, creatorID uint, spec LinkSpec) (*models.RedemptionLink, error) {
	_ = ctx
	if !models.ValidLinkKind(spec.Kind) {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidLink, spec.Kind)
	}
	if spec.CreditAmount < 0 {
		return nil, fmt.Errorf("%w: negative credit amount", ErrInvalidLink)
	}
	if spec.MaxUses != nil && *spec.MaxUses <= 0 {
		return nil, fmt.Errorf("%w: max_uses must be positive when set", ErrInvalidLink)
	}
	if spec.ExpiresAt != nil && spec.ExpiresAt.Before(s.now()) {
		return nil, fmt.Errorf("%w: expiry is in the past", ErrInvalidLink)
	}

	token, err := shortener.GenerateSecureSlug(tokenLength)
	if err != nil {
		return nil, err
	}
	link := &models.RedemptionLink{
		Token:        token,
		Kind:         spec.Kind,
		CreditAmount: spec.CreditAmount,
		MaxUses:      spec.MaxUses,
		ExpiresAt:    spec.ExpiresAt,
		CreatedBy:    creatorID,
	}

	if err := s.repo.CreateLink(link, creatorID); err != nil {
		return nil, err
	}
	return link, nil
}

// RevokeLink permanently disables a link. Idempotent in effect: revoking an
// already-revoked link reports ErrLinkRevoked and writes no second entry.
func (s *Service) RevokeLink(ctx context.Context, actorID uint, token string) error {
	_ = ctx
	link, err := s.repo.GetLinkByToken(token)
	if err != nil {
		return err
	}
	entry, err := audit.NewEntry(actorID, models.AuditLinkRevoked, models.AuditTargetLink, link.ID, fmt.Sprintf("link %s revoked", link.Token))
	if err != nil {
		return err
	}
	return s.repo.RevokeLink(link.ID, entry)
}

// GetLink returns the link for a token.
func (s *Service) GetLink(ctx context.Context, token string) (*models.RedemptionLink, error) {
	_ = ctx
	return s.repo.GetLinkByToken(token)
}

// ListLinks returns a page of links, newest first.
func (s *Service) ListLinks(ctx context.Context, offset, limit int) ([]models.RedemptionLink, error) {
	_ = ctx
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListLinks(offset, limit)
}

func grantReason(kind string) string {
	if kind == models.LinkKindPromo {
		return models.ReasonPromoRedemption
	}
	return models.ReasonMarketingGrant
}
