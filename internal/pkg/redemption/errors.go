package redemption

import "errors"

var (
	// ErrLinkNotFound is returned when no link exists for the given token.
	ErrLinkNotFound = errors.New("redemption: link not found")

	// ErrLinkExpired is returned when the link's expiry has passed. No
	// mutation happens.
	ErrLinkExpired = errors.New("redemption: link expired")

	// ErrLinkRevoked is returned for explicitly revoked links.
	ErrLinkRevoked = errors.New("redemption: link revoked")

	// ErrLinkExhausted is returned when every use slot is taken. Under
	// concurrent redemption of the last slot exactly one caller wins and the
	// rest see this error.
	ErrLinkExhausted = errors.New("redemption: link max uses reached")

	// ErrAlreadyRedeemed is returned when the account has already redeemed
	// this link.
	ErrAlreadyRedeemed = errors.New("redemption: already redeemed by this account")

	ErrInvalidLink = errors.New("redemption: invalid link parameters")
)
