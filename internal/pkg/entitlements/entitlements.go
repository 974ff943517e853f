package entitlements

import (
	"github.com/reelads/ReelAds/app/models"
	"github.com/reelads/ReelAds/internal/pkg/subscription"
)

type Verdict string

const (
	VerdictAllow           Verdict = "allow"
	VerdictDenyPaused      Verdict = "deny_paused"
	VerdictRedirectBilling Verdict = "redirect_billing"
)

// AccountView is the subset of account state the evaluator reads.
// GrantedCredits is the lifetime sum of credits ever granted; it never
// decreases when credits are spent.
type AccountView struct {
	Paused             bool
	HasUnlimitedAccess bool
	Credits            int64
	GrantedCredits     int64
}

// FromAccount projects a stored account onto the evaluator's view.
func FromAccount(a *models.Account) AccountView {
	return AccountView{
		Paused:             a.Paused,
		HasUnlimitedAccess: a.HasUnlimitedAccess,
		Credits:            a.Credits,
		GrantedCredits:     a.FreeCredits + a.PaidCredits,
	}
}

// Evaluate combines account state and the subscription snapshot into a single
// access verdict. The rule order is a business decision and is fixed:
//
//  1. paused denies everything, including unlimited access
//  2. unlimited access allows
//  3. an active subscription allows
//  4. holding credits, or ever having been granted any, allows; exhaustion
//     is enforced when a generation is debited, not at app entry, so an
//     account that spent its last credit can still browse
//  5. everything else is redirected to billing
//
// Rules 3 and 4 are deliberately separate and must not be merged.
func Evaluate(acct AccountView, snap *subscription.Snapshot) Verdict {
	if acct.Paused {
		return VerdictDenyPaused
	}
	if acct.HasUnlimitedAccess {
		return VerdictAllow
	}
	if snap.Subscribed() {
		return VerdictAllow
	}
	if acct.Credits > 0 || acct.GrantedCredits > 0 {
		return VerdictAllow
	}
	return VerdictRedirectBilling
}
