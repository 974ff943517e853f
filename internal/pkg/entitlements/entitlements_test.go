package entitlements

import (
	"testing"
	"time"

	"github.com/reelads/ReelAds/app/models"
	"github.com/reelads/ReelAds/internal/pkg/subscription"
)

func snap(status string) *subscription.Snapshot {
	return &subscription.Snapshot{AccountID: 1, Status: status, FetchedAt: time.Now()}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name string
		acct AccountView
		snap *subscription.Snapshot
		want Verdict
	}{
		{
			name: "paused denies despite unlimited and credits",
			acct: AccountView{Paused: true, HasUnlimitedAccess: true, Credits: 100},
			snap: snap(subscription.StatusSubscribed),
			want: VerdictDenyPaused,
		},
		{
			name: "unlimited allows with zero credits",
			acct: AccountView{HasUnlimitedAccess: true},
			snap: snap(subscription.StatusNotSubscribed),
			want: VerdictAllow,
		},
		{
			name: "subscription allows with zero credits",
			acct: AccountView{},
			snap: snap(subscription.StatusSubscribed),
			want: VerdictAllow,
		},
		{
			name: "credits allow without subscription",
			acct: AccountView{Credits: 1},
			snap: snap(subscription.StatusNotSubscribed),
			want: VerdictAllow,
		},
		{
			name: "spent balance with past grants still browses",
			acct: AccountView{Credits: 0, GrantedCredits: 70},
			snap: snap(subscription.StatusNotSubscribed),
			want: VerdictAllow,
		},
		{
			name: "never funded and no subscription redirects",
			acct: AccountView{},
			snap: snap(subscription.StatusNotSubscribed),
			want: VerdictRedirectBilling,
		},
		{
			name: "unknown snapshot is not a subscription",
			acct: AccountView{},
			snap: snap(subscription.StatusUnknown),
			want: VerdictRedirectBilling,
		},
		{
			name: "unknown snapshot with credits allows",
			acct: AccountView{Credits: 5},
			snap: snap(subscription.StatusUnknown),
			want: VerdictAllow,
		},
		{
			name: "nil snapshot with credits allows",
			acct: AccountView{Credits: 5},
			snap: nil,
			want: VerdictAllow,
		},
		{
			name: "nil snapshot without credits redirects",
			acct: AccountView{},
			snap: nil,
			want: VerdictRedirectBilling,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.acct, tt.snap); got != tt.want {
				t.Fatalf("Evaluate() = %q, want %q", got, tt.want)
			}
		})
	}
}

// The evaluator must not mutate its inputs; it is called on every request.
func TestEvaluatePure(t *testing.T) {
	acct := AccountView{Credits: 3}
	s := snap(subscription.StatusNotSubscribed)
	before := *s

	for i := 0; i < 10; i++ {
		if got := Evaluate(acct, s); got != VerdictAllow {
			t.Fatalf("Evaluate() = %q, want %q", got, VerdictAllow)
		}
	}
	if *s != before {
		t.Fatalf("snapshot mutated by evaluation")
	}
	if acct.Credits != 3 {
		t.Fatalf("account view mutated by evaluation")
	}
}

func TestFromAccount(t *testing.T) {
	a := &models.Account{Paused: true, HasUnlimitedAccess: true, Credits: 42, FreeCredits: 70, PaidCredits: 30}
	view := FromAccount(a)
	if !view.Paused || !view.HasUnlimitedAccess || view.Credits != 42 || view.GrantedCredits != 100 {
		t.Fatalf("FromAccount() = %+v, want projection of %+v", view, a)
	}
}
