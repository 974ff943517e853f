package notification

import (
	"fmt"

	"github.com/reelads/ReelAds/internal/pkg/env"
)

func renderMail(kind Kind) (subject, body string) {
	appName := env.GetEnv("APP_NAME", "ReelAds")
	appURL := env.GetEnv("APP_URL", "https://reelads.app")

	switch kind {
	case KindSubscriptionWelcome:
		subject = fmt.Sprintf("Your %s subscription is active", appName)
		body = fmt.Sprintf(`<h2>Subscription active</h2>
<p>Thanks for subscribing to %s. Your plan is live and your video generations are ready to go.</p>
<p><a href="%s/studio">Open the studio</a></p>`, appName, appURL)
	default:
		subject = fmt.Sprintf("Welcome to %s", appName)
		body = fmt.Sprintf(`<h2>Welcome!</h2>
<p>Your %s account is ready. Your starter credits are already on your balance.</p>
<p><a href="%s/studio">Create your first video ad</a></p>`, appName, appURL)
	}
	return subject, body
}
