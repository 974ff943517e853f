package router

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/reelads/ReelAds/app/repository"
	apiv1 "github.com/reelads/ReelAds/internal/api/v1"
	"github.com/reelads/ReelAds/internal/pkg/accountsvc"
	"github.com/reelads/ReelAds/internal/pkg/audit"
	"github.com/reelads/ReelAds/internal/pkg/database"
	"github.com/reelads/ReelAds/internal/pkg/env"
	"github.com/reelads/ReelAds/internal/pkg/ledger"
	"github.com/reelads/ReelAds/internal/pkg/notification"
	"github.com/reelads/ReelAds/internal/pkg/redemption"
	"github.com/reelads/ReelAds/internal/pkg/subscription"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	apiServer := buildAPIServer(context.Background())
	apiv1.RegisterHandlers(v1, apiServer)
}

// buildAPIServer wires the domain services onto the shared database and
// cache connections and starts the background workers.
func buildAPIServer(baseCtx context.Context) *apiv1.APIServer {
	db := database.GetDB()

	ledgerSvc := ledger.NewServiceFromDB(db)
	guard := notification.NewGuardFromDB(db)

	subs := subscription.NewCache(subscription.NewHTTPProviderFromEnv(), subscription.Options{
		Store: subscription.NewRedisStore(),
	})
	refresher := subscription.NewRefresher(subs,
		time.Duration(env.GetEnvInt("SUBSCRIPTION_REFRESH_INTERVAL", 60))*time.Second)
	refresher.OnSubscribed = func(accountID uint) {
		if _, err := guard.EnsureSent(baseCtx, accountID, notification.KindSubscriptionWelcome); err != nil {
			log.Printf("router: subscription notification failed for account %d: %v", accountID, err)
		}
	}

	accounts := accountsvc.NewService(accountsvc.NewRepository(db), guard, subs)
	redeemer := redemption.NewServiceFromDB(db)
	audits := audit.NewService(repository.GetGlobalFactory().GetAuditLogRepository())

	startClickFlusher(baseCtx, redeemer)

	return apiv1.NewAPIServer(baseCtx, accounts, redeemer, ledgerSvc, audits, refresher)
}

// startClickFlusher periodically drains the Redis click counters into the
// links table. Counts are advisory, so a missed tick only delays them.
func startClickFlusher(ctx context.Context, redeemer *redemption.Service) {
	interval := time.Duration(env.GetEnvInt("CLICK_FLUSH_INTERVAL", 60)) * time.Second
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := redeemer.FlushClicks(); err != nil {
					log.Printf("router: click flush failed: %v", err)
				}
			}
		}
	}()
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
