package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/reelads/ReelAds/internal/pkg/middleware"
)

// RegisterHandlers attaches all v1 routes to the given router group.
// Public routes come first; everything else sits behind the API key
// middleware, with the admin group additionally gated on the admin role.
func RegisterHandlers(router fiber.Router, s *APIServer) {
	// Public
	router.Get("/ping", s.GetPing)
	router.Get("/links/:token", s.GetLinkPreview)

	// Identity provider webhooks authenticate through a shared secret
	// inside the handler, not through an API key.
	router.Post("/identity/events", s.PostIdentityEvent)

	// API key protected
	authed := router.Group("", middleware.APIKeyAuthMiddleware(), middleware.RequireAuth)
	authed.Get("/access", s.GetAccess)
	authed.Get("/balance", s.GetBalance)
	authed.Post("/redeem", s.PostRedeem)
	authed.Post("/generation/debit", s.PostGenerationDebit)
	authed.Post("/onboarding/complete", s.PostCompleteOnboarding)
	authed.Post("/session/end", s.PostSessionEnd)

	// Admin
	admin := router.Group("/admin", middleware.APIKeyAuthMiddleware(), middleware.RequireAdmin)
	admin.Post("/links", s.PostAdminCreateLink)
	admin.Get("/links", s.GetAdminLinks)
	admin.Delete("/links/:token", s.DeleteAdminLink)
	admin.Post("/accounts/:uuid/pause", s.PostAdminPause)
	admin.Post("/accounts/:uuid/unlimited", s.PostAdminUnlimited)
	admin.Post("/accounts/:uuid/adjustment", s.PostAdminAdjustment)
	admin.Post("/accounts/:uuid/reconcile", s.PostAdminReconcile)
	admin.Post("/accounts/:uuid/unfreeze", s.PostAdminUnfreeze)
	admin.Get("/accounts/:uuid/audit", s.GetAdminAuditLog)
}
