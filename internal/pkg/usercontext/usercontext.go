package usercontext

import "github.com/gofiber/fiber/v2"

// AccountContext represents the authenticated account for a request
type AccountContext struct {
	AccountID   uint   `json:"account_id"`
	AccountUUID string `json:"account_uuid"`
	Email       string `json:"email"`
	IsLoggedIn  bool   `json:"is_logged_in"`
	IsAdmin     bool   `json:"is_admin"`
}

// GetAccountContext retrieves the account context from fiber context
// Returns a default anonymous context if none is set
func GetAccountContext(c *fiber.Ctx) AccountContext {
	if ctx := c.Locals("ACCOUNT_CONTEXT"); ctx != nil {
		return ctx.(AccountContext)
	}
	return AccountContext{IsLoggedIn: false, IsAdmin: false}
}

// IsLoggedIn checks if the current request is authenticated
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetAccountContext(c).IsLoggedIn
}

// IsAdmin checks if the current account is an admin
func IsAdmin(c *fiber.Ctx) bool {
	return GetAccountContext(c).IsAdmin
}

// GetAccountID returns the current account's ID, or 0 if not authenticated
func GetAccountID(c *fiber.Ctx) uint {
	return GetAccountContext(c).AccountID
}
