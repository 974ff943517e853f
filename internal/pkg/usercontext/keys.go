package usercontext

// Shared Locals keys used across handlers and middlewares
const (
	KeyAccountID     = "account_id"
	KeyAccountUUID   = "account_uuid"
	KeyIsAdmin       = "isAdmin"
	KeyFromProtected = "from_protected"
)
