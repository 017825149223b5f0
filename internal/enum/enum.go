package enum

// ── Roles (CHECK constrained in DB) ──

const (
	RoleTenant     = "tenant"
	RoleChef       = "chef"
	RoleAccountant = "accountant"
	RoleAdmin      = "admin"
)

// ── Meal slots (CHECK constrained in DB) ──

const (
	MealTypeLunch  = "lunch"
	MealTypeDinner = "dinner"
)
