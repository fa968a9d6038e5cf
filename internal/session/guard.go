package session

// Authenticator is the synchronous predicate a route guard needs. Satisfied
// by *Coordinator.
type Authenticator interface {
	IsAuthenticated() bool
}

// Guard gates navigation to protected views. It performs no I/O: the
// decision reads the coordinator's latest committed state.
type Guard struct {
	auth     Authenticator
	redirect string
}

// NewGuard creates a guard that denies to redirect, "/" when empty.
func NewGuard(auth Authenticator, redirect string) *Guard {
	if redirect == "" {
		redirect = "/"
	}
	return &Guard{auth: auth, redirect: redirect}
}

// Allow reports whether navigation may proceed. When it may not, the second
// return value is the path to send the visitor to instead. There is no third
// outcome.
func (g *Guard) Allow() (bool, string) {
	if g.auth.IsAuthenticated() {
		return true, ""
	}
	return false, g.redirect
}
