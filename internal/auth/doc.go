// Package auth provides sign-in and session handling for the operations board.
//
// # Sessions
//
// Staff sign in with a name and PIN. A successful login yields an HS256 JWT
// carrying the user id ("sub"), display name and role. The same token is
// accepted by the REST middleware (Authorization: Bearer) and by the realtime
// join handshake, both through the SessionValidator interface.
//
// Sessions are stateless: there is no server-side revocation list, and a token
// stays valid until it expires.
//
// # PINs
//
// PINs are hashed with bcrypt. Login performs a comparison against a fixed
// dummy hash when the user does not exist, so unknown names and wrong PINs
// take comparable time and return the same ErrInvalidCredentials.
//
// # Roles
//
//   - admin: may create and list users
//   - staff: may mutate the board
//
// Usage:
//
//	r.With(auth.RequireSession(sessions)).Post("/stock", h.addStock)
//	r.With(auth.RequireSession(sessions), auth.RequireAdmin()).Get("/auth/users", h.listUsers)
package auth
