// Package identity authenticates callers of the ledger API and carries the
// authenticated subject through request contexts.
//
// It provides:
//   - ActorTokenIssuer  issues and verifies HS256 actor tokens
//   - RequireActorToken Gin middleware enforcing a Bearer actor token
//   - RequireAdmin      Gin middleware enforcing an admin-role token
//   - ContextIdentity   resolves the effective identity for ledger writes
package identity
