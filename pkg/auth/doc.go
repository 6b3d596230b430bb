// Package auth provides the request-time authentication and authorization
// gates for tutogate.
//
// Every gate is plain net/http middleware (func(http.Handler) http.Handler)
// and can be chained with chi or transport.Chain:
//
//   - Authenticate extracts a bearer token (cookie "token" first, then the
//     Authorization header), verifies it, resolves the subject to a minimal
//     Identity through a UserStore and binds that Identity to the request
//     context.
//   - RequireRoles grants when the bound identity holds any of the given
//     roles.
//   - RequireOwnerOrAdmin grants admins unconditionally and otherwise
//     compares the resource owner, fetched through an OwnershipStore, with
//     the bound identity.
//   - RateLimit throttles authenticated callers per identity.
//
// Authenticate must run first. Gates that read the bound identity fail
// closed with 401 when it is absent.
//
// Every denial is written as {"success": false, "error": "<message>"} with
// status 401, 403, 404, 429 or 500. Token failures share one message so the
// response never reveals which check failed.
package auth
