// Package auth implements the client-side session core for the Lumora
// booking app: it binds a federated identity backend, a bearer-token
// exchange against the application API, and role-based route guards into a
// single session state machine.
//
// Session lifecycle:
//   - SessionController subscribes to the identity provider and is the only
//     writer of session state. Every sign-in method converges on the same
//     identity-change path: exchange a backend token for the verified email,
//     then resolve the authorization role, then settle. Stale transition
//     sequences are discarded so the latest identity event always wins.
//   - Role resolution never fails: any backend error or unknown role falls
//     back to the default "user" role and records an activity event.
//
// Token handling:
//   - TokenStore persists the opaque backend bearer token across restarts.
//     Exchange runs on every identity event regardless of a cached token, so
//     a stale token can never suppress a fresh one.
//   - BackendClient applies a global unauthorized policy: any 401 response
//     clears the stored token before the error reaches the caller.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter describing sign-in,
//     sign-out, registration, exchange-failure, and role-fallback events.
//     Sinks run best-effort (errors are logged) so forwarding to a database
//     or queue never blocks authentication.
package auth
