package common

// SystemActor is the actor id recorded for transitions performed by the
// server itself (expiry sweeps, purges).
const SystemActor = "system"

// AuthorizationHeaderName carries the bearer token on inbound requests.
const AuthorizationHeaderName = "Authorization"

// AnonymousActor is recorded when an unauthenticated bearer of a one-time
// link resolves it.
const AnonymousActor = "anonymous"
