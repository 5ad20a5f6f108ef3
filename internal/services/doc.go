// Package services defines the [Client] contract the sync engine pushes changes through, and [ProxyClient],
// its implementation against an HTTP proxy in front of the remote music catalog.
//
// # Authentication
//
// [NewRemoteClient] wraps the HTTP client with [oauth2.Config.Client] when a refresh token is configured.
// The token source refreshes the access token on demand.
//
// # Error Handling
//
// Every failed call returns a [*CallError] carrying the operation name and HTTP status.
// Callers decide whether to retry using [CallError.Temporary]; the client itself never retries.
// Error bodies of the form {"detail": "..."} are folded into the message and wrap [shared.ErrAPIRequest].
//
// # Throttling
//
// [ProxyClient.SetRateLimit] installs a [rate.Limiter] that every request waits on.
package services
