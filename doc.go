// Package accountauth provides a cookie-session authentication engine with
// double-submit session binding, rotating remember-me credentials, email
// activation and password-reset flows, and Google sign-in.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. Per-request state (cookie jar, session store, client
// identity) travels on the context via [WithRequestEnv]; the Engine itself
// holds only process-wide collaborators.
//
// # Architecture boundaries
//
// accountauth is the public surface. It exposes [Engine], [Builder],
// [Config], and value types (AccountView, FlowError, MetricsSnapshot). The
// mechanics live in the sub-packages: crypto (hashing and token pairs),
// session and cookie (browser state transports), persistent (remember-me
// credentials), identity (Google claims), storage (durable records), and
// mail (transactional email).
//
// # Error contract
//
// Every flow returns a [*FlowError] whose Kind maps onto a transport status
// code. Messages are always safe for end users; internal causes are only
// reachable through errors.Unwrap and are logged, never displayed. Unknown
// email and wrong password are deliberately indistinguishable.
package accountauth
