package accountauth

import "context"

type requestEnvContextKey struct{}

// WithRequestEnv attaches the per-request collaborators to ctx. Every flow
// resolves its cookie jar, session store, and client identity from here.
func WithRequestEnv(ctx context.Context, env RequestEnv) context.Context {
	return context.WithValue(ctx, requestEnvContextKey{}, env)
}

func requestEnvFromContext(ctx context.Context) (RequestEnv, bool) {
	if ctx == nil {
		return RequestEnv{}, false
	}

	env, ok := ctx.Value(requestEnvContextKey{}).(RequestEnv)
	if !ok || env.Cookies == nil || env.Session == nil {
		return RequestEnv{}, false
	}
	return env, true
}
