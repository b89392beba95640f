package cookie

import (
	"net/http"
	"time"
)

// HTTPJar adapts one HTTP request/response pair to the Jar contract.
// Values written during the request shadow the inbound cookie header, so a
// flow that sets a cookie and reads it back within the same request observes
// its own write, matching server-side cookie semantics.
type HTTPJar struct {
	w http.ResponseWriter
	r *http.Request

	secure  bool
	written map[string]string
	deleted map[string]struct{}
}

// NewHTTPJar binds a jar to the given response writer and request. When
// secure is true, outbound cookies carry the Secure attribute.
func NewHTTPJar(w http.ResponseWriter, r *http.Request, secure bool) *HTTPJar {
	return &HTTPJar{
		w:       w,
		r:       r,
		secure:  secure,
		written: make(map[string]string),
		deleted: make(map[string]struct{}),
	}
}

// Set writes the cookie to the response. A zero expires produces a session
// cookie. Cookies are HttpOnly and SameSite=Lax throughout; the engine's
// session binding and persistent-login values are never needed by scripts.
func (j *HTTPJar) Set(name, value string, expires time.Time) error {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if !expires.IsZero() {
		c.Expires = expires
	}

	http.SetCookie(j.w, c)
	j.written[name] = value
	delete(j.deleted, name)
	return nil
}

// Get returns the current value of the named cookie, preferring values
// written during this request over the inbound header.
func (j *HTTPJar) Get(name string) (string, bool) {
	if _, gone := j.deleted[name]; gone {
		return "", false
	}
	if value, ok := j.written[name]; ok {
		return value, true
	}

	c, err := j.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

// Has describes the has operation and its observable behavior.
func (j *HTTPJar) Has(name string) bool {
	_, ok := j.Get(name)
	return ok
}

// Delete expires the cookie client-side and hides it from subsequent reads
// within this request.
func (j *HTTPJar) Delete(name string) {
	http.SetCookie(j.w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	})
	delete(j.written, name)
	j.deleted[name] = struct{}{}
}
