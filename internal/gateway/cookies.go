package gateway

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// resettableJar lets logout drop every cookie without swapping the jar that
// the http.Client holds.
type resettableJar struct {
	mu  sync.RWMutex
	jar *cookiejar.Jar
}

func newResettableJar() (*resettableJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &resettableJar{jar: jar}, nil
}

func (j *resettableJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	j.jar.SetCookies(u, cookies)
}

func (j *resettableJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar.Cookies(u)
}

func (j *resettableJar) reset() {
	fresh, err := cookiejar.New(nil)
	if err != nil {
		return
	}
	j.mu.Lock()
	j.jar = fresh
	j.mu.Unlock()
}

// cookieURL is the URL the backend credentials are scoped to.
func (c *Client) cookieURL() *url.URL {
	return c.base.JoinPath("/api/v1/")
}

// Cookies exports the credentials currently held for the backend.
func (c *Client) Cookies() []*http.Cookie {
	return c.jar.Cookies(c.cookieURL())
}

// SetCookies imports previously exported credentials.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	c.jar.SetCookies(c.cookieURL(), cookies)
}

// ResetCookies forgets every credential.
func (c *Client) ResetCookies() {
	c.jar.reset()
}

// TokenExpiry returns the expiry of the backend JWT cookie, if one is held.
// The signature is not verified: the backend does that on every request, the
// client only needs to know when to stop trusting its cached session.
func (c *Client) TokenExpiry() (time.Time, bool) {
	parser := jwt.NewParser()
	for _, ck := range c.Cookies() {
		if strings.Count(ck.Value, ".") != 2 {
			continue
		}
		claims := &jwt.RegisteredClaims{}
		if _, _, err := parser.ParseUnverified(ck.Value, claims); err != nil {
			continue
		}
		if claims.ExpiresAt != nil {
			return claims.ExpiresAt.Time, true
		}
	}
	return time.Time{}, false
}
