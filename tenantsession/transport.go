package tenantsession

import (
	"net/http"

	"golang.org/x/oauth2"
)

// TenantIDHeader carries the active tenant on every outgoing request.
const TenantIDHeader = "X-Tenant-ID"

// Transport attaches the tab's active session to outgoing requests. It renews a stale
// access token before sending and refuses to send unauthenticated requests. A 401 from
// the downstream service triggers one renewal and a single resend when the body can be
// replayed.
type Transport struct {
	Store *Store
	Base  http.RoundTripper // defaults to http.DefaultTransport
}

var _ http.RoundTripper = (*Transport)(nil)

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	active, ok := t.Store.Current()
	if !ok {
		closeBody(req)
		return nil, ErrNoActiveSession
	}

	rec, err := t.Store.ensureFresh(req.Context(), active.UserID, active.TenantSlug)
	if err != nil {
		closeBody(req)
		return nil, err
	}
	if rec == nil {
		closeBody(req)
		return nil, ErrNoActiveSession
	}

	resp, err := t.base().RoundTrip(authorize(req, rec))
	if err != nil || resp.StatusCode != http.StatusUnauthorized || !replayable(req) {
		return resp, err
	}

	renewed, rerr := t.Store.refresh(req.Context(), active.UserID, active.TenantSlug)
	if rerr != nil {
		return resp, nil
	}
	retry := authorize(req, renewed)
	if req.Body != nil && req.Body != http.NoBody {
		body, berr := req.GetBody()
		if berr != nil {
			return resp, nil
		}
		retry.Body = body
	}
	_ = resp.Body.Close()
	return t.base().RoundTrip(retry)
}

// Client returns an *http.Client sending through the tab's active session.
func (s *Store) Client() *http.Client {
	return &http.Client{Transport: &Transport{Store: s}}
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func authorize(req *http.Request, rec *SessionRecord) *http.Request {
	outgoing := req.Clone(req.Context())
	tok := &oauth2.Token{AccessToken: rec.AccessToken, TokenType: "Bearer"}
	tok.SetAuthHeader(outgoing)
	outgoing.Header.Set(TenantIDHeader, rec.TenantID)
	return outgoing
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

// RoundTrippers must close the request body, even on errors.
func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}
