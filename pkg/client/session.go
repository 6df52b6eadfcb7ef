package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Sentinel messages carried in the "detail" field of a response body.
const (
	DetailIncorrectCredentials = "Incorrect username or password"
	DetailCouldNotValidate     = "Could not validate credentials"
)

// Prometheus metrics for authentication.
var (
	sumapiAuthRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sumapi_auth_requests_total",
		Help: "Total token endpoint requests by outcome",
	}, []string{"outcome"})

	sumapiTokenRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sumapi_token_refreshes_total",
		Help: "Total session token refreshes by outcome",
	}, []string{"outcome"})
)

// Credentials identify a SumAPI account.
type Credentials struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// Token is the answer of the token endpoint. There is no expiry field;
// expiry is only discovered when the service rejects a later call.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`

	// Raw is the response body when it was not a token.
	Raw []byte `json:"-"`
}

// Valid reports whether t can be used to authorize requests.
func (t Token) Valid() bool {
	return t.AccessToken != ""
}

// Authenticate posts creds to the token endpoint under baseURL.
//
// A body carrying the "Incorrect username or password" detail fails with
// ErrAuth. A body that is not JSON is requested once more; if it still is
// not JSON it is returned in Token.Raw with a nil error, so callers must
// check Token.Valid before using the result.
func Authenticate(ctx context.Context, httpClient *http.Client, baseURL string, creds Credentials) (Token, error) {
	status, body, err := postToken(ctx, httpClient, baseURL, creds)
	if err != nil {
		return Token{}, err
	}

	if !json.Valid(body) {
		status, body, err = postToken(ctx, httpClient, baseURL, creds)
		if err != nil {
			return Token{}, err
		}
		if !json.Valid(body) {
			sumapiAuthRequestsTotal.WithLabelValues("malformed").Inc()
			return Token{Raw: body}, nil
		}
	}

	if detail := gjson.GetBytes(body, "detail"); detail.String() == DetailIncorrectCredentials {
		sumapiAuthRequestsTotal.WithLabelValues("rejected").Inc()
		return Token{}, &APIError{
			StatusCode: status,
			ErrorClass: ErrorClassAuth,
			Message:    DetailIncorrectCredentials,
		}
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil || !token.Valid() {
		sumapiAuthRequestsTotal.WithLabelValues("malformed").Inc()
		return Token{Raw: body}, nil
	}

	sumapiAuthRequestsTotal.WithLabelValues("success").Inc()
	return token, nil
}

// postToken performs a single form-encoded POST to /token.
func postToken(ctx context.Context, httpClient *http.Client, baseURL string, creds Credentials) (int, []byte, error) {
	form := url.Values{}
	form.Set("username", creds.Username)
	form.Set("password", creds.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(baseURL, "/")+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		sumapiAuthRequestsTotal.WithLabelValues("network_error").Inc()
		return 0, nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    StatusPageMessage,
			Err:        err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		sumapiAuthRequestsTotal.WithLabelValues("network_error").Inc()
		return 0, nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    StatusPageMessage,
			Err:        fmt.Errorf("read token response: %w", err),
		}
	}
	return resp.StatusCode, body, nil
}

// IsExpiredResponse reports whether body is the service's answer to a
// token that is no longer accepted. This is the only expiry signal.
func IsExpiredResponse(body []byte) bool {
	return gjson.GetBytes(body, "detail").String() == DetailCouldNotValidate
}

// authState is an immutable token and the headers derived from it.
type authState struct {
	token  Token
	header http.Header
}

func newAuthState(token Token) *authState {
	h := make(http.Header, 3)
	h.Set("Accept", "application/json")
	h.Set("Authorization", "Bearer "+token.AccessToken)
	h.Set("Content-Type", "application/json")
	return &authState{token: token, header: h}
}

// Session holds credentials and the current bearer token. Refresh swaps
// the token and its headers as one value, so readers never see a mix.
//
// A Session may be read concurrently, but two batch runs sharing one
// Session should be serialised by the caller: a refresh triggered by one
// run changes the token the other is using.
type Session struct {
	httpClient *http.Client
	baseURL    string
	creds      Credentials
	logger     zerolog.Logger

	state atomic.Pointer[authState]
}

// NewSession authenticates creds and returns a ready Session.
func NewSession(ctx context.Context, httpClient *http.Client, baseURL string, creds Credentials, logger zerolog.Logger) (*Session, error) {
	s := &Session{
		httpClient: httpClient,
		baseURL:    baseURL,
		creds:      creds,
		logger:     logger,
	}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh re-authenticates with the stored credentials and replaces the
// token. When the service does not answer with a token the previous
// token is kept and ErrMalformedToken is returned.
func (s *Session) Refresh(ctx context.Context) error {
	token, err := Authenticate(ctx, s.httpClient, s.baseURL, s.creds)
	if err != nil {
		sumapiTokenRefreshesTotal.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Str("username", s.creds.Username).Msg("Authentication failed")
		return fmt.Errorf("authenticate: %w", err)
	}
	if !token.Valid() {
		sumapiTokenRefreshesTotal.WithLabelValues("malformed").Inc()
		s.logger.Error().
			Int("body_bytes", len(token.Raw)).
			Msg("Token endpoint returned a non-token response")
		return fmt.Errorf("%w: %s", ErrMalformedToken, truncate(token.Raw, 200))
	}

	s.state.Store(newAuthState(token))
	sumapiTokenRefreshesTotal.WithLabelValues("success").Inc()
	s.logger.Debug().Str("token_type", token.TokenType).Msg("Session token refreshed")
	return nil
}

// Token returns the current token.
func (s *Session) Token() Token {
	if st := s.state.Load(); st != nil {
		return st.token
	}
	return Token{}
}

// Headers returns a copy of the Accept, Authorization and Content-Type
// headers for the current token.
func (s *Session) Headers() http.Header {
	if st := s.state.Load(); st != nil {
		return st.header.Clone()
	}
	return make(http.Header)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
