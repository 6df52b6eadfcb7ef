// Package testutil provides testing utilities for the SumAPI client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// Canned bodies of the remote service.
const (
	IncorrectCredentialsBody = `{"detail":"Incorrect username or password"}`
	ExpiredTokenBody         = `{"detail":"Could not validate credentials"}`
	MalformedBody            = `Internal Server Error`

	// GatewayPage is the nginx page served with a 200 status by a
	// misconfigured proxy.
	GatewayPage = "<html>\r\n<head><title>502 Bad Gateway</title></head>\r\n<body>\r\n<center><h1>502 Bad Gateway</h1></center>\r\n<hr><center>nginx</center>\r\n</body>\r\n</html>\r\n"
)

// Fault is a scripted failure for one request.
type Fault int

const (
	// FaultNone answers normally.
	FaultNone Fault = iota
	// FaultBadGateway answers with HTTP 502.
	FaultBadGateway
	// FaultGatewayPage answers 200 with the nginx 502 page.
	FaultGatewayPage
	// FaultExpired answers with the token expiry sentinel.
	FaultExpired
	// FaultMalformed answers 200 with a body that is not JSON.
	FaultMalformed
	// FaultMissingEvaluations answers 200 with JSON lacking "evaluations".
	FaultMissingEvaluations
	// FaultDrop closes the connection without a response.
	FaultDrop
)

// MockSumAPI is a configurable fake of the SumAPI service.
//
// Tokens are issued as "token-1", "token-2", ... and only the most recent
// one is accepted. Inference endpoints echo their input so tests can check
// ordering.
type MockSumAPI struct {
	server *httptest.Server
	mu     sync.Mutex

	username string
	password string

	issued       int
	currentToken string

	faults       map[string][]Fault
	tokenFaults  []Fault
	requestCount map[string]int
	batchSizes   []int
	authHeaders  []string

	// Delay is applied before every inference response.
	Delay time.Duration
}

// NewMockSumAPI creates a mock accepting the given credentials.
func NewMockSumAPI(username, password string) *MockSumAPI {
	mock := &MockSumAPI{
		username:     username,
		password:     password,
		faults:       make(map[string][]Fault),
		requestCount: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", mock.handleToken)
	mux.HandleFunc("/arguments", mock.handleBatch)
	for _, path := range []string{"/sentiment-analysis", "/ner", "/classification", "/zero-shot", "/qa", "/summarize", "/spell-check"} {
		mux.HandleFunc(path, mock.handleSingle)
	}
	mock.server = httptest.NewServer(mux)

	return mock
}

// URL returns the mock server URL.
func (m *MockSumAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockSumAPI) Close() {
	m.server.Close()
}

// QueueFaults scripts the next responses of path. Each request consumes
// one fault; FaultNone answers normally.
func (m *MockSumAPI) QueueFaults(path string, faults ...Fault) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[path] = append(m.faults[path], faults...)
}

// QueueTokenFaults scripts the next token endpoint responses. Only
// FaultMalformed and FaultDrop are meaningful here.
func (m *MockSumAPI) QueueTokenFaults(faults ...Fault) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenFaults = append(m.tokenFaults, faults...)
}

// ExpireTokens invalidates every issued token; the next inference call
// receives the expiry sentinel.
func (m *MockSumAPI) ExpireTokens() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentToken = ""
}

// SetPassword changes the accepted password, simulating credentials
// revoked on the server.
func (m *MockSumAPI) SetPassword(password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.password = password
}

// RequestCount returns the number of requests made to path.
func (m *MockSumAPI) RequestCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount[path]
}

// TokensIssued returns the number of tokens handed out.
func (m *MockSumAPI) TokensIssued() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.issued
}

// BatchSizes returns the argList length of every batch request received,
// including failed attempts.
func (m *MockSumAPI) BatchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.batchSizes...)
}

// AuthHeaders returns the Authorization header of every inference request.
func (m *MockSumAPI) AuthHeaders() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.authHeaders...)
}

func (m *MockSumAPI) handleToken(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requestCount[r.URL.Path]++
	fault := FaultNone
	if len(m.tokenFaults) > 0 {
		fault = m.tokenFaults[0]
		m.tokenFaults = m.tokenFaults[1:]
	}
	m.mu.Unlock()

	switch fault {
	case FaultMalformed:
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(MalformedBody))
		return
	case FaultDrop:
		drop(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	ok := r.PostForm.Get("username") == m.username && r.PostForm.Get("password") == m.password
	var token string
	if ok {
		m.issued++
		token = fmt.Sprintf("token-%d", m.issued)
		m.currentToken = token
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(IncorrectCredentialsBody))
		return
	}
	json.NewEncoder(w).Encode(map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// begin records the request and returns the fault to apply. It returns
// FaultExpired when the bearer token is not the current one.
func (m *MockSumAPI) begin(r *http.Request) Fault {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requestCount[r.URL.Path]++
	auth := r.Header.Get("Authorization")
	m.authHeaders = append(m.authHeaders, auth)

	fault := FaultNone
	if queued := m.faults[r.URL.Path]; len(queued) > 0 {
		fault = queued[0]
		m.faults[r.URL.Path] = queued[1:]
	}
	if fault == FaultNone && (m.currentToken == "" || auth != "Bearer "+m.currentToken) {
		return FaultExpired
	}
	return fault
}

// writeFault writes the response for fault and reports whether it did.
func writeFault(w http.ResponseWriter, fault Fault) bool {
	switch fault {
	case FaultBadGateway:
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(GatewayPage))
	case FaultGatewayPage:
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(GatewayPage))
	case FaultExpired:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(ExpiredTokenBody))
	case FaultMalformed:
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(MalformedBody))
	case FaultMissingEvaluations:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"accepted"}`))
	case FaultDrop:
		drop(w)
	default:
		return false
	}
	return true
}

// drop closes the underlying connection so the client sees a transport error.
func drop(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic("testutil: response writer does not support hijacking")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		panic(err)
	}
	conn.Close()
}

type argument struct {
	Body      string `json:"body"`
	ModelName string `json:"model_name"`
	Domain    string `json:"domain"`
}

func (m *MockSumAPI) handleBatch(w http.ResponseWriter, r *http.Request) {
	var envelope struct {
		ArgList []argument `json:"argList"`
	}
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	m.mu.Lock()
	m.batchSizes = append(m.batchSizes, len(envelope.ArgList))
	m.mu.Unlock()

	if writeFault(w, m.begin(r)) {
		return
	}
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}

	evaluations := make([]map[string]any, len(envelope.ArgList))
	for i, arg := range envelope.ArgList {
		evaluations[i] = map[string]any{
			"body":       arg.Body,
			"model_name": arg.ModelName,
			"evaluation": map[string]any{"label": "positive", "score": 0.99},
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"evaluations": evaluations})
}

func (m *MockSumAPI) handleSingle(w http.ResponseWriter, r *http.Request) {
	var envelope map[string]any
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if writeFault(w, m.begin(r)) {
		return
	}
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}

	body := envelope["body"]
	if body == nil {
		body = envelope["question"]
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"body":       body,
		"request":    envelope,
		"evaluation": map[string]any{"label": "positive", "score": 0.99},
	})
}
