package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/summarify/sumapi-go/internal/testutil"
)

func TestDefaultRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()

	if policy.MaxGatewayRetries != 1 {
		t.Errorf("MaxGatewayRetries = %d, want 1", policy.MaxGatewayRetries)
	}
	if policy.MaxAuthRetries != 1 {
		t.Errorf("MaxAuthRetries = %d, want 1", policy.MaxAuthRetries)
	}
	if policy.Backoff != 600*time.Second {
		t.Errorf("Backoff = %v, want 600s", policy.Backoff)
	}
}

func TestIsGatewayFailure(t *testing.T) {
	tests := []struct {
		name string
		resp *Response
		want bool
	}{
		{"http 502", &Response{StatusCode: http.StatusBadGateway, Body: []byte("anything")}, true},
		{"nginx page with 200", &Response{StatusCode: 200, Body: []byte(testutil.GatewayPage)}, true},
		{"nginx page with other whitespace", &Response{StatusCode: 200, Body: []byte(gatewayPage + "\n\n")}, true},
		{"evaluations", &Response{StatusCode: 200, Body: []byte(`{"evaluations":[]}`)}, false},
		{"http 503", &Response{StatusCode: http.StatusServiceUnavailable, Body: []byte("down")}, false},
		{"other html", &Response{StatusCode: 200, Body: []byte("<html>502</html>")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isGatewayFailure(tt.resp); got != tt.want {
				t.Errorf("isGatewayFailure() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSendResilient(t *testing.T) {
	tests := []struct {
		name       string
		policy     RetryPolicy
		faults     []testutil.Fault
		expire     bool
		wantErr    error
		wantPosts  int
		wantTokens int
	}{
		{
			name:       "success",
			policy:     RetryPolicy{MaxGatewayRetries: 1, MaxAuthRetries: 1},
			wantPosts:  1,
			wantTokens: 1,
		},
		{
			name:       "502 then success",
			policy:     RetryPolicy{MaxGatewayRetries: 1, MaxAuthRetries: 1},
			faults:     []testutil.Fault{testutil.FaultBadGateway},
			wantPosts:  2,
			wantTokens: 1,
		},
		{
			name:       "persistent 502",
			policy:     RetryPolicy{MaxGatewayRetries: 1, MaxAuthRetries: 1},
			faults:     []testutil.Fault{testutil.FaultBadGateway, testutil.FaultBadGateway},
			wantErr:    ErrNetwork,
			wantPosts:  2,
			wantTokens: 1,
		},
		{
			name:       "no gateway retries configured",
			policy:     RetryPolicy{MaxGatewayRetries: 0, MaxAuthRetries: 1},
			faults:     []testutil.Fault{testutil.FaultGatewayPage},
			wantErr:    ErrNetwork,
			wantPosts:  1,
			wantTokens: 1,
		},
		{
			name:       "dropped connection then success",
			policy:     RetryPolicy{MaxGatewayRetries: 1, MaxAuthRetries: 1},
			faults:     []testutil.Fault{testutil.FaultDrop},
			wantPosts:  2,
			wantTokens: 1,
		},
		{
			name:       "expired token refreshed",
			policy:     RetryPolicy{MaxGatewayRetries: 1, MaxAuthRetries: 1},
			expire:     true,
			wantPosts:  2,
			wantTokens: 2,
		},
		{
			name:       "expiry persists",
			policy:     RetryPolicy{MaxGatewayRetries: 1, MaxAuthRetries: 1},
			faults:     []testutil.Fault{testutil.FaultExpired, testutil.FaultExpired},
			wantErr:    ErrTokenExpired,
			wantPosts:  2,
			wantTokens: 2,
		},
		{
			name:       "two refreshes allowed",
			policy:     RetryPolicy{MaxGatewayRetries: 1, MaxAuthRetries: 2},
			faults:     []testutil.Fault{testutil.FaultExpired, testutil.FaultExpired},
			wantPosts:  3,
			wantTokens: 3,
		},
		{
			name:       "gateway retry after refresh",
			policy:     RetryPolicy{MaxGatewayRetries: 1, MaxAuthRetries: 1},
			faults:     []testutil.Fault{testutil.FaultExpired, testutil.FaultBadGateway},
			wantPosts:  3,
			wantTokens: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockSumAPI("user", "secret")
			defer mock.Close()

			c := newTestClient(t, mock, nil)
			mock.QueueFaults("/sentiment-analysis", tt.faults...)
			if tt.expire {
				mock.ExpireTokens()
			}

			tt.policy.Backoff = 5 * time.Millisecond
			resp, err := c.sendResilient(context.Background(), "/sentiment-analysis", []byte(`{"body":"iyi","domain":"general"}`), tt.policy)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("sendResilient() error = %v, want %v", err, tt.wantErr)
				}
			} else {
				if err != nil {
					t.Fatalf("sendResilient() error = %v", err)
				}
				if resp.StatusCode != http.StatusOK {
					t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
				}
			}

			if got := mock.RequestCount("/sentiment-analysis"); got != tt.wantPosts {
				t.Errorf("POSTs = %d, want %d", got, tt.wantPosts)
			}
			if got := mock.TokensIssued(); got != tt.wantTokens {
				t.Errorf("tokens issued = %d, want %d", got, tt.wantTokens)
			}
		})
	}
}

func TestSendResilient_PersistentGatewayError(t *testing.T) {
	mock := testutil.NewMockSumAPI("user", "secret")
	defer mock.Close()

	c := newTestClient(t, mock, nil)
	mock.QueueFaults("/arguments", testutil.FaultBadGateway, testutil.FaultBadGateway)

	_, err := c.sendResilient(context.Background(), "/arguments", []byte(`{"argList":[]}`), RetryPolicy{MaxGatewayRetries: 1, Backoff: time.Millisecond})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %T is not *APIError", err)
	}
	if apiErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %s, want network", apiErr.ErrorClass)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", apiErr.StatusCode)
	}
	if apiErr.Message != StatusPageMessage {
		t.Errorf("Message = %q, want the status page message", apiErr.Message)
	}
	if !errors.Is(err, ErrGateway) {
		t.Error("errors.Is(err, ErrGateway) = false, want the gateway failure as cause")
	}
}

func TestSendResilient_WaitsFixedBackoff(t *testing.T) {
	mock := testutil.NewMockSumAPI("user", "secret")
	defer mock.Close()

	c := newTestClient(t, mock, nil)
	mock.QueueFaults("/ner", testutil.FaultBadGateway)

	backoff := 100 * time.Millisecond
	start := time.Now()
	if _, err := c.sendResilient(context.Background(), "/ner", []byte(`{"body":"x","domain":"general"}`), RetryPolicy{MaxGatewayRetries: 1, Backoff: backoff}); err != nil {
		t.Fatalf("sendResilient() error = %v", err)
	}

	if elapsed := time.Since(start); elapsed < backoff {
		t.Errorf("elapsed = %v, want at least the %v backoff", elapsed, backoff)
	}
}

func TestSendResilient_ContextCancelledDuringBackoff(t *testing.T) {
	mock := testutil.NewMockSumAPI("user", "secret")
	defer mock.Close()

	c := newTestClient(t, mock, nil)
	mock.QueueFaults("/ner", testutil.FaultBadGateway)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.sendResilient(ctx, "/ner", []byte(`{"body":"x","domain":"general"}`), RetryPolicy{MaxGatewayRetries: 1, Backoff: time.Minute})
	if !errors.Is(err, ErrContextCancelled) {
		t.Fatalf("sendResilient() error = %v, want ErrContextCancelled", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("elapsed = %v, backoff was not interrupted", elapsed)
	}
}

func TestSendResilient_NonJSONReturnedAsIs(t *testing.T) {
	mock := testutil.NewMockSumAPI("user", "secret")
	defer mock.Close()

	c := newTestClient(t, mock, nil)
	mock.QueueFaults("/ner", testutil.FaultMalformed)

	resp, err := c.sendResilient(context.Background(), "/ner", []byte(`{"body":"x","domain":"general"}`), DefaultRetryPolicy())
	if err != nil {
		t.Fatalf("sendResilient() error = %v", err)
	}
	if !resp.Malformed() || string(resp.Body) != testutil.MalformedBody {
		t.Errorf("Body = %q, want the raw non-JSON body", resp.Body)
	}
	if got := mock.RequestCount("/ner"); got != 1 {
		t.Errorf("POSTs = %d, want 1", got)
	}
}
