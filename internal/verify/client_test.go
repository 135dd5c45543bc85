package verify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"ticket-scanner/internal/config"
)

func newTestClient(t *testing.T, token string, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(config.APIConfig{BaseURL: srv.URL + "/", Token: token}, srv.Client(), zerolog.Nop())
	return c, srv
}

func TestVerifyValid(t *testing.T) {
	c, _ := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/tickets/qr/verify" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["qr_token"] != "TOK123" {
			t.Errorf("qr_token = %q", body["qr_token"])
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"valid":true,"ticket":{"id":42,"event_id":7,"seat_number":17,"seat_type":"vip","status":"active","price_paid":25}}`))
	})

	resp, err := c.Verify(context.Background(), "TOK123")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !resp.Valid || resp.Ticket == nil {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Ticket.ID != 42 || resp.Ticket.PricePaid != 25 {
		t.Errorf("ticket = %+v", resp.Ticket)
	}
	if resp.Ticket.SeatLabel != "B7" {
		t.Errorf("derived seat label = %q, want B7", resp.Ticket.SeatLabel)
	}
}

func TestVerifyKeepsSeatLabel(t *testing.T) {
	c, _ := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"valid":true,"ticket":{"id":1,"seat_number":17,"seat_label":"Balcony 3","seat_type":"regular","status":"active","price_paid":10}}`))
	})
	resp, err := c.Verify(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Ticket.SeatLabel != "Balcony 3" {
		t.Errorf("seat label = %q", resp.Ticket.SeatLabel)
	}
}

func TestVerifyInvalid(t *testing.T) {
	c, _ := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"valid":false}`))
	})
	resp, err := c.Verify(context.Background(), "forged")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if resp.Valid || resp.Ticket != nil {
		t.Errorf("resp = %+v", resp)
	}
}

func TestVerifyErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    error
		message string
	}{
		{"string detail", http.StatusBadRequest, `{"detail":"Ticket already used"}`, ErrRejected, "Ticket already used"},
		{"message field", http.StatusInternalServerError, `{"message":"boom"}`, ErrRejected, "boom"},
		{"no body", http.StatusBadGateway, ``, ErrRejected, "HTTP error! status: 502"},
		{"validation list", http.StatusUnprocessableEntity,
			`{"detail":[{"loc":["body","qr_token"],"msg":"field required"},{"loc":["body",0],"msg":"bad"}]}`,
			ErrRejected, "body.qr_token: field required, body.0: bad"},
		{"unauthorized", http.StatusUnauthorized, `{"detail":"nope"}`, ErrUnauthorized, "Unauthorized - please login again"},
		{"malformed success", http.StatusOK, `{"valid":`, ErrInvalidResponse, "Invalid response from server"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.Verify(context.Background(), "TOK")
			if !errors.Is(err, tt.kind) {
				t.Fatalf("error = %v, want kind %v", err, tt.kind)
			}
			if err.Error() != tt.message {
				t.Errorf("message = %q, want %q", err.Error(), tt.message)
			}
		})
	}
}

func TestVerifyUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(config.APIConfig{BaseURL: base}, nil, zerolog.Nop())
	_, err := c.Verify(context.Background(), "TOK")
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("error = %v, want ErrUnreachable", err)
	}
	if !strings.HasPrefix(err.Error(), "Cannot connect to server.") || !strings.HasSuffix(err.Error(), base) {
		t.Errorf("message = %q", err.Error())
	}
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "scanner",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestVerifyAuthorizationHeader(t *testing.T) {
	fresh := signed(t, time.Now().Add(time.Hour))
	expired := signed(t, time.Now().Add(-time.Minute))

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"no token", "", ""},
		{"fresh jwt", fresh, "Bearer " + fresh},
		{"expired jwt", expired, ""},
		{"opaque token", "static-key", "Bearer static-key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			c, _ := newTestClient(t, tt.token, func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("Authorization")
				w.Write([]byte(`{"valid":false}`))
			})
			if _, err := c.Verify(context.Background(), "TOK"); err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Authorization = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnauthorizedClearsToken(t *testing.T) {
	calls := 0
	var headers []string
	c, _ := newTestClient(t, "static-key", func(w http.ResponseWriter, r *http.Request) {
		calls++
		headers = append(headers, r.Header.Get("Authorization"))
		if calls == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"valid":false}`))
	})

	c.Verify(context.Background(), "TOK")
	c.Verify(context.Background(), "TOK")
	if headers[0] == "" || headers[1] != "" {
		t.Errorf("headers = %q, want token dropped after 401", headers)
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := NewToken(signed(t, exp))
	if !tok.ExpiresAt().Equal(exp) {
		t.Errorf("ExpiresAt() = %v, want %v", tok.ExpiresAt(), exp)
	}
	if _, ok := tok.Bearer(exp.Add(-time.Second)); !ok {
		t.Error("token withheld before expiry")
	}
	if _, ok := tok.Bearer(exp); ok {
		t.Error("token offered at expiry")
	}
}
