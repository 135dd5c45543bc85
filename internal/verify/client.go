package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ticket-scanner/internal/config"
	"ticket-scanner/internal/domain/scan"
	"ticket-scanner/internal/utils"
)

const maxErrorBody = 64 * 1024

var (
	ErrUnreachable     = errors.New("verification endpoint unreachable")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrRejected        = errors.New("verification request rejected")
	ErrInvalidResponse = errors.New("invalid verification response")
)

// Error carries the operator-facing message alongside a sentinel kind.
type Error struct {
	Kind    error
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Client calls the ticket QR verification endpoint.
type Client struct {
	baseURL    string
	verifyPath string
	http       *http.Client
	token      *Token
	log        zerolog.Logger
}

func NewClient(cfg config.APIConfig, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	path := cfg.VerifyPath
	if path == "" {
		path = "/api/v1/tickets/qr/verify"
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		verifyPath: path,
		http:       httpClient,
		token:      NewToken(cfg.Token),
		log:        log.With().Str("component", "verify").Logger(),
	}
}

// Verify posts the payload as an opaque qr_token. Failures come back as
// *Error whose message is fit for display.
func (c *Client) Verify(ctx context.Context, payload string) (*scan.VerifyResponse, error) {
	body, err := json.Marshal(scan.VerifyRequest{QRToken: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode verification request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.verifyPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer, ok := c.token.Bearer(time.Now()); ok {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("verification request failed")
		return nil, &Error{
			Kind:    ErrUnreachable,
			Message: "Cannot connect to server. Please ensure the backend is running at " + c.baseURL,
		}
	}
	defer resp.Body.Close()

	c.log.Debug().
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Str("fingerprint", utils.Fingerprint(payload)).
		Msg("verification response")

	if resp.StatusCode == http.StatusUnauthorized {
		c.token.Clear()
		return nil, &Error{Kind: ErrUnauthorized, Status: resp.StatusCode, Message: "Unauthorized - please login again"}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &Error{Kind: ErrRejected, Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, raw)}
	}

	var out scan.VerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &Error{Kind: ErrInvalidResponse, Status: resp.StatusCode, Message: "Invalid response from server"}
	}
	if t := out.Ticket; t != nil && t.SeatLabel == "" && t.SeatNumber != 0 {
		t.SeatLabel = utils.SeatLabel(t.SeatNumber)
	}
	return &out, nil
}

type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

type validationIssue struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// errorMessage extracts a readable message from a FastAPI-style error body:
// a string detail, a list of validation issues, or a message field.
func errorMessage(status int, raw []byte) string {
	fallback := fmt.Sprintf("HTTP error! status: %d", status)

	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return fallback
	}

	if len(body.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(body.Detail, &detail); err == nil && detail != "" {
			return detail
		}

		var issues []validationIssue
		if status == http.StatusUnprocessableEntity {
			if err := json.Unmarshal(body.Detail, &issues); err == nil && len(issues) > 0 {
				parts := make([]string, 0, len(issues))
				for _, issue := range issues {
					loc := make([]string, 0, len(issue.Loc))
					for _, l := range issue.Loc {
						loc = append(loc, fmt.Sprint(l))
					}
					parts = append(parts, strings.Join(loc, ".")+": "+issue.Msg)
				}
				return strings.Join(parts, ", ")
			}
		}
	}

	if body.Message != "" {
		return body.Message
	}
	return fallback
}
