package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pushit/marketplace/internal/metrics"
	"github.com/pushit/marketplace/internal/models"
	"go.uber.org/zap"
)

// SignatureHeader carries the HMAC of a webhook body.
const SignatureHeader = "X-Paystack-Signature"

// Client talks to the Paystack REST API.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	metrics    *metrics.Metrics
	log        *zap.Logger
}

func NewClient(baseURL, secretKey string, m *metrics.Metrics, log *zap.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		metrics: m,
		log:     log,
	}
}

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paystack returned %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return models.ErrGatewayUnavailable }

// IsRejected reports whether err is a definitive refusal: the gateway
// answered with a 4xx and did not act on the request. Timeouts, transport
// errors, throttling and 5xx answers leave the outcome unknown.
func IsRejected(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
}

// IsNotFound reports whether the gateway has no record of the object.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		c.metrics.GatewayCall(op, outcome, time.Since(start))
	}()

	if c.secretKey == "" {
		return fmt.Errorf("paystack secret key not configured: %w", models.ErrGatewayUnavailable)
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paystack %s: %v: %w", op, err, models.ErrGatewayUnavailable)
	}
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("paystack %s: read body: %w", op, err)
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: "malformed response"}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || !env.Status {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

type InitializeRequest struct {
	Email       string         `json:"email"`
	AmountMinor int64          `json:"amount"`
	Currency    string         `json:"currency"`
	Reference   string         `json:"reference"`
	CallbackURL string         `json:"callback_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Channels    []string       `json:"channels,omitempty"`
}

type InitializeResult struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// InitializeTransaction opens a hosted checkout for a charge.
func (c *Client) InitializeTransaction(ctx context.Context, r InitializeRequest) (*InitializeResult, error) {
	var out InitializeResult
	if err := c.do(ctx, "initialize", http.MethodPost, "/transaction/initialize", r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChargeData is the transaction object in verify responses and charge
// webhooks.
type ChargeData struct {
	Reference       string  `json:"reference"`
	Status          string  `json:"status"`
	Amount          int64   `json:"amount"`
	Currency        string  `json:"currency"`
	GatewayResponse string  `json:"gateway_response"`
	PaidAt          *string `json:"paid_at"`
	Authorization   struct {
		AuthorizationCode string `json:"authorization_code"`
	} `json:"authorization"`
	Customer struct {
		CustomerCode string `json:"customer_code"`
	} `json:"customer"`
}

func (d ChargeData) Result() models.GatewayResult {
	res := models.GatewayResult{
		Reference:         d.Reference,
		Status:            d.Status,
		AmountMinor:       d.Amount,
		Currency:          strings.ToUpper(d.Currency),
		AuthorizationCode: d.Authorization.AuthorizationCode,
		CustomerCode:      d.Customer.CustomerCode,
		GatewayResponse:   d.GatewayResponse,
	}
	if d.PaidAt != nil {
		if t, err := time.Parse(time.RFC3339, *d.PaidAt); err == nil {
			res.PaidAt = &t
		}
	}
	return res
}

// VerifyTransaction fetches the authoritative state of a charge.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*models.GatewayResult, error) {
	var d ChargeData
	if err := c.do(ctx, "verify", http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &d); err != nil {
		return nil, err
	}
	res := d.Result()
	if res.Reference == "" {
		res.Reference = reference
	}
	return &res, nil
}

type RecipientRequest struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	Currency      string `json:"currency"`
}

// RecipientType maps a payout method type to Paystack's recipient type.
func RecipientType(methodType string) string {
	if methodType == models.PayoutMethodMobileMoney {
		return "mobile_money"
	}
	return "nuban"
}

// CreateTransferRecipient registers a bank or mobile money account and
// returns its recipient code.
func (c *Client) CreateTransferRecipient(ctx context.Context, r RecipientRequest) (string, error) {
	var out struct {
		RecipientCode string `json:"recipient_code"`
	}
	if err := c.do(ctx, "create_recipient", http.MethodPost, "/transferrecipient", r, &out); err != nil {
		return "", err
	}
	return out.RecipientCode, nil
}

type TransferRequest struct {
	Source      string `json:"source"`
	AmountMinor int64  `json:"amount"`
	Recipient   string `json:"recipient"`
	Reference   string `json:"reference"`
	Reason      string `json:"reason,omitempty"`
	Currency    string `json:"currency"`
}

type TransferResult struct {
	TransferCode string `json:"transfer_code"`
	Reference    string `json:"reference"`
	Status       string `json:"status"`
}

// InitiateTransfer sends money from the balance to a recipient. The final
// outcome arrives as a transfer webhook.
func (c *Client) InitiateTransfer(ctx context.Context, r TransferRequest) (*TransferResult, error) {
	if r.Source == "" {
		r.Source = "balance"
	}
	var out TransferResult
	if err := c.do(ctx, "transfer", http.MethodPost, "/transfer", r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyTransfer fetches the authoritative state of a transfer by our
// reference.
func (c *Client) VerifyTransfer(ctx context.Context, reference string) (*models.GatewayResult, error) {
	var d TransferData
	if err := c.do(ctx, "verify_transfer", http.MethodGet, "/transfer/verify/"+url.PathEscape(reference), nil, &d); err != nil {
		return nil, err
	}
	res := d.Result(d.Status)
	if res.Reference == "" {
		res.Reference = reference
	}
	return &res, nil
}

// VerifySignature checks the hex HMAC-SHA512 of body under secret in
// constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// Sign computes the signature Paystack would send for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
