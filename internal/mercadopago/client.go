// Package mercadopago is the thin client for the payment processor:
// webhook identifier resolution and payment detail lookup.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://api.mercadopago.com"

// ErrNoPaymentID means no recognized shape in the webhook payload carried
// an identifier.
var ErrNoPaymentID = errors.New("no payment id in webhook payload")

// ID tolerates the processor sending identifiers as JSON numbers or
// strings, depending on the notification format vintage.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Payment is the subset of the processor's payment detail the ledger
// consumes.
type Payment struct {
	ID                    ID      `json:"id"`
	TransactionAmount     float64 `json:"transaction_amount"`
	TransactionAmountPaid float64 `json:"transaction_amount_paid"`
	Status                string  `json:"status"`
	DateCreated           string  `json:"date_created"`
	Payer                 struct {
		Email string `json:"email"`
	} `json:"payer"`

	// Raw is the response body as received, for the ledger's audit copy.
	Raw string `json:"-"`
}

// Amount returns the paid amount, falling back to the alternate field
// some API responses use.
func (p Payment) Amount() float64 {
	if p.TransactionAmount != 0 {
		return p.TransactionAmount
	}
	return p.TransactionAmountPaid
}

// EconomicDate is the first 10 characters of the ISO-ish creation
// timestamp (YYYY-MM-DD), or "" when absent.
func (p Payment) EconomicDate() string {
	if len(p.DateCreated) < 10 {
		return ""
	}
	return p.DateCreated[:10]
}

// webhookPayload covers the notification shapes the processor sends:
// {"action":"payment.created","data":{"id":123}}, and the older
// {"type":"payment","id":"123"}.
type webhookPayload struct {
	Data struct {
		ID ID `json:"id"`
	} `json:"data"`
	ID ID `json:"id"`
}

// ResolvePaymentID extracts the payment identifier from a webhook request
// body plus its query parameters. The recognized shapes are tried in
// fixed priority order: data.id, top-level id, then the id query
// parameter. Returns ErrNoPaymentID when none matches — a clear "no
// identifier" outcome, not a guess.
func ResolvePaymentID(body []byte, query url.Values) (string, error) {
	var payload webhookPayload
	// A malformed body is not fatal: the query fallback still applies.
	_ = json.Unmarshal(body, &payload)

	if payload.Data.ID != "" {
		return string(payload.Data.ID), nil
	}
	if payload.ID != "" {
		return string(payload.ID), nil
	}
	if id := query.Get("id"); id != "" {
		return id, nil
	}
	return "", ErrNoPaymentID
}

// Client talks to the processor's payments API.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

func NewClient(accessToken string) *Client {
	return &Client{
		baseURL:     defaultBaseURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

// NewClientWithBaseURL is used by tests to point the client at a stub
// server.
func NewClientWithBaseURL(accessToken, baseURL string) *Client {
	c := NewClient(accessToken)
	c.baseURL = baseURL
	return c
}

// FetchPayment looks up full payment detail by id. Any transport error or
// non-200 status fails the lookup; the caller aborts ingestion before
// writing anything.
func (c *Client) FetchPayment(ctx context.Context, id string) (Payment, error) {
	u := c.baseURL + "/v1/payments/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Payment{}, fmt.Errorf("build payment request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Payment{}, fmt.Errorf("fetch payment %s: %w", id, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Payment{}, fmt.Errorf("read payment response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Payment{}, fmt.Errorf("fetch payment %s: status %d", id, resp.StatusCode)
	}

	var p Payment
	if err := json.Unmarshal(body, &p); err != nil {
		return Payment{}, fmt.Errorf("decode payment %s: %w", id, err)
	}
	p.Raw = string(body)
	return p, nil
}
