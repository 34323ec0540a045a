package paystack

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/pushit/marketplace/internal/models"
)

// Webhook event names.
const (
	EventChargeSuccess    = "charge.success"
	EventChargeFailed     = "charge.failed"
	EventTransferSuccess  = "transfer.success"
	EventTransferFailed   = "transfer.failed"
	EventTransferReversed = "transfer.reversed"
)

var ErrMalformedWebhook = errors.New("malformed webhook payload")

// WebhookEvent is the envelope of every Paystack webhook.
type WebhookEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// TransferData is the transfer object in transfer webhooks.
type TransferData struct {
	Reference    string `json:"reference"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	TransferCode string `json:"transfer_code"`
	Reason       string `json:"reason"`
}

// Result converts the transfer into a gateway result with the given
// status. Webhooks carry the status in the event name.
func (d TransferData) Result(status string) models.GatewayResult {
	return models.GatewayResult{
		Reference:       d.Reference,
		Status:          strings.ToLower(status),
		AmountMinor:     d.Amount,
		Currency:        strings.ToUpper(d.Currency),
		TransferCode:    d.TransferCode,
		GatewayResponse: d.Reason,
	}
}

// ParseWebhook decodes the envelope and checks that it names an event and
// carries a data object.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, ErrMalformedWebhook
	}
	ev.Event = strings.TrimSpace(ev.Event)
	if ev.Event == "" || len(ev.Data) == 0 || ev.Data[0] != '{' {
		return nil, ErrMalformedWebhook
	}
	return &ev, nil
}

func (e *WebhookEvent) Charge() (*ChargeData, error) {
	var d ChargeData
	if err := json.Unmarshal(e.Data, &d); err != nil || d.Reference == "" {
		return nil, ErrMalformedWebhook
	}
	return &d, nil
}

func (e *WebhookEvent) Transfer() (*TransferData, error) {
	var d TransferData
	if err := json.Unmarshal(e.Data, &d); err != nil || d.Reference == "" {
		return nil, ErrMalformedWebhook
	}
	return &d, nil
}
