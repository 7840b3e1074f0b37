package gateway

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	go_json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/boostmarket/paywebhook/internal/domain"
)

type zaloPayEnvelope struct {
	Data string `json:"data" validate:"required"`
	MAC  string `json:"mac"`
	Type int    `json:"type,omitempty"`
}

// ZaloPayData is the JSON document carried as a string in the callback's data field.
type ZaloPayData struct {
	AppID          int64  `json:"app_id"`
	AppTransID     string `json:"app_trans_id" validate:"required"`
	AppTime        int64  `json:"app_time"`
	AppUser        string `json:"app_user"`
	Amount         int64  `json:"amount" validate:"gt=0"`
	EmbedData      string `json:"embed_data"`
	Item           string `json:"item"`
	ZPTransID      int64  `json:"zp_trans_id" validate:"gt=0"`
	ServerTime     int64  `json:"server_time" validate:"gt=0"`
	Channel        int    `json:"channel"`
	MerchantUserID string `json:"merchant_user_id"`
	UserFeeAmount  int64  `json:"user_fee_amount"`
	DiscountAmount int64  `json:"discount_amount"`
	Status         *int   `json:"status,omitempty"`
}

// ZaloPayPayload keeps the raw data string alongside its parsed form because
// the MAC covers the exact bytes received.
type ZaloPayPayload struct {
	Data   string
	MAC    string
	Type   int
	Parsed ZaloPayData
}

var _ Payload = (*ZaloPayPayload)(nil)

func ParseZaloPay(data, mac string, typ int) (*ZaloPayPayload, error) {
	p, err := newZaloPayPayload(zaloPayEnvelope{Data: data, MAC: mac, Type: typ})
	if err != nil {
		return nil, fmt.Errorf("ParseZaloPay: %w", err)
	}
	return p, nil
}

// ParseZaloPayJSON accepts the {data, mac, type} JSON body variant.
func ParseZaloPayJSON(body []byte) (*ZaloPayPayload, error) {
	var env zaloPayEnvelope
	if err := go_json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("ParseZaloPayJSON: %w: %w", domain.ErrInvalidPayload, err)
	}
	p, err := newZaloPayPayload(env)
	if err != nil {
		return nil, fmt.Errorf("ParseZaloPayJSON: %w", err)
	}
	return p, nil
}

func newZaloPayPayload(env zaloPayEnvelope) (*ZaloPayPayload, error) {
	if err := validatePayload(&env); err != nil {
		return nil, err
	}

	var data ZaloPayData
	if err := go_json.Unmarshal([]byte(env.Data), &data); err != nil {
		return nil, fmt.Errorf("%w: data: %w", domain.ErrInvalidPayload, err)
	}
	if err := validatePayload(&data); err != nil {
		return nil, err
	}

	return &ZaloPayPayload{Data: env.Data, MAC: env.MAC, Type: env.Type, Parsed: data}, nil
}

func (p *ZaloPayPayload) MarshalJSON() ([]byte, error) {
	return go_json.Marshal(zaloPayEnvelope{Data: p.Data, MAC: p.MAC, Type: p.Type})
}

func (p *ZaloPayPayload) payload() {}

func (p *ZaloPayPayload) Provider() domain.Provider { return domain.ProviderZaloPay }

func (p *ZaloPayPayload) EventID() string {
	status := "none"
	if p.Parsed.Status != nil {
		status = strconv.Itoa(*p.Parsed.Status)
	}
	return fmt.Sprintf("%s:%d:%s", p.Parsed.AppTransID, p.Parsed.ZPTransID, status)
}

func (p *ZaloPayPayload) Timestamp() (time.Time, error) {
	return time.UnixMilli(p.Parsed.ServerTime), nil
}

// OrderCode strips the yymmdd_ prefix ZaloPay requires on app_trans_id.
func (p *ZaloPayPayload) OrderCode() string {
	_, code, found := strings.Cut(p.Parsed.AppTransID, "_")
	if !found {
		return p.Parsed.AppTransID
	}
	return code
}

func (p *ZaloPayPayload) Notification() (domain.Notification, error) {
	return domain.Notification{
		Provider:      domain.ProviderZaloPay,
		OrderCode:     p.OrderCode(),
		TransactionID: strconv.FormatInt(p.Parsed.ZPTransID, 10),
		Amount:        decimal.NewFromInt(p.Parsed.Amount),
		Outcome:       zalopayOutcome(p.Parsed.Status),
		ResultCode:    zalopayResultCode(p.Parsed.Status),
		PaidAt:        time.UnixMilli(p.Parsed.ServerTime).UTC(),
	}, nil
}

func zalopayResultCode(status *int) string {
	if status == nil {
		return "1"
	}
	return strconv.Itoa(*status)
}
