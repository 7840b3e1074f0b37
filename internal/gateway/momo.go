package gateway

import (
	"fmt"
	"strconv"
	"time"

	go_json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/boostmarket/paywebhook/internal/domain"
	"github.com/boostmarket/paywebhook/internal/signature"
)

// MoMoPayload is the JSON body of a MoMo IPN.
type MoMoPayload struct {
	PartnerCode  string `json:"partnerCode" validate:"required"`
	OrderID      string `json:"orderId" validate:"required"`
	RequestID    string `json:"requestId" validate:"required"`
	Amount       int64  `json:"amount" validate:"gt=0"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      int64  `json:"transId" validate:"gt=0"`
	ResultCode   int64  `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime int64  `json:"responseTime" validate:"gt=0"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
}

var _ Payload = (*MoMoPayload)(nil)

func ParseMoMo(body []byte) (*MoMoPayload, error) {
	var p MoMoPayload
	if err := go_json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("ParseMoMo: %w: %w", domain.ErrInvalidPayload, err)
	}
	if err := validatePayload(&p); err != nil {
		return nil, fmt.Errorf("ParseMoMo: %w", err)
	}
	return &p, nil
}

func (p *MoMoPayload) payload() {}

func (p *MoMoPayload) Provider() domain.Provider { return domain.ProviderMoMo }

func (p *MoMoPayload) EventID() string {
	return fmt.Sprintf("%s:%d:%d", p.OrderID, p.TransID, p.ResultCode)
}

func (p *MoMoPayload) Timestamp() (time.Time, error) {
	return time.UnixMilli(p.ResponseTime), nil
}

func (p *MoMoPayload) SignatureFields() signature.MoMoFields {
	return signature.MoMoFields{
		Amount:       strconv.FormatInt(p.Amount, 10),
		ExtraData:    p.ExtraData,
		Message:      p.Message,
		OrderID:      p.OrderID,
		OrderInfo:    p.OrderInfo,
		OrderType:    p.OrderType,
		PartnerCode:  p.PartnerCode,
		PayType:      p.PayType,
		RequestID:    p.RequestID,
		ResponseTime: strconv.FormatInt(p.ResponseTime, 10),
		ResultCode:   strconv.FormatInt(p.ResultCode, 10),
		TransID:      strconv.FormatInt(p.TransID, 10),
	}
}

func (p *MoMoPayload) Notification() (domain.Notification, error) {
	return domain.Notification{
		Provider:      domain.ProviderMoMo,
		OrderCode:     p.OrderID,
		TransactionID: strconv.FormatInt(p.TransID, 10),
		Amount:        decimal.NewFromInt(p.Amount),
		Outcome:       momoOutcome(p.ResultCode),
		ResultCode:    strconv.FormatInt(p.ResultCode, 10),
		Message:       p.Message,
		PaidAt:        time.UnixMilli(p.ResponseTime).UTC(),
	}, nil
}
