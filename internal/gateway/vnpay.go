package gateway

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/boostmarket/paywebhook/internal/domain"
)

// VNPay timestamps are local Vietnam time without an offset.
var vietnamTime = time.FixedZone("ICT", 7*60*60)

const vnpayDateLayout = "20060102150405"

// VNPayPayload holds the allow-listed vnp_ parameters of an IPN request.
type VNPayPayload struct {
	Amount            string `json:"vnp_Amount" validate:"required,number"`
	BankCode          string `json:"vnp_BankCode,omitempty"`
	BankTranNo        string `json:"vnp_BankTranNo,omitempty"`
	CardType          string `json:"vnp_CardType,omitempty"`
	OrderInfo         string `json:"vnp_OrderInfo,omitempty"`
	PayDate           string `json:"vnp_PayDate" validate:"required,len=14,number"`
	ResponseCode      string `json:"vnp_ResponseCode" validate:"required"`
	TmnCode           string `json:"vnp_TmnCode,omitempty"`
	TransactionNo     string `json:"vnp_TransactionNo" validate:"required"`
	TransactionStatus string `json:"vnp_TransactionStatus,omitempty"`
	TxnRef            string `json:"vnp_TxnRef" validate:"required"`
	SecureHashType    string `json:"vnp_SecureHashType,omitempty"`
	SecureHash        string `json:"vnp_SecureHash" validate:"required"`
}

var _ Payload = (*VNPayPayload)(nil)

// ParseVNPay copies only known vnp_ keys out of the request parameters.
// Unknown keys are dropped so they can never reach storage.
func ParseVNPay(params url.Values) (*VNPayPayload, error) {
	p := &VNPayPayload{
		Amount:            params.Get("vnp_Amount"),
		BankCode:          params.Get("vnp_BankCode"),
		BankTranNo:        params.Get("vnp_BankTranNo"),
		CardType:          params.Get("vnp_CardType"),
		OrderInfo:         params.Get("vnp_OrderInfo"),
		PayDate:           params.Get("vnp_PayDate"),
		ResponseCode:      params.Get("vnp_ResponseCode"),
		TmnCode:           params.Get("vnp_TmnCode"),
		TransactionNo:     params.Get("vnp_TransactionNo"),
		TransactionStatus: params.Get("vnp_TransactionStatus"),
		TxnRef:            params.Get("vnp_TxnRef"),
		SecureHashType:    params.Get("vnp_SecureHashType"),
		SecureHash:        params.Get("vnp_SecureHash"),
	}
	if err := validatePayload(p); err != nil {
		return nil, fmt.Errorf("ParseVNPay: %w", err)
	}
	return p, nil
}

func (p *VNPayPayload) payload() {}

func (p *VNPayPayload) Provider() domain.Provider { return domain.ProviderVNPay }

func (p *VNPayPayload) EventID() string {
	return fmt.Sprintf("%s:%s:%s", p.TxnRef, p.TransactionNo, p.ResponseCode)
}

func (p *VNPayPayload) Timestamp() (time.Time, error) {
	t, err := time.ParseInLocation(vnpayDateLayout, p.PayDate, vietnamTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("Timestamp: %w: %w", domain.ErrInvalidPayload, err)
	}
	return t, nil
}

// Amount is sent in hundredths of a dong.
func (p *VNPayPayload) amount() (decimal.Decimal, error) {
	minor, err := strconv.ParseInt(p.Amount, 10, 64)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("amount: %w: %w", domain.ErrInvalidPayload, err)
	}
	return decimal.New(minor, -2), nil
}

func (p *VNPayPayload) Notification() (domain.Notification, error) {
	amount, err := p.amount()
	if err != nil {
		return domain.Notification{}, fmt.Errorf("Notification: %w", err)
	}
	paidAt, err := p.Timestamp()
	if err != nil {
		return domain.Notification{}, fmt.Errorf("Notification: %w", err)
	}

	return domain.Notification{
		Provider:      domain.ProviderVNPay,
		OrderCode:     p.TxnRef,
		TransactionID: p.TransactionNo,
		Amount:        amount,
		Outcome:       vnpayOutcome(p.ResponseCode, p.TransactionStatus),
		ResultCode:    p.ResponseCode,
		Message:       p.OrderInfo,
		PaidAt:        paidAt.UTC(),
	}, nil
}
