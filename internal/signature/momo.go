package signature

import "strings"

// MoMoFields are the IPN fields covered by the MoMo signature. Numeric values
// are carried in their decimal string form exactly as received.
type MoMoFields struct {
	Amount       string
	ExtraData    string
	Message      string
	OrderID      string
	OrderInfo    string
	OrderType    string
	PartnerCode  string
	PayType      string
	RequestID    string
	ResponseTime string
	ResultCode   string
	TransID      string
}

type MoMo struct {
	accessKey string
	secretKey string
}

func NewMoMo(accessKey, secretKey string) *MoMo {
	return &MoMo{accessKey: accessKey, secretKey: secretKey}
}

// CanonicalString builds the alphabetically ordered key=value string MoMo signs.
func (v *MoMo) CanonicalString(f MoMoFields) string {
	pairs := []struct{ k, v string }{
		{"accessKey", v.accessKey},
		{"amount", f.Amount},
		{"extraData", f.ExtraData},
		{"message", f.Message},
		{"orderId", f.OrderID},
		{"orderInfo", f.OrderInfo},
		{"orderType", f.OrderType},
		{"partnerCode", f.PartnerCode},
		{"payType", f.PayType},
		{"requestId", f.RequestID},
		{"responseTime", f.ResponseTime},
		{"resultCode", f.ResultCode},
		{"transId", f.TransID},
	}

	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.k)
		b.WriteByte('=')
		b.WriteString(p.v)
	}
	return b.String()
}

func (v *MoMo) Sign(f MoMoFields) string {
	return hmacSHA256(v.secretKey, []byte(v.CanonicalString(f)))
}

func (v *MoMo) Verify(f MoMoFields, signature string) error {
	return compare(v.Sign(f), signature)
}
