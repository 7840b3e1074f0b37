package signature

import (
	"net/url"
	"strings"
)

const (
	VNPayPrefix      = "vnp_"
	VNPayHashKey     = "vnp_SecureHash"
	VNPayHashTypeKey = "vnp_SecureHashType"
)

type VNPay struct {
	secret string
}

func NewVNPay(secret string) *VNPay {
	return &VNPay{secret: secret}
}

// SignData returns the sorted, form-encoded query string VNPay signs: every
// vnp_ parameter except the hash fields.
func (v *VNPay) SignData(params url.Values) string {
	signed := url.Values{}
	for k, vals := range params {
		if !strings.HasPrefix(k, VNPayPrefix) || k == VNPayHashKey || k == VNPayHashTypeKey {
			continue
		}
		if len(vals) == 0 {
			continue
		}
		signed.Set(k, vals[0])
	}
	// Encode sorts by key.
	return signed.Encode()
}

func (v *VNPay) Sign(params url.Values) string {
	return hmacSHA512(v.secret, []byte(v.SignData(params)))
}

// Verify checks vnp_SecureHash. VNPay emits upper or lower case hex, so the
// comparison is case-insensitive.
func (v *VNPay) Verify(params url.Values) error {
	return compareFold(v.Sign(params), params.Get(VNPayHashKey))
}
