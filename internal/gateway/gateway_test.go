package gateway

import (
	"net/url"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boostmarket/paywebhook/internal/domain"
)

const momoBody = `{
	"partnerCode": "MOMOBKUN20180529",
	"orderId": "BK20261016A1",
	"requestId": "BK20261016A1-1760600000000",
	"amount": 150000,
	"orderInfo": "Rank boost",
	"orderType": "momo_wallet",
	"transId": 4088878653,
	"resultCode": 0,
	"message": "Successful.",
	"payType": "qr",
	"responseTime": 1760600000000,
	"extraData": "",
	"signature": "abc"
}`

func TestParseMoMo(t *testing.T) {
	p, err := ParseMoMo([]byte(momoBody))
	require.NoError(t, err)

	assert.Equal(t, domain.ProviderMoMo, p.Provider())
	assert.Equal(t, "BK20261016A1:4088878653:0", p.EventID())

	ts, err := p.Timestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(1760600000000), ts.UnixMilli())

	fields := p.SignatureFields()
	assert.Equal(t, "150000", fields.Amount)
	assert.Equal(t, "4088878653", fields.TransID)
	assert.Equal(t, "0", fields.ResultCode)
}

func TestParseMoMo_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "not-json"},
		{name: "empty object", body: "{}"},
		{name: "missing trans id", body: `{"partnerCode":"P","orderId":"O","requestId":"R","amount":1,"responseTime":1,"signature":"s"}`},
		{name: "zero trans id", body: `{"partnerCode":"P","orderId":"O","requestId":"R","amount":1,"transId":0,"responseTime":1,"signature":"s"}`},
		{name: "zero amount", body: `{"partnerCode":"P","orderId":"O","requestId":"R","amount":0,"responseTime":1,"signature":"s"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseMoMo([]byte(tc.body))
			require.ErrorIs(t, err, domain.ErrInvalidPayload)
		})
	}
}

func TestMoMoOutcome(t *testing.T) {
	tests := []struct {
		code int64
		want domain.Outcome
	}{
		{0, domain.OutcomeSuccess},
		{1006, domain.OutcomeFailure},
		{1005, domain.OutcomeFailure},
		{1000, domain.OutcomePending},
		{7000, domain.OutcomePending},
		{9000, domain.OutcomePending},
		{12345, domain.OutcomePending},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, momoOutcome(tc.code), "code %d", tc.code)
	}
}

func vnpParams() url.Values {
	return url.Values{
		"vnp_Amount":            {"15000000"},
		"vnp_BankCode":          {"NCB"},
		"vnp_OrderInfo":         {"Thanh toan BK20261016A1"},
		"vnp_PayDate":           {"20261016143000"},
		"vnp_ResponseCode":      {"00"},
		"vnp_TmnCode":           {"DEMOTMN1"},
		"vnp_TransactionNo":     {"14626357"},
		"vnp_TransactionStatus": {"00"},
		"vnp_TxnRef":            {"BK20261016A1"},
		"vnp_SecureHash":        {"abc"},
	}
}

func TestParseVNPay_AllowList(t *testing.T) {
	params := vnpParams()
	params.Set("vnp_Injected", "x")
	params.Set("__proto__", "polluted")

	p, err := ParseVNPay(params)
	require.NoError(t, err)

	raw, err := Encode(p)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "vnp_Injected")
	assert.NotContains(t, string(raw), "__proto__")
	assert.Contains(t, string(raw), `"vnp_TxnRef":"BK20261016A1"`)
}

func TestParseVNPay_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(url.Values)
	}{
		{name: "missing txn ref", mutate: func(v url.Values) { v.Del("vnp_TxnRef") }},
		{name: "non numeric amount", mutate: func(v url.Values) { v.Set("vnp_Amount", "12a") }},
		{name: "short pay date", mutate: func(v url.Values) { v.Set("vnp_PayDate", "2026101614") }},
		{name: "missing hash", mutate: func(v url.Values) { v.Del("vnp_SecureHash") }},
		{name: "missing transaction no", mutate: func(v url.Values) { v.Del("vnp_TransactionNo") }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			params := vnpParams()
			tc.mutate(params)
			_, err := ParseVNPay(params)
			require.ErrorIs(t, err, domain.ErrInvalidPayload)
		})
	}
}

func TestVNPayPayload_Notification(t *testing.T) {
	p, err := ParseVNPay(vnpParams())
	require.NoError(t, err)

	n, err := p.Notification()
	require.NoError(t, err)

	want := domain.Notification{
		Provider:      domain.ProviderVNPay,
		OrderCode:     "BK20261016A1",
		TransactionID: "14626357",
		Amount:        decimal.NewFromInt(150000),
		Outcome:       domain.OutcomeSuccess,
		ResultCode:    "00",
		Message:       "Thanh toan BK20261016A1",
		PaidAt:        time.Date(2026, 10, 16, 7, 30, 0, 0, time.UTC),
	}
	assert.Empty(t, cmp.Diff(want, n, cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })))
	assert.Equal(t, "BK20261016A1:14626357:00", p.EventID())
}

func TestVNPayOutcome(t *testing.T) {
	tests := []struct {
		response, status string
		want             domain.Outcome
	}{
		{"00", "00", domain.OutcomeSuccess},
		{"00", "", domain.OutcomeSuccess},
		{"00", "01", domain.OutcomePending},
		{"24", "02", domain.OutcomeFailure},
		{"51", "", domain.OutcomeFailure},
		{"07", "00", domain.OutcomePending},
		{"99", "", domain.OutcomePending},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, vnpayOutcome(tc.response, tc.status), "%s/%s", tc.response, tc.status)
	}
}

const zaloData = `{"app_id":2553,"app_trans_id":"261016_BK20261016A1","app_time":1760600000000,"app_user":"user1","amount":150000,"embed_data":"{}","item":"[]","zp_trans_id":240001,"server_time":1760600005000,"channel":38,"merchant_user_id":"","user_fee_amount":0,"discount_amount":0,"status":1}`

func TestParseZaloPay(t *testing.T) {
	p, err := ParseZaloPay(zaloData, "mac", 1)
	require.NoError(t, err)

	assert.Equal(t, "BK20261016A1", p.OrderCode())
	assert.Equal(t, "261016_BK20261016A1:240001:1", p.EventID())

	n, err := p.Notification()
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, n.Outcome)
	assert.True(t, n.Amount.Equal(decimal.NewFromInt(150000)))
	assert.Equal(t, "240001", n.TransactionID)
}

func TestParseZaloPay_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		mac  string
	}{
		{name: "data not json", data: "nope", mac: "m"},
		{name: "missing app_trans_id", data: `{"amount":1,"zp_trans_id":1,"server_time":1}`, mac: "m"},
		{name: "missing zp_trans_id", data: `{"app_trans_id":"261016_BK1","amount":1,"server_time":1}`, mac: "m"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseZaloPay(tc.data, tc.mac, 1)
			require.ErrorIs(t, err, domain.ErrInvalidPayload)
		})
	}
}

func TestZaloPayOutcome(t *testing.T) {
	one, two, three := 1, 2, 3
	assert.Equal(t, domain.OutcomeSuccess, zalopayOutcome(nil))
	assert.Equal(t, domain.OutcomeSuccess, zalopayOutcome(&one))
	assert.Equal(t, domain.OutcomeFailure, zalopayOutcome(&two))
	assert.Equal(t, domain.OutcomePending, zalopayOutcome(&three))
}

// The scheduler rebuilds notifications from stored payloads, so a stored
// payload must normalize exactly like the original.
func TestNormalize_MatchesStoredPayload(t *testing.T) {
	momo, err := ParseMoMo([]byte(momoBody))
	require.NoError(t, err)
	vnp, err := ParseVNPay(vnpParams())
	require.NoError(t, err)
	zalo, err := ParseZaloPay(zaloData, "mac", 1)
	require.NoError(t, err)

	for _, p := range []Payload{momo, vnp, zalo} {
		t.Run(string(p.Provider()), func(t *testing.T) {
			raw, err := Encode(p)
			require.NoError(t, err)

			want, err := p.Notification()
			require.NoError(t, err)
			got, err := Normalize(p.Provider(), raw)
			require.NoError(t, err)

			assert.Empty(t, cmp.Diff(want, got, cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })))

			decoded, err := Decode(p.Provider(), raw)
			require.NoError(t, err)
			assert.Equal(t, p.EventID(), decoded.EventID())
		})
	}
}

func TestDecode_UnknownProvider(t *testing.T) {
	_, err := Decode(domain.Provider("paypal"), []byte(`{}`))
	require.ErrorIs(t, err, domain.ErrUnknownProvider)
}
