package gateway

import "github.com/boostmarket/paywebhook/internal/domain"

// MoMo result codes that end a transaction without payment. Codes not listed
// here and not zero are treated as still in progress.
var momoFailureCodes = map[int64]struct{}{
	1001: {}, // insufficient balance
	1002: {}, // rejected by issuer
	1003: {}, // cancelled
	1004: {}, // over payment limit
	1005: {}, // url or QR expired
	1006: {}, // user denied confirmation
	1007: {}, // account inactive
	1017: {}, // cancelled by partner
	1026: {}, // restricted by promotion rules
	1080: {}, // refund attempt failed
	1081: {}, // refund rejected
	4001: {}, // account restricted
	4100: {}, // user login failed
}

func momoOutcome(resultCode int64) domain.Outcome {
	if resultCode == 0 {
		return domain.OutcomeSuccess
	}
	if _, ok := momoFailureCodes[resultCode]; ok {
		return domain.OutcomeFailure
	}
	return domain.OutcomePending
}

var vnpayFailureCodes = map[string]struct{}{
	"09": {}, // internet banking not registered
	"10": {}, // authentication failed 3 times
	"11": {}, // payment window expired
	"12": {}, // card or account locked
	"13": {}, // wrong OTP
	"24": {}, // cancelled by customer
	"51": {}, // insufficient balance
	"65": {}, // daily limit exceeded
	"75": {}, // bank under maintenance
	"79": {}, // wrong password too many times
}

func vnpayOutcome(responseCode, transactionStatus string) domain.Outcome {
	if transactionStatus == "02" {
		return domain.OutcomeFailure
	}
	if responseCode == "00" && (transactionStatus == "" || transactionStatus == "00") {
		return domain.OutcomeSuccess
	}
	if _, ok := vnpayFailureCodes[responseCode]; ok {
		return domain.OutcomeFailure
	}
	return domain.OutcomePending
}

// ZaloPay only calls back for paid orders, so a missing status means success.
func zalopayOutcome(status *int) domain.Outcome {
	if status == nil {
		return domain.OutcomeSuccess
	}
	switch *status {
	case 1:
		return domain.OutcomeSuccess
	case 2:
		return domain.OutcomeFailure
	default:
		return domain.OutcomePending
	}
}
