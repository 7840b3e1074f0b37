package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/boostmarket/paywebhook/internal/domain"
	"github.com/boostmarket/paywebhook/internal/gateway"
	"github.com/boostmarket/paywebhook/internal/logging"
)

type vnpayResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// VNPay expects HTTP 200 for every answer; RspCode carries the result.
var vnpayEnvelopes = map[ingestResult]envelope{
	resultAccepted:     {http.StatusOK, vnpayResponse{RspCode: "00", Message: "success"}},
	resultBadSignature: {http.StatusOK, vnpayResponse{RspCode: "97", Message: "Invalid signature"}},
	resultOutOfWindow:  {http.StatusOK, vnpayResponse{RspCode: "97", Message: "Invalid request"}},
	resultMalformed:    {http.StatusOK, vnpayResponse{RspCode: "99", Message: "Invalid request"}},
	resultInternal:     {http.StatusOK, vnpayResponse{RspCode: "99", Message: "Unknown error"}},
}

// VNPay handles GET and POST /api/webhooks/vnpay. GET carries the IPN in the
// query string; POST may use a form body, the query string, or both.
func (h *WebhookHandler) VNPay(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, domain.ProviderVNPay, vnpayEnvelopes, func(ctx context.Context) ingestResult {
		log := logging.FromContext(ctx)

		params, err := vnpayParams(w, r)
		if err != nil {
			log.Warn("failed to read vnpay params", "error", err)
			return resultMalformed
		}

		if err := h.verifiers.VNPay.Verify(params); err != nil {
			logVerifyFailure(log.With("order_code", params.Get("vnp_TxnRef")), err)
			return resultBadSignature
		}

		p, err := gateway.ParseVNPay(params)
		if err != nil {
			log.Warn("invalid vnpay payload", "error", err)
			return resultMalformed
		}

		return h.ingest(ctx, p)
	})
}

func vnpayParams(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	if r.Method == http.MethodGet {
		return r.URL.Query(), nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return r.Form, nil
}
