package handler

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/boostmarket/paywebhook/internal/domain"
	"github.com/boostmarket/paywebhook/internal/gateway"
	"github.com/boostmarket/paywebhook/internal/logging"
)

type zalopayResponse struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
}

// ZaloPay retries a callback while return_code is 0, so only internal errors
// use it.
var zalopayEnvelopes = map[ingestResult]envelope{
	resultAccepted:     {http.StatusOK, zalopayResponse{ReturnCode: 1, ReturnMessage: "success"}},
	resultBadSignature: {http.StatusOK, zalopayResponse{ReturnCode: -1, ReturnMessage: "mac not equal"}},
	resultOutOfWindow:  {http.StatusOK, zalopayResponse{ReturnCode: 1, ReturnMessage: "Invalid request"}},
	resultMalformed:    {http.StatusOK, zalopayResponse{ReturnCode: -1, ReturnMessage: "Invalid request"}},
	resultInternal:     {http.StatusOK, zalopayResponse{ReturnCode: 0, ReturnMessage: "Internal error"}},
}

// ZaloPay handles POST /api/webhooks/zalopay with a multipart or urlencoded
// form, or a JSON body.
func (h *WebhookHandler) ZaloPay(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, domain.ProviderZaloPay, zalopayEnvelopes, func(ctx context.Context) ingestResult {
		log := logging.FromContext(ctx)

		p, err := parseZaloPayRequest(w, r)
		if err != nil {
			log.Warn("invalid zalopay payload", "error", err)
			return resultMalformed
		}

		if err := h.verifiers.ZaloPay.Verify(p.Data, p.MAC); err != nil {
			logVerifyFailure(log.With("order_code", p.OrderCode()), err)
			return resultBadSignature
		}

		return h.ingest(ctx, p)
	})
}

func parseZaloPayRequest(w http.ResponseWriter, r *http.Request) (*gateway.ZaloPayPayload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)

	switch mediaType {
	case "application/json":
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		return gateway.ParseZaloPayJSON(body)
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxWebhookBody); err != nil {
			return nil, err
		}
	default:
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
	}

	typ := 1
	if v := r.PostFormValue("type"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		typ = n
	}
	return gateway.ParseZaloPay(r.PostFormValue("data"), r.PostFormValue("mac"), typ)
}
