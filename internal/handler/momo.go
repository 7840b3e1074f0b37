package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/boostmarket/paywebhook/internal/domain"
	"github.com/boostmarket/paywebhook/internal/gateway"
	"github.com/boostmarket/paywebhook/internal/logging"
)

type momoResponse struct {
	Message    string `json:"message"`
	ResultCode *int   `json:"resultCode,omitempty"`
}

func momoCode(c int) *int { return &c }

var momoEnvelopes = map[ingestResult]envelope{
	resultAccepted:     {http.StatusOK, momoResponse{Message: "Webhook received", ResultCode: momoCode(0)}},
	resultBadSignature: {http.StatusBadRequest, momoResponse{Message: "Invalid signature"}},
	resultOutOfWindow:  {http.StatusBadRequest, momoResponse{Message: "Invalid request"}},
	resultMalformed:    {http.StatusBadRequest, momoResponse{Message: "Invalid request"}},
	resultInternal:     {http.StatusInternalServerError, momoResponse{Message: "Internal server error", ResultCode: momoCode(99)}},
}

// MoMo handles POST /api/webhooks/momo.
func (h *WebhookHandler) MoMo(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, domain.ProviderMoMo, momoEnvelopes, func(ctx context.Context) ingestResult {
		log := logging.FromContext(ctx)

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			log.Warn("failed to read webhook body", "error", err)
			return resultMalformed
		}

		p, err := gateway.ParseMoMo(body)
		if err != nil {
			log.Warn("invalid momo payload", "error", err)
			return resultMalformed
		}

		if err := h.verifiers.MoMo.Verify(p.SignatureFields(), p.Signature); err != nil {
			logVerifyFailure(log.With("order_code", p.OrderID), err)
			return resultBadSignature
		}

		return h.ingest(ctx, p)
	})
}
