// Command mock-provider plays the part of a payment gateway: it sends signed
// MoMo, VNPay and ZaloPay callbacks to a running API.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	env "github.com/caarlos0/env/v11"
	go_json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/boostmarket/paywebhook/internal/gateway"
	"github.com/boostmarket/paywebhook/internal/signature"
)

type secrets struct {
	MoMoAccessKey   string `env:"MOMO_ACCESS_KEY"`
	MoMoSecretKey   string `env:"MOMO_SECRET_KEY"`
	VNPayHashSecret string `env:"VNPAY_HASH_SECRET"`
	ZaloPayKey2     string `env:"ZALOPAY_KEY2"`
}

type options struct {
	target  string
	order   string
	amount  int64
	txnID   int64
	result  string
	repeat  int
	age     time.Duration
	tamper  bool
	secrets secrets
}

// callback builds one gateway request for o.
type callback func(ctx context.Context, o *options) (*http.Request, error)

func main() {
	o := &options{}

	rootCmd := &cobra.Command{
		Use:           "mock-provider",
		Short:         "Send signed gateway callbacks to the webhook API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			s, err := env.ParseAs[secrets]()
			if err != nil {
				return err
			}
			o.secrets = s
			if o.txnID == 0 {
				o.txnID = time.Now().UnixMilli() % 1_000_000_000
			}
			return nil
		},
	}

	f := rootCmd.PersistentFlags()
	f.StringVar(&o.target, "target", "http://localhost:8080", "API base URL")
	f.StringVar(&o.order, "order", "", "booking order code")
	f.Int64Var(&o.amount, "amount", 0, "amount in VND")
	f.Int64Var(&o.txnID, "txn", 0, "gateway transaction id (random by default)")
	f.StringVar(&o.result, "result", "", "gateway result code (success by default)")
	f.IntVar(&o.repeat, "repeat", 1, "send the identical callback this many times")
	f.DurationVar(&o.age, "age", 0, "backdate the gateway timestamp, e.g. 10m")
	f.BoolVar(&o.tamper, "tamper", false, "change the amount after signing")
	_ = rootCmd.MarkPersistentFlagRequired("order")
	_ = rootCmd.MarkPersistentFlagRequired("amount")

	rootCmd.AddCommand(
		sendCmd("momo", o, momoCallback),
		sendCmd("vnpay", o, vnpayCallback),
		sendCmd("zalopay", o, zalopayCallback),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func sendCmd(provider string, o *options, build callback) *cobra.Command {
	return &cobra.Command{
		Use:   provider,
		Short: "Send a " + provider + " callback",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: 10 * time.Second}
			for i := range o.repeat {
				req, err := build(cmd.Context(), o)
				if err != nil {
					return err
				}
				resp, err := client.Do(req)
				if err != nil {
					return fmt.Errorf("send %s callback: %w", provider, err)
				}
				body, _ := io.ReadAll(resp.Body)
				resp.Body.Close()
				fmt.Fprintf(cmd.OutOrStdout(), "#%d %s %s\n", i+1, resp.Status, strings.TrimSpace(string(body)))
			}
			return nil
		},
	}
}

func (o *options) timestamp() time.Time { return time.Now().Add(-o.age) }

func momoCallback(ctx context.Context, o *options) (*http.Request, error) {
	code := int64(0)
	if o.result != "" {
		n, err := strconv.ParseInt(o.result, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("momo result code: %w", err)
		}
		code = n
	}

	p := gateway.MoMoPayload{
		PartnerCode:  "MOMO",
		OrderID:      o.order,
		RequestID:    fmt.Sprintf("%s-%d", o.order, o.txnID),
		Amount:       o.amount,
		OrderInfo:    "Booking " + o.order,
		OrderType:    "momo_wallet",
		TransID:      o.txnID,
		ResultCode:   code,
		Message:      "mock",
		PayType:      "qr",
		ResponseTime: o.timestamp().UnixMilli(),
	}
	p.Signature = signature.NewMoMo(o.secrets.MoMoAccessKey, o.secrets.MoMoSecretKey).Sign(p.SignatureFields())
	if o.tamper {
		p.Amount++
	}

	body, err := go_json.Marshal(p)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.target+"/api/webhooks/momo", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func vnpayCallback(ctx context.Context, o *options) (*http.Request, error) {
	code := o.result
	if code == "" {
		code = "00"
	}

	params := url.Values{
		"vnp_Amount":            {strconv.FormatInt(o.amount*100, 10)},
		"vnp_BankCode":          {"NCB"},
		"vnp_OrderInfo":         {"Thanh toan " + o.order},
		"vnp_PayDate":           {o.timestamp().In(time.FixedZone("ICT", 7*3600)).Format("20060102150405")},
		"vnp_ResponseCode":      {code},
		"vnp_TmnCode":           {"MOCKTMN"},
		"vnp_TransactionNo":     {strconv.FormatInt(o.txnID, 10)},
		"vnp_TransactionStatus": {code},
		"vnp_TxnRef":            {o.order},
	}
	params.Set("vnp_SecureHash", signature.NewVNPay(o.secrets.VNPayHashSecret).Sign(params))
	if o.tamper {
		params.Set("vnp_Amount", strconv.FormatInt((o.amount+1)*100, 10))
	}

	return http.NewRequestWithContext(ctx, http.MethodGet, o.target+"/api/webhooks/vnpay?"+params.Encode(), nil)
}

func zalopayCallback(ctx context.Context, o *options) (*http.Request, error) {
	ts := o.timestamp().UnixMilli()
	data := gateway.ZaloPayData{
		AppID:      2553,
		AppTransID: time.Now().Format("060102") + "_" + o.order,
		AppTime:    ts,
		AppUser:    "mock",
		Amount:     o.amount,
		EmbedData:  "{}",
		Item:       "[]",
		ZPTransID:  o.txnID,
		ServerTime: ts,
		Channel:    38,
	}
	if o.result != "" {
		n, err := strconv.Atoi(o.result)
		if err != nil {
			return nil, fmt.Errorf("zalopay status: %w", err)
		}
		data.Status = &n
	}

	raw, err := go_json.Marshal(data)
	if err != nil {
		return nil, err
	}
	mac := signature.NewZaloPay(o.secrets.ZaloPayKey2).Sign(string(raw))
	if o.tamper {
		data.Amount++
		if raw, err = go_json.Marshal(data); err != nil {
			return nil, err
		}
	}

	form := url.Values{"data": {string(raw)}, "mac": {mac}, "type": {"1"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.target+"/api/webhooks/zalopay", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}
