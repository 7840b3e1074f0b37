// Package signature verifies the HMAC schemes used by the MoMo, VNPay and
// ZaloPay callbacks. Every mismatch is reported as domain.ErrInvalidSignature
// with no further detail.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"strings"

	"github.com/boostmarket/paywebhook/internal/domain"
)

type Secrets struct {
	MoMoAccessKey   string
	MoMoSecretKey   string
	VNPayHashSecret string
	ZaloPayKey2     string
}

// Set holds one verifier per provider.
type Set struct {
	MoMo    *MoMo
	VNPay   *VNPay
	ZaloPay *ZaloPay
}

func NewSet(s Secrets) *Set {
	return &Set{
		MoMo:    NewMoMo(s.MoMoAccessKey, s.MoMoSecretKey),
		VNPay:   NewVNPay(s.VNPayHashSecret),
		ZaloPay: NewZaloPay(s.ZaloPayKey2),
	}
}

func sign(newHash func() hash.Hash, secret string, msg []byte) string {
	mac := hmac.New(newHash, []byte(secret))
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}

func hmacSHA256(secret string, msg []byte) string { return sign(sha256.New, secret, msg) }

func hmacSHA512(secret string, msg []byte) string { return sign(sha512.New, secret, msg) }

// compare runs in constant time for equal-length inputs. An empty supplied
// signature never matches.
func compare(expected, supplied string) error {
	if supplied == "" {
		return domain.ErrInvalidSignature
	}
	if !hmac.Equal([]byte(expected), []byte(supplied)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

func compareFold(expected, supplied string) error {
	return compare(strings.ToLower(expected), strings.ToLower(supplied))
}
