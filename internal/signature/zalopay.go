package signature

type ZaloPay struct {
	key2 string
}

func NewZaloPay(key2 string) *ZaloPay {
	return &ZaloPay{key2: key2}
}

// Sign computes the callback MAC over the raw data string, byte for byte.
func (v *ZaloPay) Sign(data string) string {
	return hmacSHA256(v.key2, []byte(data))
}

func (v *ZaloPay) Verify(data, mac string) error {
	return compare(v.Sign(data), mac)
}
