package qrtoken

import (
	"encoding/base64"
	"strings"
)

// Tokens travel inside QR-code URLs, so the encoding is URL-safe base64 with
// the '=' padding stripped. Decoding restores the padding first because other
// token producers (the back-office QR generator) strip it the same way.

func b64urlEncode(b []byte) string {
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(b)
}

func b64urlDecode(s string) ([]byte, error) {
	if pad := len(s) % 4; pad != 0 {
		s += strings.Repeat("=", 4-pad)
	}
	return base64.URLEncoding.DecodeString(s)
}
