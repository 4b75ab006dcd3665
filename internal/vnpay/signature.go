// Package vnpay implements the canonical field encoding and HMAC-SHA512
// signing scheme required by the VNPay payment gateway. It is pure
// computation: no I/O, no clock, no shared state.
package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Gateway field names that take part in the wire contract.
const (
	FieldVersion           = "vnp_Version"
	FieldCommand           = "vnp_Command"
	FieldTmnCode           = "vnp_TmnCode"
	FieldAmount            = "vnp_Amount"
	FieldCurrCode          = "vnp_CurrCode"
	FieldTxnRef            = "vnp_TxnRef"
	FieldOrderInfo         = "vnp_OrderInfo"
	FieldOrderType         = "vnp_OrderType"
	FieldLocale            = "vnp_Locale"
	FieldReturnURL         = "vnp_ReturnUrl"
	FieldIPAddr            = "vnp_IpAddr"
	FieldCreateDate        = "vnp_CreateDate"
	FieldExpireDate        = "vnp_ExpireDate"
	FieldResponseCode      = "vnp_ResponseCode"
	FieldTransactionNo     = "vnp_TransactionNo"
	FieldTransactionStatus = "vnp_TransactionStatus"
	FieldPayDate           = "vnp_PayDate"
	FieldBankCode          = "vnp_BankCode"
	FieldSecureHash        = "vnp_SecureHash"
	FieldSecureHashType    = "vnp_SecureHashType"
)

// Field is one name/value pair of a request to be signed.
type Field struct {
	Name  string
	Value string
}

// SignedRequest is an ordered association list of gateway fields. One
// instance is built per request; nothing here is shared between goroutines.
type SignedRequest struct {
	fields []Field
}

func NewSignedRequest() *SignedRequest {
	return &SignedRequest{}
}

func (r *SignedRequest) Add(name, value string) *SignedRequest {
	r.fields = append(r.fields, Field{Name: name, Value: value})
	return r
}

// Fields returns a copy of the field list in insertion order.
func (r *SignedRequest) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Signer signs and verifies gateway field sets with a pre-shared secret.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign canonicalizes the request and returns the lowercase hex HMAC-SHA512
// together with the encoded query string (without the vnp_SecureHash pair).
// Hash input and query string are built in one pass over the sorted fields,
// both using the restrictive US-ASCII encoding the gateway signs against.
func (s *Signer) Sign(req *SignedRequest) (hash string, query string) {
	fields := canonicalFields(req.fields)

	var hashData strings.Builder
	var rawQuery strings.Builder
	for i, f := range fields {
		if i > 0 {
			hashData.WriteByte('&')
			rawQuery.WriteByte('&')
		}
		name := encodeASCII(f.Name)
		value := encodeASCII(f.Value)
		hashData.WriteString(name)
		hashData.WriteByte('=')
		hashData.WriteString(value)
		rawQuery.WriteString(name)
		rawQuery.WriteByte('=')
		rawQuery.WriteString(value)
	}

	return s.hmacHex(hashData.String()), rawQuery.String()
}

// VerifyIPN checks the signature of a server-to-server notification. The
// params map holds the already-decoded query parameters; every pair is
// re-encoded with the US-ASCII scheme before canonicalization because the
// gateway computed its MAC over the encoded form. Comparison is against the
// supplied vnp_SecureHash value, which is never re-encoded.
func (s *Signer) VerifyIPN(params map[string]string) bool {
	supplied, ok := params[FieldSecureHash]
	if !ok || supplied == "" {
		return false
	}

	fields := make([]Field, 0, len(params))
	for name, value := range params {
		fields = append(fields, Field{Name: encodeASCII(name), Value: encodeASCII(value)})
	}
	fields = canonicalFields(fields)

	var hashData strings.Builder
	for i, f := range fields {
		if i > 0 {
			hashData.WriteByte('&')
		}
		hashData.WriteString(f.Name)
		hashData.WriteByte('=')
		hashData.WriteString(f.Value)
	}

	expected := s.hmacHex(hashData.String())
	return subtle.ConstantTimeCompare([]byte(expected), []byte(supplied)) == 1
}

// VerifyReturn checks the signature of a browser return redirect. This path
// intentionally differs from VerifyIPN: values are re-encoded with standard
// UTF-8 URL encoding and joined in whatever order the parameter map yields,
// without a resort. The asymmetry matches the observed gateway integration
// and must not be unified without confirming the live contract for both
// callback types.
func (s *Signer) VerifyReturn(params map[string]string) bool {
	supplied, ok := params[FieldSecureHash]
	if !ok || supplied == "" {
		return false
	}

	var hashData strings.Builder
	first := true
	for name, value := range params {
		if name == FieldSecureHash || name == FieldSecureHashType {
			continue
		}
		if value == "" {
			continue
		}
		if !first {
			hashData.WriteByte('&')
		}
		first = false
		hashData.WriteString(url.QueryEscape(name))
		hashData.WriteByte('=')
		hashData.WriteString(url.QueryEscape(value))
	}

	expected := s.hmacHex(hashData.String())
	return subtle.ConstantTimeCompare([]byte(expected), []byte(supplied)) == 1
}

func (s *Signer) hmacHex(data string) string {
	mac := hmac.New(sha512.New, s.secret)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// canonicalFields drops the secure-hash pair and empty values, then sorts by
// field name in byte order.
func canonicalFields(fields []Field) []Field {
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if f.Name == FieldSecureHash || f.Name == FieldSecureHashType {
			continue
		}
		if f.Value == "" {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// encodeASCII percent-encodes a string the way java.net.URLEncoder does with
// the US-ASCII charset: alphanumerics and ".-*_" pass through, space becomes
// '+', remaining ASCII bytes become %XX, and anything outside ASCII collapses
// to the encoding of '?' (the charset's replacement character). The gateway
// signs over exactly this form.
func encodeASCII(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '*' || r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('+')
		case r < 0x80:
			b.WriteByte('%')
			b.WriteString(strings.ToUpper(hex.EncodeToString([]byte{byte(r)})))
		default:
			b.WriteString("%3F")
		}
	}
	return b.String()
}
