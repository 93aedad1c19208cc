package przelewy24

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// CRCField is the reserved key the shared secret is signed under.
const CRCField = "crc"

// Field orderings mandated by the gateway. Both end with the secret.
var (
	RegisterSignFields = []string{"p24_session_id", "p24_merchant_id", "p24_amount", "p24_currency", CRCField}
	StatusSignFields   = []string{"p24_session_id", "p24_order_id", "p24_amount", "p24_currency", CRCField}
)

// Sign joins the values of fields with "|" and returns the hex MD5 of the
// result. A field absent from values contributes an empty string. values is
// not modified.
func Sign(fields []string, values map[string]string, secret string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		if f == CRCField {
			parts[i] = secret
			continue
		}
		parts[i] = values[f]
	}
	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether provided is the signature of values over fields.
func Verify(fields []string, values map[string]string, secret, provided string) bool {
	expected := Sign(fields, values, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}
