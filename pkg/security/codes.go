package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	pkgerrors "github.com/avrportal/tindago-backend/pkg/errors"
)

const (
	// ArrivalCodeMinDigits and ArrivalCodeMaxDigits bound the pickup
	// verification codes shown to staff at handover.
	ArrivalCodeMinDigits = 4
	ArrivalCodeMaxDigits = 6

	orderNumberPrefix      = "TD-"
	orderNumberRandomBytes = 4
)

// GenerateArrivalCode returns a numeric code of the given number of digits,
// drawn from a cryptographic source. Leading zeros are preserved.
func GenerateArrivalCode(digits int) (string, error) {
	if digits < ArrivalCodeMinDigits || digits > ArrivalCodeMaxDigits {
		return "", pkgerrors.New(pkgerrors.CodeInternal,
			fmt.Sprintf("arrival code length %d out of range", digits))
	}

	var builder strings.Builder
	builder.Grow(digits)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read random digit")
		}
		builder.WriteByte(byte('0' + n.Int64()))
	}
	return builder.String(), nil
}

// GenerateOrderNumber returns a short human-readable order reference such as
// TD-9F3A01BC. Uniqueness is enforced by the database; callers retry on
// collision.
func GenerateOrderNumber() (string, error) {
	buf := make([]byte, orderNumberRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read random order number")
	}
	return orderNumberPrefix + strings.ToUpper(hex.EncodeToString(buf)), nil
}
