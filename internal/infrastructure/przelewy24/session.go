package przelewy24

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const sessionDelimiter = ":"

var ErrInvalidSession = errors.New("invalid p24 session id")

// NewSessionID builds "<payment id>:<backend>:<token>". The token only has to
// differ between registrations of the same payment.
func NewSessionID(paymentID uuid.UUID, backend string, now time.Time) string {
	return strings.Join([]string{
		paymentID.String(),
		backend,
		strconv.FormatInt(now.UnixNano(), 10),
	}, sessionDelimiter)
}

// SessionPaymentID returns the first delimited segment of a session id.
func SessionPaymentID(sessionID string) string {
	id, _, _ := strings.Cut(sessionID, sessionDelimiter)
	return id
}

// ParseSessionPaymentID recovers the payment id embedded in a session id.
func ParseSessionPaymentID(sessionID string) (uuid.UUID, error) {
	raw := SessionPaymentID(sessionID)
	if raw == "" {
		return uuid.Nil, ErrInvalidSession
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.Join(ErrInvalidSession, err)
	}
	return id, nil
}
