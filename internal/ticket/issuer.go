// Package ticket issues and verifies registration tickets. The payload is a
// signed token re-derivable from the registration record; the QR artifact is
// derived from the payload and is disposable.
package ticket

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/robertarktes/event-admissions/internal/domain"
)

const qrSize = 256

// Claims is the ticket payload: registration code, event, participant and
// issuance time, all signed so a scanned payload cannot be forged.
type Claims struct {
	EventID       uuid.UUID `json:"evt"`
	ParticipantID uuid.UUID `json:"prt"`
	jwt.RegisteredClaims
}

// Code returns the registration code the payload was issued for.
func (c *Claims) Code() string { return c.ID }

type Issuer struct {
	signingKey []byte

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewIssuer(signingKey []byte) *Issuer {
	return &Issuer{
		signingKey: signingKey,
		entropy:    ulid.Monotonic(rand.Reader, 0),
	}
}

// Issue generates a registration code and its signed payload, then renders
// the QR artifact. A render failure leaves Artifact nil and is not an
// error: the payload alone is valid proof of registration.
func (i *Issuer) Issue(eventID, participantID uuid.UUID, now time.Time) (domain.Ticket, error) {
	code, err := i.newCode(now)
	if err != nil {
		return domain.Ticket{}, errors.Wrap(err, "generate registration code")
	}

	payload, err := i.Sign(code, eventID, participantID, now)
	if err != nil {
		return domain.Ticket{}, errors.Wrap(err, "sign ticket payload")
	}

	artifact, err := Render(payload)
	if err != nil {
		artifact = nil
	}

	return domain.Ticket{
		Code:     code,
		Payload:  payload,
		Artifact: artifact,
		IssuedAt: now,
	}, nil
}

// Sign produces the payload for a registration. It is deterministic for a
// given key and inputs, so a lost payload can be re-derived from the
// stored registration record.
func (i *Issuer) Sign(code string, eventID, participantID uuid.UUID, issuedAt time.Time) (string, error) {
	claims := Claims{
		EventID:       eventID,
		ParticipantID: participantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       code,
			Subject:  participantID.String(),
			IssuedAt: jwt.NewNumericDate(issuedAt.Truncate(time.Second)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingKey)
}

// Verify checks a scanned payload's signature and returns its claims.
func (i *Issuer) Verify(payload string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(payload, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Newf("unexpected signing method %v", t.Header["alg"])
		}
		return i.signingKey, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "verify ticket payload")
	}
	return &claims, nil
}

// Render produces the scannable PNG for a payload. Pure local computation;
// callers may retry at any time from the stored payload.
func Render(payload string) ([]byte, error) {
	return qrcode.Encode(payload, qrcode.Medium, qrSize)
}

func (i *Issuer) newCode(now time.Time) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(now), i.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
