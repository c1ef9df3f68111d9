package ticket

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestIssue(t *testing.T) {
	issuer := NewIssuer(testKey)
	eventID := uuid.New()
	participantID := uuid.New()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	tkt, err := issuer.Issue(eventID, participantID, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(tkt.Code) != 26 {
		t.Errorf("code %q is not a 26-char ULID", tkt.Code)
	}
	if tkt.Payload == "" {
		t.Error("empty payload")
	}
	if len(tkt.Artifact) == 0 {
		t.Error("expected rendered artifact")
	}
	if !tkt.IssuedAt.Equal(now) {
		t.Errorf("issued at %v, want %v", tkt.IssuedAt, now)
	}

	claims, err := issuer.Verify(tkt.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Code() != tkt.Code {
		t.Errorf("payload code %q, want %q", claims.Code(), tkt.Code)
	}
	if claims.EventID != eventID || claims.ParticipantID != participantID {
		t.Errorf("payload ids do not round-trip: %+v", claims)
	}
}

func TestIssue_CodesUniqueAndSortable(t *testing.T) {
	issuer := NewIssuer(testKey)
	eventID := uuid.New()
	now := time.Now()

	seen := make(map[string]bool)
	var prev string
	for i := 0; i < 1000; i++ {
		tkt, err := issuer.Issue(eventID, uuid.New(), now)
		if err != nil {
			t.Fatal(err)
		}
		if seen[tkt.Code] {
			t.Fatalf("duplicate code %s after %d issues", tkt.Code, i)
		}
		seen[tkt.Code] = true
		if prev != "" && tkt.Code <= prev {
			t.Fatalf("codes not monotonic at fixed timestamp: %s after %s", tkt.Code, prev)
		}
		prev = tkt.Code
	}
}

func TestSign_Rederivable(t *testing.T) {
	issuer := NewIssuer(testKey)
	eventID := uuid.New()
	participantID := uuid.New()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	tkt, err := issuer.Issue(eventID, participantID, now)
	if err != nil {
		t.Fatal(err)
	}

	rederived, err := issuer.Sign(tkt.Code, eventID, participantID, tkt.IssuedAt)
	if err != nil {
		t.Fatal(err)
	}
	if rederived != tkt.Payload {
		t.Error("re-derived payload differs from issued payload")
	}
}

func TestVerify_RejectsTamperedPayload(t *testing.T) {
	issuer := NewIssuer(testKey)
	tkt, err := issuer.Issue(uuid.New(), uuid.New(), time.Now())
	if err != nil {
		t.Fatal(err)
	}

	parts := strings.Split(tkt.Payload, ".")
	if len(parts) != 3 {
		t.Fatalf("payload is not a compact token: %q", tkt.Payload)
	}
	tampered := parts[0] + "." + parts[1] + "." + "AAAA" + parts[2][4:]
	if _, err := issuer.Verify(tampered); err == nil {
		t.Fatal("tampered payload verified")
	}

	other := NewIssuer([]byte("another-key-entirely-yes-really!"))
	if _, err := other.Verify(tkt.Payload); err == nil {
		t.Fatal("payload verified under a different key")
	}
}

func TestIssue_RenderFailureNotFatal(t *testing.T) {
	// QR capacity at medium correction tops out under 3KB; an oversized
	// payload cannot render but issuance must still succeed.
	issuer := NewIssuer(testKey)
	big := strings.Repeat("x", 4000)
	if _, err := Render(big); err == nil {
		t.Skip("render unexpectedly succeeded; capacity assumption no longer holds")
	}

	tkt, err := issuer.Issue(uuid.New(), uuid.New(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if tkt.Payload == "" {
		t.Fatal("payload missing")
	}
}
