package verifier

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	ierr "github.com/sessionlab/billing/internal/errors"
)

// DefaultReplayWindow bounds how old a timestamped signature may be. Signed
// payloads captured on the wire become useless once the window passes.
const DefaultReplayWindow = 5 * time.Minute

// Verifier checks that a webhook delivery was produced by the provider that
// holds the shared signing secret. Implementations must be stateless and
// deterministic: a legitimately signed resubmission always verifies again.
type Verifier interface {
	// Verify checks the signature header against the exact raw request
	// body. The body must be the bytes as received, before any JSON
	// parsing, since signatures are computed over the wire representation.
	Verify(body []byte, signature string) error
}

// Scheme selects the verification strategy for a provider
type Scheme string

const (
	// SchemeHMAC is hex(HMAC-SHA256(secret, body)) over the raw body
	SchemeHMAC Scheme = "hmac"
	// SchemeTimestamped is the "t=...,v1=..." header form with a bounded
	// replay window and HMAC-SHA256(secret, "{t}.{body}")
	SchemeTimestamped Scheme = "timestamped"
	// SchemeNone performs no cryptographic check; see NoneVerifier
	SchemeNone Scheme = "none"
)

// New returns the verifier for a scheme. An empty secret returns a verifier
// that accepts everything: that is an explicit configuration opt-out for the
// provider, decided at construction time, never a fallback on error.
func New(scheme Scheme, secret string) Verifier {
	if secret == "" && scheme != SchemeNone {
		return &disabledVerifier{}
	}
	switch scheme {
	case SchemeTimestamped:
		return &TimestampedVerifier{
			secret:       []byte(secret),
			replayWindow: DefaultReplayWindow,
			now:          time.Now,
		}
	case SchemeNone:
		return &NoneVerifier{}
	default:
		return &HMACVerifier{secret: []byte(secret)}
	}
}

// HMACVerifier verifies hex(HMAC-SHA256(secret, body)) signatures computed
// over the raw request body. Used by providers that sign the body directly
// (Razorpay-style).
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

func (v *HMACVerifier) Verify(body []byte, signature string) error {
	if signature == "" {
		return ierr.NewError("missing webhook signature").
			WithHint("Webhook signature header is required").
			Mark(ierr.ErrSignatureInvalid)
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	// Constant-time comparison to defeat timing side channels
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ierr.NewError("webhook signature mismatch").
			WithHint("Invalid webhook signature").
			Mark(ierr.ErrSignatureInvalid)
	}
	return nil
}

// TimestampedVerifier verifies signatures of the form "t=<unix>,v1=<hex>"
// (Stripe-style): the timestamp must be within the replay window, and v1
// must equal hex(HMAC-SHA256(secret, "{t}.{body}")). Multiple v1 entries are
// accepted if any matches, which providers use during secret rotation.
type TimestampedVerifier struct {
	secret       []byte
	replayWindow time.Duration
	now          func() time.Time
}

func NewTimestampedVerifier(secret string, replayWindow time.Duration) *TimestampedVerifier {
	return &TimestampedVerifier{
		secret:       []byte(secret),
		replayWindow: replayWindow,
		now:          time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (v *TimestampedVerifier) WithClock(now func() time.Time) *TimestampedVerifier {
	v.now = now
	return v
}

func (v *TimestampedVerifier) Verify(body []byte, signature string) error {
	if signature == "" {
		return ierr.NewError("missing webhook signature").
			WithHint("Webhook signature header is required").
			Mark(ierr.ErrSignatureInvalid)
	}

	timestamp, candidates, err := parseSignatureHeader(signature)
	if err != nil {
		return err
	}

	age := v.now().Sub(time.Unix(timestamp, 0))
	if age < 0 {
		age = -age
	}
	if age > v.replayWindow {
		return ierr.NewError("webhook timestamp outside replay window").
			WithHint("Webhook signature timestamp is too old").
			WithReportableDetails(map[string]any{
				"age_seconds":    int64(age / time.Second),
				"window_seconds": int64(v.replayWindow / time.Second),
			}).
			Mark(ierr.ErrSignatureInvalid)
	}

	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			return nil
		}
	}
	return ierr.NewError("webhook signature mismatch").
		WithHint("Invalid webhook signature").
		Mark(ierr.ErrSignatureInvalid)
}

// parseSignatureHeader splits "t=1712239583,v1=abc...,v1=def..." into the
// timestamp and the v1 candidates.
func parseSignatureHeader(header string) (int64, []string, error) {
	var timestamp int64 = -1
	var candidates []string

	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, ierr.WithError(err).
					WithHint("Webhook signature timestamp is malformed").
					Mark(ierr.ErrSignatureInvalid)
			}
			timestamp = ts
		case "v1":
			candidates = append(candidates, value)
		}
	}

	if timestamp < 0 || len(candidates) == 0 {
		return 0, nil, ierr.NewError("malformed signature header").
			WithHint("Webhook signature header must contain t and v1 components").
			Mark(ierr.ErrSignatureInvalid)
	}
	return timestamp, candidates, nil
}

// NoneVerifier accepts every delivery without a cryptographic check. It
// exists only for providers that offer no signing facility (OAuth-only or
// challenge-response providers): such deliveries are "verified by
// construction" because their trust boundary is API authentication upstream
// of this layer. This is a deliberately weaker guarantee than the HMAC
// verifiers and must never be configured for a provider that can sign.
type NoneVerifier struct{}

func (v *NoneVerifier) Verify(body []byte, signature string) error {
	return nil
}

// disabledVerifier accepts everything because no secret is configured for
// the provider. Constructed by New only; the opt-out is logged at startup.
type disabledVerifier struct{}

func (v *disabledVerifier) Verify(body []byte, signature string) error {
	return nil
}
