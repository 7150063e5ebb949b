package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/toko-rewards/internal/common"
)

// CodeUnauthorized is returned for missing or rejected credentials.
const CodeUnauthorized = "UNAUTHORIZED"

// Verifier checks HS256 access tokens minted by the identity service.
type Verifier struct {
	secret []byte
	policy Policy
	now    func() time.Time
}

// NewVerifier builds a verifier for tokens signed with secret.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	return &Verifier{
		secret: []byte(secret),
		policy: Policy{Issuer: issuer, Algorithm: jwa.HS256, Leeway: 30 * time.Second},
		now:    time.Now,
	}, nil
}

// ParseAccessToken verifies token and returns the user id in its subject.
func (v *Verifier) ParseAccessToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", unauthorized(errNoToken)
	}
	alg, err := headerAlgorithm(token)
	if err != nil {
		return "", unauthorized(err)
	}
	if alg != v.policy.Algorithm {
		return "", unauthorized(fmt.Errorf("auth: algorithm %q not accepted", alg))
	}
	parsed, err := jwt.ParseString(token, jwt.WithKey(alg, v.secret), jwt.WithValidate(false))
	if err != nil {
		return "", unauthorized(err)
	}
	if err := v.policy.Check(parsed, alg, v.now()); err != nil {
		return "", unauthorized(err)
	}
	return parsed.Subject(), nil
}

func unauthorized(err error) error {
	return common.NewAppError(CodeUnauthorized, "missing or invalid token", http.StatusUnauthorized, err)
}

// headerAlgorithm reads the signing algorithm from the single JWS signature
// so the key is never tried against an algorithm the caller picked.
func headerAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	msg, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	sigs := msg.Signatures()
	if len(sigs) != 1 {
		return "", fmt.Errorf("auth: expected one signature, got %d", len(sigs))
	}
	headers := sigs[0].ProtectedHeaders()
	if headers == nil {
		return "", errors.New("auth: token has no protected header")
	}
	alg := headers.Algorithm()
	if alg == "" || alg == jwa.NoSignature {
		return "", fmt.Errorf("auth: algorithm %q not accepted", alg)
	}
	return alg, nil
}
