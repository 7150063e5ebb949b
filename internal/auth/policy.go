package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Policy lists the claims an access token must satisfy beyond its signature.
type Policy struct {
	Issuer    string
	Audience  string
	Algorithm jwa.SignatureAlgorithm
	Leeway    time.Duration
}

// Check validates tok as signed with alg at instant now. The subject is
// always required since it carries the user id.
func (p Policy) Check(tok jwt.Token, alg jwa.SignatureAlgorithm, now time.Time) error {
	if tok == nil {
		return errors.New("auth: token is nil")
	}
	if p.Algorithm != "" && alg != p.Algorithm {
		return fmt.Errorf("auth: algorithm %q not accepted", alg)
	}

	opts := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithAcceptableSkew(p.Leeway),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
	}
	if p.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.Issuer))
	}
	if p.Audience != "" {
		opts = append(opts, jwt.WithAudience(p.Audience))
	}
	if err := jwt.Validate(tok, opts...); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if strings.TrimSpace(tok.Subject()) == "" {
		return errors.New("auth: token has no subject")
	}
	return nil
}
