package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

type claims struct {
	iss, sub  string
	nbf, exp  time.Time
	noExpires bool
}

func (c claims) token(t *testing.T) jwt.Token {
	t.Helper()
	b := jwt.NewBuilder().Issuer(c.iss).Audience([]string{"checkout"}).NotBefore(c.nbf)
	if !c.noExpires {
		b = b.Expiration(c.exp)
	}
	if c.sub != "" {
		b = b.Subject(c.sub)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	return tok
}

func TestPolicyCheck(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	policy := Policy{Issuer: "toko", Audience: "checkout", Algorithm: jwa.HS256, Leeway: time.Second}
	valid := claims{iss: "toko", sub: "u1", nbf: now, exp: now.Add(time.Minute)}

	require.NoError(t, policy.Check(valid.token(t), jwa.HS256, now))

	cases := map[string]struct {
		c   claims
		alg jwa.SignatureAlgorithm
	}{
		"issuer mismatch": {claims{iss: "other", sub: "u1", nbf: now, exp: now.Add(time.Minute)}, jwa.HS256},
		"expired":         {claims{iss: "toko", sub: "u1", nbf: now.Add(-time.Hour), exp: now.Add(-time.Minute)}, jwa.HS256},
		"not yet valid":   {claims{iss: "toko", sub: "u1", nbf: now.Add(5 * time.Minute), exp: now.Add(10 * time.Minute)}, jwa.HS256},
		"no expiry":       {claims{iss: "toko", sub: "u1", nbf: now, noExpires: true}, jwa.HS256},
		"no subject":      {claims{iss: "toko", nbf: now, exp: now.Add(time.Minute)}, jwa.HS256},
		"algorithm":       {valid, jwa.HS512},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, policy.Check(tc.c.token(t), tc.alg, now))
		})
	}
}
