package api

import (
	"errors"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

var (
	errMissingAuthorization = errors.New("missing authorization header")
	errBadAuthorization     = errors.New("bad auth header")
)

// Identity is the authenticated caller extracted from a verified token.
type Identity struct {
	ID       string
	FullName string
}

// Auth validates incoming JWT tokens. Two modes: HS256 with a shared secret
// (first-party sessions issued by this service), or RS256 against a remote
// JWKS when an external identity provider is configured.
type Auth struct {
	jwks     *keyfunc.JWKS
	secret   []byte
	audience string
	issuer   string
	parser   *jwt.Parser
}

// NewAuth creates an HS256 verifier that can also issue session tokens.
func NewAuth(secret []byte, issuer string) *Auth {
	return &Auth{
		secret: secret,
		issuer: issuer,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
	}
}

// NewJWKSAuth creates an RS256 verifier backed by a remote key set.
func NewJWKSAuth(jwks *keyfunc.JWKS, audience, issuer string) *Auth {
	return &Auth{
		jwks:     jwks,
		audience: audience,
		issuer:   issuer,
		parser:   jwt.NewParser(jwt.WithValidMethods([]string{"RS256"})),
	}
}

// Issue signs a session token for the user, HS256 mode only.
func (a *Auth) Issue(userID, fullName string, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("token issuing requires HS256 mode")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      userID,
		"fullName": fullName,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	}
	if a.issuer != "" {
		claims["iss"] = a.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// IdentityFromAuthHeader extracts the caller identity from an Authorization
// header of the form "Bearer <token>".
func (a *Auth) IdentityFromAuthHeader(h string) (Identity, error) {
	if h == "" {
		return Identity{}, errMissingAuthorization
	}
	parts := strings.SplitN(strings.TrimSpace(h), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return Identity{}, errBadAuthorization
	}
	return a.IdentityFromToken(parts[1])
}

// IdentityFromToken verifies a raw token string and extracts the identity.
func (a *Auth) IdentityFromToken(tokenStr string) (Identity, error) {
	var token *jwt.Token
	var err error
	if a.jwks != nil {
		token, err = a.parser.Parse(tokenStr, a.jwks.Keyfunc)
	} else {
		token, err = a.parser.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return a.secret, nil
		})
	}
	if err != nil {
		return Identity{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("invalid claims")
	}

	now := time.Now().Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return Identity{}, errors.New("token expired")
	}
	if !claims.VerifyNotBefore(now, false) {
		return Identity{}, errors.New("token not valid yet")
	}
	if a.audience != "" && !claims.VerifyAudience(a.audience, false) {
		return Identity{}, errors.New("invalid audience")
	}
	if a.issuer != "" && !claims.VerifyIssuer(a.issuer, false) {
		return Identity{}, errors.New("invalid issuer")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Identity{}, errors.New("missing sub")
	}

	id := Identity{ID: sub}
	if name, ok := claims["fullName"].(string); ok {
		id.FullName = name
	} else if name, ok := claims["name"].(string); ok {
		id.FullName = name
	}
	return id, nil
}
