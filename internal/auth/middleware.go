package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const subjectKey contextKey = "authSubject"

var (
	errNoCredentials = errors.New("authorization header required")
	errBadHeader     = errors.New("invalid authorization header")
	errNoSubject     = errors.New("missing subject")
)

// Claims are the token claims accepted by the service.
type Claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// HasScope reports whether the space separated scope claim contains scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range strings.Fields(c.Scope) {
		if s == scope {
			return true
		}
	}
	return false
}

// GetSubject retrieves the authenticated subject from context.
func GetSubject(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(subjectKey).(string)
	return value, ok && value != ""
}

// Authenticator verifies HMAC signed bearer tokens.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewAuthenticator builds an Authenticator. An empty audience disables the audience check.
func NewAuthenticator(secret, audience string) *Authenticator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if audience = strings.TrimSpace(audience); audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &Authenticator{
		secret: []byte(strings.TrimSpace(secret)),
		parser: jwt.NewParser(opts...),
	}
}

// Authenticate parses the Authorization header value and returns the verified claims.
func (a *Authenticator) Authenticate(header string) (*Claims, error) {
	if len(a.secret) == 0 {
		return nil, errors.New("missing JWT secret")
	}
	raw, err := bearerToken(header)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	if _, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errNoSubject
	}
	return claims, nil
}

// Middleware rejects requests without a valid token (401) or without scope (403).
func (a *Authenticator) Middleware(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := a.Authenticate(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED", "message": unauthorizedMessage(err)})
			return
		}
		if scope != "" && !claims.HasScope(scope) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "FORBIDDEN", "message": "missing scope " + scope})
			return
		}

		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), subjectKey, claims.Subject))
		c.Set(string(subjectKey), claims.Subject)
		c.Next()
	}
}

// JWTMiddleware is shorthand for NewAuthenticator(secret, audience).Middleware(scope).
func JWTMiddleware(secret, audience, scope string) gin.HandlerFunc {
	return NewAuthenticator(secret, audience).Middleware(scope)
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errNoCredentials
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errBadHeader
	}
	return strings.TrimSpace(token), nil
}

// unauthorizedMessage hides parser internals behind a stable message.
func unauthorizedMessage(err error) string {
	switch {
	case errors.Is(err, errNoCredentials), errors.Is(err, errBadHeader), errors.Is(err, errNoSubject):
		return err.Error()
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return "invalid audience"
	default:
		return "invalid token"
	}
}
