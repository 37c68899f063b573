package authmw

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"kyri56xcaesar/nexushub/internal/domain/errors"
	"kyri56xcaesar/nexushub/internal/domain/models"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ctxActorID  = "actor.id"
	ctxIdentity = "actor.identity"
)

// Identity is what a verified token says about its bearer.
type Identity struct {
	Subject       string
	Provider      string // empty for locally issued tokens
	Username      string
	Email         string
	EmailVerified bool
	FullName      string
}

type Verifier interface {
	Verify(token string) (*Identity, error)
}

// Resolver maps a verified identity onto a local user id.
type Resolver interface {
	ResolveActor(ctx context.Context, id *Identity) (string, error)
}

// Chain tries each verifier in turn and returns the first success.
type Chain []Verifier

func (ch Chain) Verify(token string) (*Identity, error) {
	var lastErr error = errors.ErrInvalidToken
	for _, v := range ch {
		if v == nil {
			continue
		}
		id, err := v.Verify(token)
		if err == nil {
			return id, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// Authenticate rejects requests without a valid bearer credential and
// stores the resolved actor id for the handlers.
func Authenticate(v Verifier, r Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := extractAccessToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": err.Error()})
			return
		}

		ident, err := v.Verify(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid token"})
			return
		}

		actorID, err := r.ResolveActor(c.Request.Context(), ident)
		if err != nil {
			if stderrors.Is(err, errors.ErrNotFound) || stderrors.Is(err, errors.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "account no longer exists"})
				return
			}
			log.Printf("[ERROR] resolving actor %s/%s: %v", ident.Provider, ident.Subject, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": errors.ErrInternalServer.Error()})
			return
		}

		c.Set(ctxActorID, actorID)
		c.Set(ctxIdentity, ident)
		c.Next()
	}
}

// ActorID returns the authenticated user id, or "" outside Authenticate.
func ActorID(c *gin.Context) string {
	return c.GetString(ctxActorID)
}

// IdentityOf returns what the bearer token said about the actor, or nil
// outside Authenticate.
func IdentityOf(c *gin.Context) *Identity {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return nil
	}
	id, _ := v.(*Identity)
	return id
}

type KeycloakAuth struct {
	Issuer   string // e.g. http://localhost:8080/realms/myrealm
	Audience string

	Keyfunc jwt.Keyfunc
	Leeway  time.Duration
}

// NewKeycloakAuth fetches the realm JWKS once; keyfunc refreshes it in the
// background.
func NewKeycloakAuth(jwksURL, issuer, audience string) (*KeycloakAuth, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:  time.Hour,
		RefreshRateLimit: time.Minute * 5,
		RefreshTimeout:   time.Second * 10,
	})
	if err != nil {
		return nil, err
	}

	return &KeycloakAuth{
		Issuer:   issuer,
		Audience: audience,
		Keyfunc:  jwks.Keyfunc,
		Leeway:   30 * time.Second,
	}, nil
}

type KCClaims struct {
	jwt.RegisteredClaims

	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	EmailVerified     bool   `json:"email_verified"`
	Name              string `json:"name"`
}

func (a *KeycloakAuth) Verify(tokenStr string) (*Identity, error) {
	claims := &KCClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, a.Keyfunc,
		jwt.WithIssuer(a.Issuer),
		jwt.WithAudience(a.Audience),
		jwt.WithLeeway(a.Leeway),
		jwt.WithValidMethods([]string{"RS256"}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", errors.ErrInvalidToken)
	}

	return &Identity{
		Subject:       claims.Subject,
		Provider:      models.ProviderKeycloak,
		Username:      claims.PreferredUsername,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		FullName:      claims.Name,
	}, nil
}

// --- helpers ---

func extractAccessToken(c *gin.Context) (string, error) {
	// 1) Authorization: Bearer <token>
	authz := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		if tok := strings.TrimSpace(authz[7:]); tok != "" {
			return tok, nil
		}
	}

	// 2) cookie fallback
	if cookie, err := c.Cookie("access_token"); err == nil && cookie != "" {
		return cookie, nil
	}

	return "", stderrors.New("missing access token")
}
