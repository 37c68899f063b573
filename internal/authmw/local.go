package authmw

import (
	"fmt"
	"time"

	"kyri56xcaesar/nexushub/internal/domain/errors"

	"github.com/golang-jwt/jwt/v5"
)

const localIssuer = "nexushub"

type LocalClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// IssueToken signs an HS256 token whose subject is the local user id.
func IssueToken(secret []byte, userID, username string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("%w: empty signing secret", errors.ErrInternalServer)
	}
	now := time.Now()
	claims := LocalClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    localIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username: username,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

type LocalVerifier struct {
	secret []byte
}

func NewLocalVerifier(secret []byte) *LocalVerifier {
	return &LocalVerifier{secret: secret}
}

func (v *LocalVerifier) Verify(tokenStr string) (*Identity, error) {
	claims := &LocalClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithIssuer(localIssuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", errors.ErrInvalidToken)
	}
	return &Identity{Subject: claims.Subject, Username: claims.Username}, nil
}
