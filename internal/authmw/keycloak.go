package authmw

import (
	"context"
	"fmt"
	"log"
	"time"

	"kyri56xcaesar/nexushub/internal/domain/errors"

	"github.com/Nerzal/gocloak/v13"
)

// Service talks to Keycloak for federated sign-in.
type Service struct {
	Client       *gocloak.GoCloak
	Realm        string
	clientID     string
	clientSecret string

	KCAuth *KeycloakAuth
}

func NewService(baseURL, realm, clientID, issuer, aud, clientSecret string) (*Service, error) {
	client := gocloak.NewClient("http://" + baseURL)

	kcAuth, err := NewKeycloakAuth(
		fmt.Sprintf(
			"http://%s/realms/%s/protocol/openid-connect/certs",
			baseURL,
			realm,
		),
		issuer,
		aud,
	)
	if err != nil {
		log.Printf("[ERROR] failed to instantiate the kc authenticator: %v", err)

		return nil, err
	}

	s := &Service{
		Client:       client,
		Realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		KCAuth:       kcAuth,
	}

	if err := s.selfTest(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) selfTest() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	jwt, err := s.Client.LoginClient(
		ctx,
		s.clientID,
		s.clientSecret,
		s.Realm,
	)
	if err != nil {
		return fmt.Errorf("keycloak auth failed: %w", err)
	}

	_, err = s.Client.GetRealm(ctx, jwt.AccessToken, s.Realm)
	if err != nil {
		return fmt.Errorf("keycloak permission check failed: %w", err)
	}

	return nil
}

func (s *Service) LoginUser(
	ctx context.Context,
	username, password string,
) (*gocloak.JWT, error) {

	return s.Client.Login(
		ctx,
		s.clientID,
		s.clientSecret,
		s.Realm,
		username,
		password,
	)
}

// Authenticate runs the password grant and verifies the returned access
// token, yielding the federated identity.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	tok, err := s.LoginUser(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidCredentials, err)
	}
	return s.KCAuth.Verify(tok.AccessToken)
}
