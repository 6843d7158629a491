package middlewares

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	oidcV3 "github.com/coreos/go-oidc/v3/oidc"
	gin "github.com/gin-gonic/gin"
	config "github.com/inference-gateway/menu-agents/server/config"
	types "github.com/inference-gateway/menu-agents/types"
	zap "go.uber.org/zap"
	oauth2 "golang.org/x/oauth2"
)

type contextKey string

const (
	AuthTokenContextKey  contextKey = "authToken"
	IDTokenContextKey    contextKey = "idToken"
	CredentialContextKey contextKey = "credential"
)

// Authenticator guards the agent entry point
type Authenticator interface {
	Middleware() gin.HandlerFunc

	// SecuritySchemes lists the credentials the middleware accepts
	SecuritySchemes() []types.SecurityScheme
}

// TokenVerifier verifies a raw OIDC bearer token
type TokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidcV3.IDToken, error)
}

// AuthenticatorImpl accepts a configured x-api-key or, when a verifier is set,
// a verified OIDC bearer token
type AuthenticatorImpl struct {
	logger   *zap.Logger
	apiKeys  [][]byte
	verifier TokenVerifier
	config   oauth2.Config
}

// AuthenticatorNoop is a no-op authenticator for when auth is disabled
type AuthenticatorNoop struct{}

// NewAuthenticator creates an authenticator from explicit keys and an optional verifier
func NewAuthenticator(logger *zap.Logger, apiKeys []string, verifier TokenVerifier) *AuthenticatorImpl {
	if logger == nil {
		logger = zap.NewNop()
	}

	keys := make([][]byte, 0, len(apiKeys))
	for _, key := range apiKeys {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, []byte(key))
		}
	}

	return &AuthenticatorImpl{
		logger:   logger,
		apiKeys:  keys,
		verifier: verifier,
	}
}

// NewAuthenticatorMiddleware creates the authenticator described by the auth config
func NewAuthenticatorMiddleware(logger *zap.Logger, cfg config.Config) (Authenticator, error) {
	if !cfg.AuthConfig.Enable {
		return &AuthenticatorNoop{}, nil
	}

	auth := NewAuthenticator(logger, cfg.AuthConfig.APIKeys, nil)

	if cfg.AuthConfig.OIDCEnable {
		if cfg.AuthConfig.IssuerURL == "" || cfg.AuthConfig.ClientID == "" || cfg.AuthConfig.ClientSecret == "" {
			auth.logger.Warn("oidc is enabled but required fields are missing, accepting api keys only")
		} else {
			provider, err := oidcV3.NewProvider(context.Background(), cfg.AuthConfig.IssuerURL)
			if err != nil {
				return nil, err
			}

			auth.verifier = provider.Verifier(&oidcV3.Config{ClientID: cfg.AuthConfig.ClientID})
			auth.config = oauth2.Config{
				ClientID:     cfg.AuthConfig.ClientID,
				ClientSecret: cfg.AuthConfig.ClientSecret,
				Endpoint:     provider.Endpoint(),
				Scopes:       []string{oidcV3.ScopeOpenID, "profile", "email"},
			}
		}
	}

	if len(auth.apiKeys) == 0 && auth.verifier == nil {
		auth.logger.Warn("auth is enabled but no api keys or oidc issuer are configured, disabling authentication")
		return &AuthenticatorNoop{}, nil
	}

	return auth, nil
}

// Middleware rejects calls without a valid credential with HTTP 401
func (auth *AuthenticatorImpl) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey := c.GetHeader(types.APIKeyHeader); apiKey != "" {
			if !auth.validAPIKey(apiKey) {
				auth.logger.Error("invalid api key")
				abortUnauthorized(c, "invalid api key")
				return
			}
			c.Set(string(CredentialContextKey), apiKey)
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if auth.verifier == nil || authHeader == "" {
			auth.logger.Error("missing credential")
			abortUnauthorized(c, "missing credential")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			auth.logger.Error("invalid authorization header format")
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")

		idToken, err := auth.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			auth.logger.Error("failed to verify id token", zap.Error(err))
			abortUnauthorized(c, "invalid token")
			return
		}

		c.Set(string(AuthTokenContextKey), token)
		c.Set(string(IDTokenContextKey), idToken)
		c.Set(string(CredentialContextKey), "oidc:"+idToken.Subject)
		c.Next()
	}
}

// SecuritySchemes advertises the api key header and, when OIDC is configured,
// the provider's OAuth2 endpoints. The client secret is never exposed.
func (auth *AuthenticatorImpl) SecuritySchemes() []types.SecurityScheme {
	var schemes []types.SecurityScheme
	if len(auth.apiKeys) > 0 {
		schemes = append(schemes, types.SecurityScheme{
			Type: types.SecuritySchemeAPIKey,
			Name: types.APIKeyHeader,
			In:   "header",
		})
	}
	if auth.verifier != nil && auth.config.Endpoint.AuthURL != "" {
		schemes = append(schemes, types.SecurityScheme{
			Type:             types.SecuritySchemeOAuth2,
			AuthorizationURL: auth.config.Endpoint.AuthURL,
			TokenURL:         auth.config.Endpoint.TokenURL,
			Scopes:           auth.config.Scopes,
		})
	}
	return schemes
}

func (auth *AuthenticatorImpl) validAPIKey(apiKey string) bool {
	candidate := []byte(apiKey)
	valid := false
	for _, key := range auth.apiKeys {
		if subtle.ConstantTimeCompare(candidate, key) == 1 {
			valid = true
		}
	}
	return valid
}

// Middleware returns a no-op middleware for AuthenticatorNoop
func (auth *AuthenticatorNoop) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
	}
}

// SecuritySchemes returns nil, no credential is required
func (auth *AuthenticatorNoop) SecuritySchemes() []types.SecurityScheme {
	return nil
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": message})
}
