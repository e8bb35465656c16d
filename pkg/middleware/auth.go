package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os/user"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fyrsmithlabs/gomcp/pkg/jsonrpc"
	"github.com/fyrsmithlabs/gomcp/pkg/mcperr"
	"github.com/fyrsmithlabs/gomcp/pkg/reqcontext"
)

// AuthMode selects how a request's caller is authenticated.
type AuthMode string

const (
	// AuthModeNone performs no authentication. Every request is accepted.
	AuthModeNone AuthMode = "none"
	// AuthModeBearerJWT requires a "Bearer <token>" credential, verified
	// against a shared HMAC secret.
	AuthModeBearerJWT AuthMode = "bearer_jwt"
	// AuthModeDevOwner derives an owner ID from the local OS user running
	// the server, for single-user local development where a real
	// authentication provider would be overkill.
	AuthModeDevOwner AuthMode = "dev_owner"
)

// AuthConfig configures the Auth middleware.
type AuthConfig struct {
	Mode AuthMode

	// JWTSecret is the shared HMAC signing key, required when Mode is
	// AuthModeBearerJWT.
	JWTSecret string
	Issuer    string
	Audience  string

	// Credential extracts the bearer token for a request, e.g. reading it
	// from the transport's Authorization header. The JSON-RPC message
	// itself carries no such field, so the transport layer is expected to
	// stash it in the context's Metadata bag under "authorization".
	Credential func(ctx context.Context) string
}

// Auth authenticates each non-notification request according to cfg.Mode,
// rejecting with mcperr.AuthenticationRequired on failure and otherwise
// attaching the resolved user ID to context (reqcontext.WithUserID) and
// marking the request's metadata bag "authenticated": true, so downstream
// handlers and logging can tell an authenticated caller from one that
// passed through under AuthModeNone.
func Auth(cfg AuthConfig) Middleware {
	if cfg.Credential == nil {
		cfg.Credential = defaultCredentialFromMetadata
	}

	return func(next Handler) Handler {
		return func(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
			switch cfg.Mode {
			case "", AuthModeNone:
				return next(ctx, req)

			case AuthModeDevOwner:
				userID, err := deriveDevOwnerID()
				if err != nil {
					if req.IsNotification() {
						return nil
					}
					return jsonrpc.NewErrorResponse(req.ID, mcperr.AuthenticationRequired(err.Error()))
				}
				return next(authenticated(ctx, userID, nil), req)

			case AuthModeBearerJWT:
				token := cfg.Credential(ctx)
				userID, roles, err := validateBearerJWT(token, cfg)
				if err != nil {
					if req.IsNotification() {
						return nil
					}
					return jsonrpc.NewErrorResponse(req.ID, mcperr.AuthenticationRequired(err.Error()))
				}
				return next(authenticated(ctx, userID, roles), req)

			default:
				if req.IsNotification() {
					return nil
				}
				return jsonrpc.NewErrorResponse(req.ID, mcperr.AuthenticationRequired("unsupported auth mode: "+string(cfg.Mode)))
			}
		}
	}
}

// authenticated attaches the resolved user ID and marks the request
// context's metadata bag authenticated, per the RequestContext fields an
// authenticated request carries. roles, when non-nil, is recorded under
// metadata["auth"]["roles"] for handlers that branch on caller permissions.
func authenticated(ctx context.Context, userID string, roles []string) context.Context {
	ctx = reqcontext.WithUserID(ctx, userID)
	md := reqcontext.MetadataFromContext(ctx).With("authenticated", true)
	if len(roles) > 0 {
		md = md.With("auth", map[string]interface{}{"roles": roles})
	}
	return reqcontext.WithMetadata(ctx, md)
}

func defaultCredentialFromMetadata(ctx context.Context) string {
	md := reqcontext.MetadataFromContext(ctx)
	v, _ := md.Get("authorization")
	token, _ := v.(string)
	return strings.TrimPrefix(token, "Bearer ")
}

func validateBearerJWT(tokenString string, cfg AuthConfig) (string, []string, error) {
	if tokenString == "" {
		return "", nil, errAuthMissingToken
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errAuthUnsupportedAlg
		}
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithIssuer(cfg.Issuer), jwt.WithAudience(cfg.Audience))
	if err != nil {
		return "", nil, err
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", nil, errAuthMissingSubject
	}
	return sub, rolesFromClaims(claims), nil
}

// rolesFromClaims extracts an optional "roles" claim (a JSON array of
// strings). Absence or a wrong-typed claim just means no roles, not an
// auth failure -- roles are an enrichment, not a requirement.
func rolesFromClaims(claims jwt.MapClaims) []string {
	raw, ok := claims["roles"].([]interface{})
	if !ok {
		return nil
	}
	roles := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			roles = append(roles, s)
		}
	}
	return roles
}

func deriveDevOwnerID() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(u.Username))
	return hex.EncodeToString(sum[:]), nil
}

var (
	errAuthMissingToken   = authErr("missing bearer token")
	errAuthUnsupportedAlg = authErr("unsupported JWT signing algorithm")
	errAuthMissingSubject = authErr("token missing subject claim")
)

type authErr string

func (e authErr) Error() string { return string(e) }
