package middleware

import (
	"context"
	"net/http"

	"github.com/praghav/modelgate/pkg/models"
)

type contextKey string

const credentialKey contextKey = "credential"

// SetCredential stores the verified credential in the context.
func SetCredential(ctx context.Context, cred *models.Credential) context.Context {
	return context.WithValue(ctx, credentialKey, cred)
}

// GetCredential returns the verified credential set by the auth middleware.
func GetCredential(r *http.Request) (*models.Credential, bool) {
	cred, ok := r.Context().Value(credentialKey).(*models.Credential)
	return cred, ok
}
