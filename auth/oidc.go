// Copyright 2015 trivago GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDC validates bearer tokens against a discovered OpenID Connect
// provider. Provider discovery happens once, at construction; if the
// provider is unreachable then, NewOIDC returns a KindUnavailable *Error
// and Coordinator.Configure fails, so the process does not start.
// Authenticate never returns KindUnavailable, so no request is answered
// with 503 for an unreachable provider.
type OIDC struct {
	verifier *oidc.IDTokenVerifier
	realm    string
}

// NewOIDC discovers issuerURL's provider configuration and builds a
// verifier scoped to clientID as the expected audience.
func NewOIDC(ctx context.Context, realm, issuerURL, clientID string) (*OIDC, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, authErr(KindUnavailable, "openid-connect provider unreachable: "+err.Error())
	}
	return &OIDC{
		realm:    realm,
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// Authenticate validates the Authorization: Bearer <token> header.
func (o *OIDC) Authenticate(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", authErr(KindAuthentication, "missing bearer token")
	}
	raw := strings.TrimPrefix(header, prefix)

	token, err := o.verifier.Verify(r.Context(), raw)
	if err != nil {
		return "", authErr(KindAuthentication, "invalid bearer token: "+err.Error())
	}

	var claims struct {
		Subject string `json:"sub"`
	}
	if err := token.Claims(&claims); err != nil {
		return "", authErr(KindAuthentication, "invalid token claims: "+err.Error())
	}
	return claims.Subject, nil
}
