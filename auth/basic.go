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
	"net/http"

	goauth "github.com/abbot/go-http-auth"
)

// Basic wraps abbot/go-http-auth's htpasswd-style BasicAuth, backed by
// the single configured username/password pair from basic-auth.* config
// rather than an htpasswd file — wsproxy has exactly one service
// credential, not a user directory.
type Basic struct {
	inner *goauth.BasicAuth
}

// NewBasic builds a Basic directive for one realm/username/password.
func NewBasic(realm, username, password string) *Basic {
	secret := goauth.NewBasicAuthenticator(realm, staticSecrets(username, password))
	return &Basic{inner: secret}
}

// staticSecrets returns a SecretProvider that only ever has one entry,
// keyed by username and realm.
func staticSecrets(username, password string) goauth.SecretProvider {
	hashed := goauth.MD5Crypt([]byte(password), []byte("wp"), []byte("$1$"))
	return func(user, realm string) string {
		if user != username {
			return ""
		}
		return hashed
	}
}

// Authenticate checks the request's Basic credentials.
func (b *Basic) Authenticate(r *http.Request) (string, error) {
	user := b.inner.CheckAuth(r)
	if user == "" {
		return "", authErr(KindAuthentication, "missing or invalid basic auth credentials")
	}
	return user, nil
}
