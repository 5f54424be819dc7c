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

	"github.com/kafkawsproxy/wsproxy/config"
)

// Select builds the Directive configured by cfg: basic-auth takes
// precedence if both are enabled (mutually exclusive in practice), else
// openid-connect, else Disabled.
func Select(ctx context.Context, cfg config.AppCfg) (Directive, error) {
	switch {
	case cfg.BasicAuth.Enabled:
		return NewBasic(cfg.BasicAuth.Realm, cfg.BasicAuth.Username, cfg.BasicAuth.Password), nil
	case cfg.OpenIDConnect.Enabled:
		return NewOIDC(ctx, cfg.OpenIDConnect.Realm, cfg.OpenIDConnect.IssuerURL, cfg.OpenIDConnect.ClientID)
	default:
		return Disabled{}, nil
	}
}
