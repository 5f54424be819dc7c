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

package wsapi

import (
	"encoding/json"
	"net/http"

	"github.com/kafkawsproxy/wsproxy/auth"
	"github.com/kafkawsproxy/wsproxy/socket"
)

// errorBody is the JSON envelope every error response carries, per
// spec.md §6 "All error responses have Content-Type: application/json
// and body {"message": "<text>"}."
type errorBody struct {
	Message string `json:"message"`
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Message: message})
}

func writeSocketError(w http.ResponseWriter, err *socket.Error) {
	writeJSONError(w, err.Kind.Status(), err.Message)
}

// authStatus maps an auth.Kind to its HTTP status, per spec.md §7.
func authStatus(k auth.Kind) int {
	switch k {
	case auth.KindAuthentication:
		return http.StatusUnauthorized
	case auth.KindAuthorisation:
		return http.StatusForbidden
	case auth.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	if authErr, ok := err.(*auth.Error); ok {
		writeJSONError(w, authStatus(authErr.Kind), authErr.Message)
		return
	}
	writeJSONError(w, http.StatusUnauthorized, err.Error())
}

func writeNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, http.StatusNotFound, "no such route: "+r.URL.Path)
}
