// Copyright 2025 AxonFlow
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

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/tduhfajd/sql-guard/governance/gerror"
	"github.com/tduhfajd/sql-guard/governance/policy"
)

// ErrorBody is the "error" member of every error response.
type ErrorBody struct {
	Code    int      `json:"code"`
	Kind    string   `json:"kind,omitempty"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func writeJSONResponse(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[api] Error encoding response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, map[string]interface{}{
		"error": ErrorBody{Code: statusCode, Message: message},
	}, statusCode)
}

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, policy.ErrPolicyNotFound):
		return http.StatusNotFound
	case errors.Is(err, policy.ErrDuplicatePolicyName):
		return http.StatusConflict
	}
	if ge, ok := gerror.As(err); ok {
		return ge.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// writeError writes err as an error response. Internal errors are reported
// without their cause. extra, when set, is added to the body under its keys.
func writeError(w http.ResponseWriter, err error, extra map[string]interface{}) {
	status := statusFor(err)
	body := ErrorBody{Code: status, Message: err.Error()}
	if ge, ok := gerror.As(err); ok {
		body.Kind = string(ge.Kind)
		body.Message = ge.Message
		body.Details = ge.Details
	}
	if status == http.StatusInternalServerError {
		body.Message = "internal error"
		body.Details = nil
	}

	resp := map[string]interface{}{"error": body}
	for k, v := range extra {
		resp[k] = v
	}
	writeJSONResponse(w, resp, status)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return gerror.New(gerror.KindParse, "invalid request body", err.Error())
	}
	return nil
}
