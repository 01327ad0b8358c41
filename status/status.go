// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package status defines the closed Guacamole status code enumeration and
// the Status value carried by error/ack instructions.
package status

// Code is one of the fixed Guacamole protocol status codes. The numeric
// values are part of the wire protocol and must never be renumbered.
type Code uint16

const (
	Success Code = 0x0000

	Unsupported Code = 0x0100

	ServerError          Code = 0x0200
	ServerBusy           Code = 0x0201
	UpstreamTimeout      Code = 0x0202
	UpstreamError        Code = 0x0203
	ResourceNotFound     Code = 0x0204
	ResourceConflict     Code = 0x0205
	ResourceClosed       Code = 0x0206
	UpstreamNotFound     Code = 0x0207
	UpstreamUnavailable  Code = 0x0208
	SessionConflict      Code = 0x0209
	SessionTimeout       Code = 0x020A
	SessionClosed        Code = 0x020B

	ClientBadRequest   Code = 0x0300
	ClientUnauthorized Code = 0x0301
	ClientForbidden    Code = 0x0303
	ClientTimeout      Code = 0x0308
	ClientOverrun      Code = 0x030D
	ClientBadType      Code = 0x030F
	ClientTooMany      Code = 0x031D
)

var names = map[Code]string{
	Success:             "SUCCESS",
	Unsupported:         "UNSUPPORTED",
	ServerError:         "SERVER_ERROR",
	ServerBusy:          "SERVER_BUSY",
	UpstreamTimeout:     "UPSTREAM_TIMEOUT",
	UpstreamError:       "UPSTREAM_ERROR",
	ResourceNotFound:    "RESOURCE_NOT_FOUND",
	ResourceConflict:    "RESOURCE_CONFLICT",
	ResourceClosed:      "RESOURCE_CLOSED",
	UpstreamNotFound:    "UPSTREAM_NOT_FOUND",
	UpstreamUnavailable: "UPSTREAM_UNAVAILABLE",
	SessionConflict:     "SESSION_CONFLICT",
	SessionTimeout:      "SESSION_TIMEOUT",
	SessionClosed:       "SESSION_CLOSED",
	ClientBadRequest:    "CLIENT_BAD_REQUEST",
	ClientUnauthorized:  "CLIENT_UNAUTHORIZED",
	ClientForbidden:     "CLIENT_FORBIDDEN",
	ClientTimeout:       "CLIENT_TIMEOUT",
	ClientOverrun:       "CLIENT_OVERRUN",
	ClientBadType:       "CLIENT_BAD_TYPE",
	ClientTooMany:       "CLIENT_TOO_MANY",
}

// String returns the enumeration constant name, or "UNKNOWN" for an
// unrecognized code (the wire format never rejects unknown codes).
func (c Code) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return "UNKNOWN"
}

// IsError reports whether c represents anything other than SUCCESS.
func (c Code) IsError() bool {
	return c != Success
}

// Status pairs a status code with the human-readable message that
// travels alongside it on the wire (e.g. in `error` and `ack`
// instructions).
type Status struct {
	Code    Code
	Message string
}

// New returns a Status for the given code and message.
func New(code Code, message string) Status {
	return Status{Code: code, Message: message}
}

// Error implements the error interface so a Status can be returned or
// wrapped directly wherever Go idiom expects an error.
func (s Status) Error() string {
	if s.Message == "" {
		return s.Code.String()
	}
	return s.Code.String() + ": " + s.Message
}

// IsError reports whether the status represents a failure.
func (s Status) IsError() bool {
	return s.Code.IsError()
}
