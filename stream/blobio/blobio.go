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

// Package blobio offers optional base64 decode/encode for stream
// payloads. The core treats blob text as opaque; callers that want raw
// bytes instead of the wire's base64 text use this package rather than
// the manager layer assuming every payload is base64.
package blobio

import "encoding/base64"

// Decode converts a `blob` instruction's base64 text into raw bytes.
func Decode(base64Data string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Data)
}

// Encode converts raw bytes into the base64 text a `blob` instruction
// carries.
func Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
