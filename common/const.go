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

// Package common holds the small pieces of ambient state - the app
// name and version, the default read block size, build info and the
// process start time - shared across the rest of the module instead of
// being duplicated per package.
package common

const (
	// App is the program name used in logging and metrics namespacing.
	App = "guacctl"

	// Version is the program version reported by `guacctl version`.
	Version = "v0.0.1"

	// ReadBlockSize is the default read buffer size for a tunnel's
	// underlying transport. Large enough to absorb a typical burst of
	// drawing instructions without forcing a second syscall, small
	// enough that a connection with many concurrent streams doesn't
	// multiply buffer memory unreasonably.
	ReadBlockSize = 4096
)
