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

package cmd

import (
	"github.com/guacd/gcore/logger"
	"github.com/guacd/gcore/status"
)

// loggingDisplaySink stands in for a real renderer: it logs every
// drawing instruction at debug level instead of rasterizing anything,
// which is enough to see a connection is actually carrying traffic
// without pulling a display backend into the CLI.
type loggingDisplaySink struct{}

func (loggingDisplaySink) Draw(opcode string, args []string) error {
	logger.Debugf("draw %s %v", opcode, args)
	return nil
}

func (loggingDisplaySink) Resize(width, height int64) error {
	logger.Infof("display resized to %dx%d", width, height)
	return nil
}

func (loggingDisplaySink) Flush() error { return nil }

// loggingConnectionSink surfaces connection-lifecycle notifications the
// CLI has no UI for - a required parameter prompt, the negotiated
// connection name, a terminal error - as log lines.
type loggingConnectionSink struct{}

func (loggingConnectionSink) Required(params []string) {
	logger.Warnf("server requires additional parameters not supplied in handshake.params: %v", params)
}

func (loggingConnectionSink) Name(name string) {
	logger.Infof("negotiated connection name: %s", name)
}

func (loggingConnectionSink) Error(st status.Status) {
	logger.Errorf("connection error: %s", st.Error())
}
