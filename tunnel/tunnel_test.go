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

package tunnel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/guacd/gcore/status"
	"github.com/guacd/gcore/tunnel"
)

func TestStateString(t *testing.T) {
	assert.Equal(t, "CONNECTING", tunnel.StateConnecting.String())
	assert.Equal(t, "OPEN", tunnel.StateOpen.String())
	assert.Equal(t, "UNSTABLE", tunnel.StateUnstable.String())
	assert.Equal(t, "CLOSED", tunnel.StateClosed.String())
	assert.Equal(t, "UNKNOWN", tunnel.State(99).String())
}

func TestStatusFromHTTP(t *testing.T) {
	cases := []struct {
		code int
		want status.Code
	}{
		{200, status.Success},
		{403, status.ClientForbidden},
		{404, status.UpstreamNotFound},
		{400, status.ClientBadRequest},
		{418, status.ClientBadRequest},
		{500, status.UpstreamError},
		{503, status.UpstreamError},
	}
	for _, c := range cases {
		got := tunnel.StatusFromHTTP(c.code)
		assert.Equal(t, c.want, got.Code, "code %d", c.code)
	}
}

func TestNullSinkDiscardsEverything(t *testing.T) {
	var s tunnel.Sink = tunnel.NullSink{}
	assert.NoError(t, s.OnInstruction("nop", nil))
	s.OnStateChange(tunnel.StateOpen)
	s.OnUUID("some-uuid")
	s.OnError(status.New(status.ServerError, "boom"))
}
