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

package client_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guacd/gcore/client"
	"github.com/guacd/gcore/sink"
	"github.com/guacd/gcore/status"
	"github.com/guacd/gcore/tunnel"
)

type fakeTunnel struct {
	mu           sync.Mutex
	connectData  string
	sent         []string
	connectErr   error
	disconnected bool
}

func (f *fakeTunnel) Connect(_ context.Context, connectData string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectData = connectData
	return f.connectErr
}

func (f *fakeTunnel) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
	return nil
}

func (f *fakeTunnel) SendMessage(_ context.Context, data string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeTunnel) State() tunnel.State { return tunnel.StateOpen }
func (f *fakeTunnel) UUID() string        { return "" }

func (f *fakeTunnel) sentList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeTunnel) wasDisconnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnected
}

func opcodesOf(rendered []string) []string {
	out := make([]string, len(rendered))
	for i, r := range rendered {
		// rendered elements look like "4.size,..." - the opcode is the
		// first element's value, up to the first comma or the
		// terminating ';'.
		afterDot := r[strings.IndexByte(r, '.')+1:]
		end := strings.IndexAny(afterDot, ",;")
		if end < 0 {
			end = len(afterDot)
		}
		out[i] = afterDot[:end]
	}
	return out
}

func connectOpts() client.HandshakeOptions {
	return client.HandshakeOptions{
		Protocol:       "vnc",
		Width:          1024,
		Height:         768,
		DPI:            96,
		AudioMimetypes: []string{"audio/L16"},
		VideoMimetypes: nil,
		ImageMimetypes: []string{"image/png"},
		Timezone:       "UTC",
		Params:         map[string]string{"hostname": "localhost", "port": "5900"},
	}
}

func TestConnectSendsSelectAsConnectData(t *testing.T) {
	tun := &fakeTunnel{}
	c := client.New(tun, client.Sinks{})

	require.NoError(t, c.Connect(context.Background(), connectOpts()))
	assert.Equal(t, client.StateWaiting, c.State())
	assert.Contains(t, tun.connectData, "select")
	assert.Contains(t, tun.connectData, "vnc")
}

func TestHandshakeArgsDrivesSizeAudioVideoImageTimezoneConnect(t *testing.T) {
	tun := &fakeTunnel{}
	c := client.New(tun, client.Sinks{})
	require.NoError(t, c.Connect(context.Background(), connectOpts()))

	require.NoError(t, c.OnInstruction("args", []string{"hostname", "port"}))

	require.Eventually(t, func() bool {
		return len(tun.sentList()) >= 6
	}, time.Second, 5*time.Millisecond)

	got := opcodesOf(tun.sentList())
	assert.Equal(t, []string{"size", "audio", "video", "image", "timezone", "connect"}, got)
}

func TestSyncTransitionsToConnectedAndEchoesOnlyOnChange(t *testing.T) {
	tun := &fakeTunnel{}
	c := client.New(tun, client.Sinks{})
	require.NoError(t, c.Connect(context.Background(), connectOpts()))
	require.NoError(t, c.OnInstruction("args", []string{}))

	require.NoError(t, c.OnInstruction("sync", []string{"100"}))
	assert.Equal(t, client.StateConnected, c.State())

	sentAfterFirstSync := tun.sentList()
	require.NotEmpty(t, sentAfterFirstSync)
	assert.Equal(t, "sync", opcodesOf(sentAfterFirstSync)[len(sentAfterFirstSync)-1])

	countBefore := len(tun.sentList())
	require.NoError(t, c.OnInstruction("sync", []string{"100"}))
	assert.Equal(t, countBefore, len(tun.sentList()), "repeated timestamp must not be echoed again")

	require.NoError(t, c.OnInstruction("sync", []string{"200"}))
	sentAfterSecondSync := tun.sentList()
	assert.Equal(t, "sync", opcodesOf(sentAfterSecondSync)[len(sentAfterSecondSync)-1])
	assert.Contains(t, sentAfterSecondSync[len(sentAfterSecondSync)-1], "3.200")
}

type recordingConnectionSink struct {
	mu       sync.Mutex
	errs     []status.Status
	required [][]string
}

func (s *recordingConnectionSink) Required(params []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.required = append(s.required, params)
}
func (s *recordingConnectionSink) Name(string) {}
func (s *recordingConnectionSink) Error(st status.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, st)
}

func (s *recordingConnectionSink) errList() []status.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]status.Status(nil), s.errs...)
}

func TestInboundErrorNotifiesSinkAndDisconnects(t *testing.T) {
	tun := &fakeTunnel{}
	conn := &recordingConnectionSink{}
	c := client.New(tun, client.Sinks{Connection: conn})
	require.NoError(t, c.Connect(context.Background(), connectOpts()))
	require.NoError(t, c.OnInstruction("args", []string{}))
	require.NoError(t, c.OnInstruction("sync", []string{"1"}))

	require.NoError(t, c.OnInstruction("error", []string{"connection reset", "769"}))

	require.Eventually(t, func() bool {
		return c.State() == client.StateDisconnected
	}, time.Second, 5*time.Millisecond)

	errs := conn.errList()
	require.Len(t, errs, 1)
	assert.Equal(t, status.Code(769), errs[0].Code)
	assert.True(t, tun.wasDisconnected())
}

func TestInboundDisconnectEndsConnectionWithoutError(t *testing.T) {
	tun := &fakeTunnel{}
	conn := &recordingConnectionSink{}
	c := client.New(tun, client.Sinks{Connection: conn})
	require.NoError(t, c.Connect(context.Background(), connectOpts()))
	require.NoError(t, c.OnInstruction("args", []string{}))
	require.NoError(t, c.OnInstruction("sync", []string{"1"}))

	require.NoError(t, c.OnInstruction("disconnect", nil))

	require.Eventually(t, func() bool {
		return c.State() == client.StateDisconnected
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, conn.errList())
}

func TestSendKeyEventIsNoOpBeforeConnect(t *testing.T) {
	tun := &fakeTunnel{}
	c := client.New(tun, client.Sinks{})

	require.NoError(t, c.SendKeyEvent(0xFF0D, true))
	assert.Empty(t, tun.sentList())
}

func TestSendKeyEventSendsOnceConnected(t *testing.T) {
	tun := &fakeTunnel{}
	c := client.New(tun, client.Sinks{})
	require.NoError(t, c.Connect(context.Background(), connectOpts()))
	require.NoError(t, c.OnInstruction("args", []string{}))
	require.NoError(t, c.OnInstruction("sync", []string{"1"}))

	before := len(tun.sentList())
	require.NoError(t, c.SendKeyEvent(0xFF0D, true))
	after := tun.sentList()
	require.Len(t, after, before+1)
	assert.Equal(t, "key", opcodesOf(after)[len(after)-1])
}

type recordingDisplaySink struct {
	mu    sync.Mutex
	draws []string
}

func (s *recordingDisplaySink) Draw(opcode string, _ []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draws = append(s.draws, opcode)
	return nil
}
func (s *recordingDisplaySink) Resize(int64, int64) error { return nil }
func (s *recordingDisplaySink) Flush() error              { return nil }

func (s *recordingDisplaySink) drawList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.draws...)
}

func TestUnregisteredOpcodeReachesDisplaySinkAsCatchAll(t *testing.T) {
	tun := &fakeTunnel{}
	display := &recordingDisplaySink{}
	c := client.New(tun, client.Sinks{Display: display})
	require.NoError(t, c.Connect(context.Background(), connectOpts()))
	require.NoError(t, c.OnInstruction("args", []string{}))

	require.NoError(t, c.OnInstruction("rect", []string{"0", "0", "0", "10", "10"}))
	require.NoError(t, c.OnInstruction("mouse", []string{"5", "5", "0"}))

	assert.Subset(t, display.drawList(), []string{"rect", "mouse"})
}

type fifoStreamSink struct {
	mu   sync.Mutex
	blob []string
	done bool
}

func (s *fifoStreamSink) Blob(data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob = append(s.blob, data)
	return nil
}
func (s *fifoStreamSink) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	return nil
}
func (s *fifoStreamSink) Error(status.Status) error { return nil }

type singleObjectFilesystemSink struct {
	body *fifoStreamSink
}

func (s *singleObjectFilesystemSink) Defined(int64, string) {}
func (s *singleObjectFilesystemSink) Undefined(int64)       {}
func (s *singleObjectFilesystemSink) Body(int64, string, string) sink.StreamSink {
	return s.body
}

func TestObjectGetBodyDeliversToFIFOMatchedSink(t *testing.T) {
	tun := &fakeTunnel{}
	fsSink := &singleObjectFilesystemSink{body: &fifoStreamSink{}}
	c := client.New(tun, client.Sinks{Filesystem: fsSink})
	require.NoError(t, c.Connect(context.Background(), connectOpts()))
	require.NoError(t, c.OnInstruction("args", []string{}))

	require.NoError(t, c.OnInstruction("filesystem", []string{"1", "drive"}))
	require.NoError(t, c.RequestObject(1, "report.txt"))

	require.NoError(t, c.OnInstruction("body", []string{"1", "7", "text/plain", "report.txt"}))
	require.NoError(t, c.OnInstruction("blob", []string{"7", "aGVsbG8="}))
	require.NoError(t, c.OnInstruction("end", []string{"7"}))

	fsSink.body.mu.Lock()
	defer fsSink.body.mu.Unlock()
	assert.Equal(t, []string{"aGVsbG8="}, fsSink.body.blob)
	assert.True(t, fsSink.body.done)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	tun := &fakeTunnel{}
	c := client.New(tun, client.Sinks{})
	require.NoError(t, c.Connect(context.Background(), connectOpts()))

	require.NoError(t, c.Disconnect())
	require.NoError(t, c.Disconnect())
	assert.Equal(t, client.StateDisconnected, c.State())
}
