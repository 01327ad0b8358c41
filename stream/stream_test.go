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

package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guacd/gcore/sink"
	"github.com/guacd/gcore/status"
)

func TestIndexPoolSmallestFreeFirst(t *testing.T) {
	p := NewIndexPool()
	a := p.Acquire()
	b := p.Acquire()
	c := p.Acquire()
	assert.Equal(t, []int64{0, 1, 2}, []int64{a, b, c})

	p.Release(b)
	reused := p.Acquire()
	assert.Equal(t, b, reused, "smallest free index is reused before growing")

	next := p.Acquire()
	assert.Equal(t, int64(3), next, "once no free index remains, the pool grows monotonically")
}

func TestIndexPoolReleaseUnallocatedIsNoop(t *testing.T) {
	p := NewIndexPool()
	p.Release(42) // never acquired
	assert.False(t, p.Allocated(42))

	a := p.Acquire()
	p.Release(a)
	p.Release(a) // double release
	assert.False(t, p.Allocated(a))
}

type recordingAckSink struct {
	statuses []status.Status
}

func (r *recordingAckSink) Ack(st status.Status) error {
	r.statuses = append(r.statuses, st)
	return nil
}

func TestOutputManagerAckRoutesToBoundSink(t *testing.T) {
	m := NewOutputManager()
	rec := &recordingAckSink{}
	idx := m.Open(rec)

	// A SUCCESS ack is flow control mid-transfer: it reaches the sink but
	// must not release the index, since more data may still follow.
	require.NoError(t, m.Ack(idx, status.New(status.Success, "")))
	require.Len(t, rec.statuses, 1)
	assert.False(t, rec.statuses[0].IsError())
	assert.True(t, m.pool.Allocated(idx), "a SUCCESS ack must not free the index")

	// A second ack for the same index, now reporting an error, is the
	// stream's last event and does release it.
	require.NoError(t, m.Ack(idx, status.New(status.ServerError, "late")))
	assert.Len(t, rec.statuses, 2)
	assert.False(t, m.pool.Allocated(idx))

	// A third ack for the now-released index is a no-op.
	require.NoError(t, m.Ack(idx, status.New(status.ServerError, "too late")))
	assert.Len(t, rec.statuses, 2)
}

func TestOutputManagerDefaultsToNullAckSink(t *testing.T) {
	m := NewOutputManager()
	idx := m.Open(nil)
	assert.NotPanics(t, func() {
		_ = m.Ack(idx, status.New(status.Success, ""))
	})
}

type recordingStreamSink struct {
	blobs []string
	ended bool
	err   *status.Status
}

func (r *recordingStreamSink) Blob(data string) error {
	r.blobs = append(r.blobs, data)
	return nil
}

func (r *recordingStreamSink) End() error {
	r.ended = true
	return nil
}

func (r *recordingStreamSink) Error(st status.Status) error {
	r.err = &st
	return nil
}

func TestInputManagerBlobsPrecedeEnd(t *testing.T) {
	m := NewInputManager()
	rec := &recordingStreamSink{}
	m.Open(3, rec)

	require.NoError(t, m.Blob(3, "aGVsbG8="))
	require.NoError(t, m.Blob(3, "d29ybGQ="))
	require.NoError(t, m.End(3))

	assert.Equal(t, []string{"aGVsbG8=", "d29ybGQ="}, rec.blobs)
	assert.True(t, rec.ended)

	// Once ended, the index is no longer dispatched.
	require.NoError(t, m.Blob(3, "ignored"))
	assert.Len(t, rec.blobs, 2)
}

func TestInputManagerUnknownStreamIsIgnored(t *testing.T) {
	m := NewInputManager()
	assert.NoError(t, m.Blob(99, "x"))
	assert.NoError(t, m.End(99))
}

func TestInputManagerError(t *testing.T) {
	m := NewInputManager()
	rec := &recordingStreamSink{}
	m.Open(1, rec)

	st := status.New(status.ResourceNotFound, "gone")
	require.NoError(t, m.Error(1, st))
	require.NotNil(t, rec.err)
	assert.Equal(t, st, *rec.err)
}

type recordingFilesystemSink struct {
	bodies []string
}

func (r *recordingFilesystemSink) Defined(int64, string) {}
func (r *recordingFilesystemSink) Undefined(int64)       {}
func (r *recordingFilesystemSink) Body(object int64, mimetype, name string) sink.StreamSink {
	r.bodies = append(r.bodies, name)
	return sink.NullStreamSink{}
}

func TestObjectManagerFIFOMatchPerObjectName(t *testing.T) {
	m := NewObjectManager()
	fs := &recordingFilesystemSink{}
	m.Define(1, fs)

	m.Get(1, "a.txt")
	m.Get(1, "a.txt")
	m.Get(1, "b.txt")

	_, ok := m.Body(1, "text/plain", "a.txt")
	require.True(t, ok)
	_, ok = m.Body(1, "text/plain", "b.txt")
	require.True(t, ok)
	_, ok = m.Body(1, "text/plain", "a.txt")
	require.True(t, ok)

	assert.Equal(t, []string{"a.txt", "b.txt", "a.txt"}, fs.bodies)

	// No more pending gets for a.txt or b.txt.
	_, ok = m.Body(1, "text/plain", "a.txt")
	assert.False(t, ok)
}

func TestObjectManagerBodyWithoutDefineIsIgnored(t *testing.T) {
	m := NewObjectManager()
	_, ok := m.Body(5, "text/plain", "x")
	assert.False(t, ok)
}

func TestObjectManagerUndefineCancelsPendingGets(t *testing.T) {
	m := NewObjectManager()
	fs := &recordingFilesystemSink{}
	m.Define(1, fs)
	m.Get(1, "a.txt")

	st := m.Undefine(1)
	assert.Equal(t, status.ResourceClosed, st.Code)

	_, ok := m.Body(1, "text/plain", "a.txt")
	assert.False(t, ok, "undefine drops both the sink binding and pending gets")
}
