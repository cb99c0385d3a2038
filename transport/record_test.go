// SPDX-License-Identifier: GPL-2.0
/*
 * Copyright (c) 2025 Damian Peckett <damian@pecke.tt>.
 *
 * tlspost is free software; you can redistribute it and/or
 * modify it under the terms of the GNU General Public License as
 * published by the Free Software Foundation; version 2.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
 * General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program; if not, write to the Free Software
 * Foundation, Inc., 51 Franklin Street, Fifth Floor, Boston, MA
 * 02110-1301, USA.
 */

package transport

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scriptConn serves a fixed byte stream, returning everything still
// available on each Read, the way a kernel socket drains a coalesced
// segment.
type scriptConn struct {
	data []byte
}

func (s *scriptConn) Read(b []byte) (int, error) {
	if len(s.data) == 0 {
		return 0, io.EOF
	}
	n := copy(b, s.data)
	s.data = s.data[n:]
	return n, nil
}

func (s *scriptConn) Write(b []byte) (int, error)        { return len(b), nil }
func (s *scriptConn) Close() error                       { return nil }
func (s *scriptConn) LocalAddr() net.Addr                { return nil }
func (s *scriptConn) RemoteAddr() net.Addr               { return nil }
func (s *scriptConn) SetDeadline(t time.Time) error      { return nil }
func (s *scriptConn) SetReadDeadline(t time.Time) error  { return nil }
func (s *scriptConn) SetWriteDeadline(t time.Time) error { return nil }

func record(payload string) []byte {
	rec := []byte{0x16, 0x03, 0x03, byte(len(payload) >> 8), byte(len(payload))}
	return append(rec, payload...)
}

func TestRecordConnCapsAtRecordBoundary(t *testing.T) {
	// A record and trailing non-record bytes arriving as one segment.
	script := &scriptConn{data: append(record("abcd"), "PLAIN"...)}
	rc := newRecordConn(NewConn(script, nil))

	// A greedy read gets the header alone, then the payload alone,
	// never the trailing bytes.
	buf := make([]byte, 64)
	n, err := rc.Read(buf)
	require.NoError(t, err)
	require.Equal(t, recordHeaderLen, n)

	n, err = rc.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "abcd", string(buf[:n]))

	require.Zero(t, rc.pending())
	require.Equal(t, "PLAIN", string(script.data))
}

func TestRecordConnPartialReads(t *testing.T) {
	script := &scriptConn{data: append(record("abcd"), record("efgh")...)}
	rc := newRecordConn(NewConn(script, nil))

	// Dribbling reads cross the header/payload boundary cleanly.
	want := append(record("abcd"), record("efgh")...)
	var got []byte
	buf := make([]byte, 2)
	for len(got) < len(want) {
		n, err := rc.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}

	require.Equal(t, want, got)
	require.Zero(t, rc.pending())
}

func TestRecordConnReclaimsHeldHeaderBytes(t *testing.T) {
	// The stream ends three bytes into the next record's header.
	script := &scriptConn{data: append(record("abcd"), 0x17, 0x03, 0x03)}
	rc := newRecordConn(NewConn(script, nil))

	buf := make([]byte, 64)
	_, err := rc.Read(buf) // header
	require.NoError(t, err)
	_, err = rc.Read(buf) // payload
	require.NoError(t, err)

	// The next read fetches the partial header and hits EOF without
	// delivering it.
	_, err = rc.Read(buf)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, 3, rc.pending())

	// Detach-style reclaim: the held bytes go back in front of the
	// replay buffer, nothing lost.
	require.Equal(t, []byte{0x17, 0x03, 0x03}, rc.unconsumed())

	raw := NewConn(&scriptConn{}, nil)
	raw.prepend(rc.unconsumed())
	require.Equal(t, 3, raw.Buffered())

	n, err := raw.Read(buf)
	require.NoError(t, err)
	require.Equal(t, []byte{0x17, 0x03, 0x03}, buf[:n])
}
