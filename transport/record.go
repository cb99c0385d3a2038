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

// recordHeaderLen is the length of a TLS record header: content type,
// legacy version, and a 16-bit payload length.
const recordHeaderLen = 5

// recordConn caps every read at the boundary of the current TLS
// record, so the reader above never pulls bytes belonging to a record
// it has not started parsing into its own buffers. The peer may send
// its final handshake flight and its first plaintext bytes in a single
// segment; without the cap the TLS record layer's read-ahead would
// swallow those plaintext bytes, and a later downgrade would lose them.
type recordConn struct {
	*Conn
	hdr     [recordHeaderLen]byte
	hdrRead int // header bytes fetched from the wire
	hdrSent int // header bytes delivered to the reader
	payload int // payload bytes of the current record still undelivered
}

func newRecordConn(c *Conn) *recordConn {
	return &recordConn{Conn: c}
}

func (c *recordConn) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}

	// Fetch the next record header once the previous record has been
	// delivered in full.
	if c.hdrSent == 0 && c.payload == 0 {
		for c.hdrRead < recordHeaderLen {
			n, err := c.Conn.Read(c.hdr[c.hdrRead:])
			c.hdrRead += n
			if err != nil {
				return 0, err
			}
		}
		c.payload = int(c.hdr[3])<<8 | int(c.hdr[4])
	}

	// Deliver the header before the payload.
	if c.hdrSent < c.hdrRead {
		n := copy(b, c.hdr[c.hdrSent:c.hdrRead])
		c.hdrSent += n
		if c.hdrSent == recordHeaderLen && c.payload == 0 {
			c.hdrRead, c.hdrSent = 0, 0
		}
		return n, nil
	}

	// Cap the read at the end of the current record; anything beyond
	// it stays in the kernel receive buffer.
	limit := len(b)
	if c.payload < limit {
		limit = c.payload
	}

	n, err := c.Conn.Read(b[:limit])
	c.payload -= n
	if c.payload == 0 {
		c.hdrRead, c.hdrSent = 0, 0
	}
	return n, err
}

// unconsumed returns header bytes fetched from the wire but not yet
// delivered to the reader, so a detach can hand them back to the
// replay buffer. Payload bytes are always read straight into the
// caller's buffer and never held here.
func (c *recordConn) unconsumed() []byte {
	if c.hdrSent < c.hdrRead {
		return append([]byte(nil), c.hdr[c.hdrSent:c.hdrRead]...)
	}
	return nil
}

// pending returns the number of wire bytes belonging to a record the
// reader has started but not finished consuming: held header bytes
// plus the undelivered remainder of the current payload.
func (c *recordConn) pending() int {
	return (c.hdrRead - c.hdrSent) + c.payload
}
