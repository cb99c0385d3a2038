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
	"net"
	"time"
)

// Conn wraps a net.Conn with a small replay buffer. Bytes placed in the
// buffer are served by Read before any data from the underlying
// connection, which lets a transport hand its socket to a successor
// without losing bytes it had already pulled off the wire.
//
// Conn implements net.Conn and can be used anywhere one is expected.
type Conn struct {
	conn net.Conn
	rbuf []byte // replayed before conn (data read but not yet consumed)
}

// NewConn wraps conn. Any bytes in buffered are served first.
func NewConn(conn net.Conn, buffered []byte) *Conn {
	return &Conn{conn: conn, rbuf: buffered}
}

// Read reads data into b, draining the replay buffer before touching
// the underlying connection.
func (c *Conn) Read(b []byte) (int, error) {
	if ln := len(c.rbuf); ln > 0 {
		if len(b) >= ln {
			n := copy(b, c.rbuf)
			c.rbuf = nil
			return n, nil
		}
		n := copy(b, c.rbuf)
		c.rbuf = c.rbuf[n:]
		return n, nil
	}
	return c.conn.Read(b)
}

// Write writes data to the underlying connection.
func (c *Conn) Write(b []byte) (int, error) {
	return c.conn.Write(b)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Buffered returns the number of replay bytes not yet consumed.
func (c *Conn) Buffered() int {
	return len(c.rbuf)
}

// prepend pushes bytes back to the front of the replay buffer, ahead
// of anything already there.
func (c *Conn) prepend(b []byte) {
	if len(b) == 0 {
		return
	}
	c.rbuf = append(append([]byte(nil), b...), c.rbuf...)
}

// Unwrap returns the underlying net.Conn if the replay buffer is empty,
// or nil while buffered data remains unconsumed.
func (c *Conn) Unwrap() net.Conn {
	if len(c.rbuf) != 0 {
		return nil
	}
	return c.conn
}

// NetConn returns the innermost connection, unwrapping any nested
// wrappers that expose a NetConn method. Reading from or writing to it
// directly will likely corrupt the stream.
func (c *Conn) NetConn() net.Conn {
	res := c.conn

	for {
		if inner, ok := res.(interface{ NetConn() net.Conn }); ok {
			res = inner.NetConn()
		} else {
			return res
		}
	}
}

func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *Conn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}
