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
	"context"
	"crypto/x509"
	"net"
	"sync/atomic"
	"time"

	"github.com/dpeckett/ktls/tls"
)

// TLS is a transport in TLS mode. It layers a tls.Conn over a
// record-capped reader and a replay Conn, so the raw socket can later
// be recovered together with every byte the TLS record layer never
// consumed: reads are capped at record boundaries and never pull data
// past the record currently being parsed into the TLS layer's buffers.
type TLS struct {
	tlsConn  *tls.Conn
	framed   *recordConn
	raw      *Conn
	detached atomic.Bool
}

// Server returns a new TLS transport for an accepted connection.
// The handshake is not performed; call Handshake or HandshakeContext.
func Server(conn net.Conn, config *tls.Config) *TLS {
	raw := asConn(conn)
	framed := newRecordConn(raw)
	return &TLS{tlsConn: tls.Server(framed, config), framed: framed, raw: raw}
}

// Client returns a new TLS transport for a dialed connection.
// The handshake is not performed; call Handshake or HandshakeContext.
func Client(conn net.Conn, config *tls.Config) *TLS {
	raw := asConn(conn)
	framed := newRecordConn(raw)
	return &TLS{tlsConn: tls.Client(framed, config), framed: framed, raw: raw}
}

func asConn(conn net.Conn) *Conn {
	if c, ok := conn.(*Conn); ok {
		return c
	}
	return NewConn(conn, nil)
}

// Handshake runs the TLS handshake if it has not run already.
func (t *TLS) Handshake() error {
	return t.tlsConn.Handshake()
}

// HandshakeContext runs the TLS handshake under ctx.
func (t *TLS) HandshakeContext(ctx context.Context) error {
	return t.tlsConn.HandshakeContext(ctx)
}

// NegotiatedProtocol returns the ALPN protocol agreed on during the
// handshake, or "" if none was.
func (t *TLS) NegotiatedProtocol() string {
	return t.tlsConn.ConnectionState().NegotiatedProtocol
}

// PeerCertificates returns the certificate chain presented by the peer.
func (t *TLS) PeerCertificates() []*x509.Certificate {
	return t.tlsConn.ConnectionState().PeerCertificates
}

// ConnectionState returns the full TLS connection state.
func (t *TLS) ConnectionState() tls.ConnectionState {
	return t.tlsConn.ConnectionState()
}

// TLSConn returns the underlying tls.Conn. Most callers should not need
// it; it exists so offload code can extract record-layer key material.
func (t *TLS) TLSConn() *tls.Conn {
	return t.tlsConn
}

// NetConn returns the innermost connection beneath the TLS layer.
func (t *TLS) NetConn() net.Conn {
	return t.raw.NetConn()
}

// Buffered returns the number of wire bytes belonging to records the
// TLS layer has not yet fully consumed: replay bytes beneath it, held
// header bytes, and the undelivered remainder of a record it is in the
// middle of reading.
func (t *TLS) Buffered() int {
	return t.raw.Buffered() + t.framed.pending()
}

// Detach releases the raw connection beneath the TLS record layer and
// marks the transport unusable. Reads during the TLS phase are capped
// at record boundaries, so no byte past the last record the TLS layer
// consumed ever left the kernel receive buffer; anything it did fetch
// without consuming is handed back to the replay buffer here. Bytes
// received but unread before the call therefore remain readable, in
// order, through the returned conn.
func (t *TLS) Detach() (net.Conn, error) {
	if !t.detached.CompareAndSwap(false, true) {
		return nil, ErrDetached
	}
	t.raw.prepend(t.framed.unconsumed())
	return t.raw, nil
}

func (t *TLS) Read(b []byte) (int, error) {
	if t.detached.Load() {
		return 0, ErrDetached
	}
	return t.tlsConn.Read(b)
}

func (t *TLS) Write(b []byte) (int, error) {
	if t.detached.Load() {
		return 0, ErrDetached
	}
	return t.tlsConn.Write(b)
}

// Close closes the connection unless the socket has been detached, in
// which case the new owner is responsible for it.
func (t *TLS) Close() error {
	if t.detached.Load() {
		return ErrDetached
	}
	return t.tlsConn.Close()
}

func (t *TLS) LocalAddr() net.Addr {
	return t.tlsConn.LocalAddr()
}

func (t *TLS) RemoteAddr() net.Addr {
	return t.tlsConn.RemoteAddr()
}

func (t *TLS) SetDeadline(dl time.Time) error {
	return t.tlsConn.SetDeadline(dl)
}

func (t *TLS) SetReadDeadline(dl time.Time) error {
	return t.tlsConn.SetReadDeadline(dl)
}

func (t *TLS) SetWriteDeadline(dl time.Time) error {
	return t.tlsConn.SetWriteDeadline(dl)
}
