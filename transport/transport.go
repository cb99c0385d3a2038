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

// Package transport provides the byte-stream abstractions that the
// post-handshake utilities operate on: a TLS transport, a plaintext
// transport, and a kernel-offloaded (kTLS) transport, all bound to a
// single OS socket whose identity survives a move between them.
package transport

import (
	"crypto/x509"
	"errors"
	"net"
)

// ErrDetached is returned by I/O operations on a transport whose socket
// ownership has been released with Detach.
var ErrDetached = errors.New("transport: socket has been detached")

// Transport is a bidirectional byte stream bound to one OS socket,
// carrying the metadata negotiated during the TLS handshake.
type Transport interface {
	net.Conn

	// NegotiatedProtocol returns the application protocol agreed on
	// during the handshake via ALPN, or "" if none was negotiated.
	NegotiatedProtocol() string

	// PeerCertificates returns the certificate chain presented by the
	// peer, leaf first. May be nil for anonymous connections.
	PeerCertificates() []*x509.Certificate
}

// Detachable is implemented by transports that can release ownership of
// their socket without closing it, so another transport can take over.
type Detachable interface {
	// Detach releases the underlying connection. Any bytes already
	// received but not yet consumed remain readable through the
	// returned conn. Detach succeeds at most once; the detached
	// transport fails all further I/O with ErrDetached.
	Detach() (net.Conn, error)
}
