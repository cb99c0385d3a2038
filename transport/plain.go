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
	"crypto/x509"
	"net"
)

// Plain is a plaintext-mode transport produced by downgrading a TLS
// transport. It performs raw I/O on the same socket and carries forward
// the protocol name and peer identity negotiated during the TLS phase.
type Plain struct {
	net.Conn
	protocol  string
	peerCerts []*x509.Certificate
}

// NewPlain wraps conn as a plaintext transport. protocol and peerCerts
// record what was negotiated before the downgrade.
func NewPlain(conn net.Conn, protocol string, peerCerts []*x509.Certificate) *Plain {
	return &Plain{Conn: conn, protocol: protocol, peerCerts: peerCerts}
}

// NegotiatedProtocol returns the ALPN protocol that triggered the
// downgrade to plaintext.
func (p *Plain) NegotiatedProtocol() string {
	return p.protocol
}

// PeerCertificates returns the chain the peer presented during the TLS
// handshake that preceded the downgrade.
func (p *Plain) PeerCertificates() []*x509.Certificate {
	return p.peerCerts
}

// NetConn returns the innermost connection.
func (p *Plain) NetConn() net.Conn {
	res := p.Conn

	for {
		if inner, ok := res.(interface{ NetConn() net.Conn }); ok {
			res = inner.NetConn()
		} else {
			return res
		}
	}
}
