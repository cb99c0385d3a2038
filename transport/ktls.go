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
	"sync/atomic"
	"time"

	"github.com/dpeckett/ktls/tls"
)

// KtlsInfo describes an offloaded transport: the record protection in
// use and how many bytes have passed through the kernel path.
type KtlsInfo struct {
	Version     uint16
	CipherSuite uint16
	TxBytes     uint64
	RxBytes     uint64
}

// Ktls is a transport whose TLS record processing has been offloaded to
// the kernel. Reads and writes are plain socket I/O from the process's
// point of view; the kernel applies record protection underneath.
type Ktls struct {
	conn      net.Conn
	version   uint16
	cipher    uint16
	protocol  string
	peerCerts []*x509.Certificate
	tx, rx    atomic.Uint64
}

// NewKtls wraps conn, whose socket must already have kernel TLS record
// protection installed, preserving the metadata from state.
func NewKtls(conn net.Conn, state tls.ConnectionState) *Ktls {
	return &Ktls{
		conn:      conn,
		version:   state.Version,
		cipher:    state.CipherSuite,
		protocol:  state.NegotiatedProtocol,
		peerCerts: state.PeerCertificates,
	}
}

// NegotiatedProtocol returns the ALPN protocol from the handshake that
// preceded the offload.
func (k *Ktls) NegotiatedProtocol() string {
	return k.protocol
}

// PeerCertificates returns the chain the peer presented during the
// handshake that preceded the offload.
func (k *Ktls) PeerCertificates() []*x509.Certificate {
	return k.peerCerts
}

// Info returns a snapshot of the offload telemetry.
func (k *Ktls) Info() KtlsInfo {
	return KtlsInfo{
		Version:     k.version,
		CipherSuite: k.cipher,
		TxBytes:     k.tx.Load(),
		RxBytes:     k.rx.Load(),
	}
}

// NetConn returns the innermost connection.
func (k *Ktls) NetConn() net.Conn {
	res := k.conn

	for {
		if inner, ok := res.(interface{ NetConn() net.Conn }); ok {
			res = inner.NetConn()
		} else {
			return res
		}
	}
}

func (k *Ktls) Read(b []byte) (int, error) {
	n, err := k.conn.Read(b)
	k.rx.Add(uint64(n))
	return n, err
}

func (k *Ktls) Write(b []byte) (int, error) {
	n, err := k.conn.Write(b)
	k.tx.Add(uint64(n))
	return n, err
}

func (k *Ktls) Close() error                       { return k.conn.Close() }
func (k *Ktls) LocalAddr() net.Addr                { return k.conn.LocalAddr() }
func (k *Ktls) RemoteAddr() net.Addr               { return k.conn.RemoteAddr() }
func (k *Ktls) SetDeadline(t time.Time) error      { return k.conn.SetDeadline(t) }
func (k *Ktls) SetReadDeadline(t time.Time) error  { return k.conn.SetReadDeadline(t) }
func (k *Ktls) SetWriteDeadline(t time.Time) error { return k.conn.SetWriteDeadline(t) }
