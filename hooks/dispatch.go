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

package hooks

import (
	"crypto/x509"
	"errors"

	"github.com/dpeckett/tlspost/transport"
)

// ErrVerifyRejected is the error surfaced to the TLS library when
// VerifyPeer rejects a connection.
var ErrVerifyRejected = errors.New("hooks: peer certificate rejected")

// VerifyPeer decides whether to accept the peer on t. With a verifier
// installed its result is returned unchanged; without one the default
// policy applies: defer entirely to the TLS library's built-in chain
// validation by returning preverified as-is. A panicking verifier
// counts as rejection.
func (r *Registry) VerifyPeer(t transport.Transport, preverified bool, chain []*x509.Certificate) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	if fn := r.verify.Load(); fn != nil {
		return (*fn)(t, preverified, chain)
	}

	return preverified
}

// PeerVerifier adapts VerifyPeer to the shape of
// tls.Config.VerifyPeerCertificate for the connection carried by t.
// Assign it after constructing the transport but before the handshake.
func (r *Registry) PeerVerifier(t transport.Transport) func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error {
		preverified := len(verifiedChains) > 0

		var chain []*x509.Certificate
		if preverified {
			chain = verifiedChains[0]
		} else {
			for _, raw := range rawCerts {
				cert, err := x509.ParseCertificate(raw)
				if err != nil {
					break
				}
				chain = append(chain, cert)
			}
		}

		if !r.VerifyPeer(t, preverified, chain) {
			return ErrVerifyRejected
		}

		return nil
	}
}

// FinalizeServer runs the server finalize callback on t, once,
// immediately after a successful handshake and before the connection is
// handed to request processing. Without a callback installed it is a
// no-op. A panicking callback is contained.
func (r *Registry) FinalizeServer(t transport.Transport) {
	defer func() {
		_ = recover()
	}()

	if fn := r.serverFinalize.Load(); fn != nil {
		(*fn)(t)
	}
}

// FinalizeClient runs the client finalize callback on t, once,
// immediately after a successful handshake and before any request is
// sent. Without a callback installed it is a no-op. A panicking
// callback is contained.
func (r *Registry) FinalizeClient(t transport.Transport) {
	defer func() {
		_ = recover()
	}()

	if fn := r.clientFinalize.Load(); fn != nil {
		(*fn)(t)
	}
}
