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

// Package hooks implements the post-handshake utility layer: a registry
// of application-installed callbacks, the verification and finalize
// dispatchers invoked around TLS handshakes, and the engine that moves
// an established TLS transport to plaintext or kernel-offloaded TLS
// without giving up the socket.
package hooks

import (
	"crypto/x509"
	"sync/atomic"

	"github.com/dpeckett/tlspost/transport"
)

// VerifyFunc decides whether to accept a peer. preverified reports the
// result of the TLS library's built-in chain validation and chain is
// the peer's certificate chain, leaf first. It is called from many
// connection-handling goroutines and must be safe for concurrent use.
type VerifyFunc func(t transport.Transport, preverified bool, chain []*x509.Certificate) bool

// FinalizeFunc runs once per connection immediately after a successful
// handshake. It must be safe for concurrent use.
type FinalizeFunc func(t transport.Transport)

// ConvertFunc attempts to re-home t's socket on a kernel-offloaded
// transport. It returns the new transport, or nil if offload is not
// possible (unsupported cipher, platform, or transport kind). It must
// be safe for concurrent use.
type ConvertFunc func(t transport.Transport) transport.Transport

// StatsFunc reports offload telemetry for t, or nil if t is not a
// kernel-offloaded transport. It must be safe for concurrent use.
type StatsFunc func(t transport.Transport) *transport.KtlsInfo

// Registry holds the application's post-handshake callbacks. Each slot
// is installed at most once, during single-threaded initialisation
// before any connection is served, and read concurrently afterwards.
// The zero value is ready to use with every slot empty.
//
// A Registry is intended to be constructed by application init code and
// handed to every connection-handling component; code that predates
// that style can use the process-wide Default registry instead.
type Registry struct {
	verify         atomic.Pointer[VerifyFunc]
	serverFinalize atomic.Pointer[FinalizeFunc]
	clientFinalize atomic.Pointer[FinalizeFunc]
	toKtls         atomic.Pointer[ConvertFunc]
	ktlsStats      atomic.Pointer[StatsFunc]
}

// InstallVerifier installs the peer verification callback. Call once,
// before serving begins; a nil fn is ignored.
func (r *Registry) InstallVerifier(fn VerifyFunc) {
	if fn == nil {
		return
	}
	r.verify.Store(&fn)
}

// InstallServerFinalizer installs the callback run on server
// connections after handshake. Call once, before serving begins; a nil
// fn is ignored.
func (r *Registry) InstallServerFinalizer(fn FinalizeFunc) {
	if fn == nil {
		return
	}
	r.serverFinalize.Store(&fn)
}

// InstallClientFinalizer installs the callback run on client
// connections after handshake. Call once, before any request is sent; a
// nil fn is ignored.
func (r *Registry) InstallClientFinalizer(fn FinalizeFunc) {
	if fn == nil {
		return
	}
	r.clientFinalize.Store(&fn)
}

// InstallKtls installs the kernel-offload converter and its companion
// stats callback. Call once, before serving begins; nil values are
// ignored slot by slot.
func (r *Registry) InstallKtls(convert ConvertFunc, stats StatsFunc) {
	if convert != nil {
		r.toKtls.Store(&convert)
	}
	if stats != nil {
		r.ktlsStats.Store(&stats)
	}
}

var defaultRegistry Registry

// Default returns the process-wide registry.
func Default() *Registry {
	return &defaultRegistry
}
