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
	"github.com/dpeckett/tlspost/transport"
)

// TLSToPlainProtocol is the reserved ALPN protocol name both peers must
// negotiate to permit falling back to plaintext after the handshake.
// The comparison is exact and case-sensitive.
const TLSToPlainProtocol = "mc_tls_to_pt"

// Outcome reports why a downgrade or stats operation did or did not
// produce a result.
type Outcome int

const (
	// OutcomeConverted means the operation succeeded and produced a
	// new transport (or, for stats, a result).
	OutcomeConverted Outcome = iota
	// OutcomeNotNegotiated means the plaintext fallback protocol was
	// not agreed on during the handshake.
	OutcomeNotNegotiated
	// OutcomeUnsupported means the transport is not of a kind the
	// operation can convert, or the conversion itself failed.
	OutcomeUnsupported
	// OutcomeNoHook means the capability was never installed.
	OutcomeNoHook
	// OutcomeNotEligible means the installed stats callback ran but
	// the transport is not kernel-offloaded.
	OutcomeNotEligible
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConverted:
		return "converted"
	case OutcomeNotNegotiated:
		return "not negotiated"
	case OutcomeUnsupported:
		return "unsupported"
	case OutcomeNoHook:
		return "no hook installed"
	case OutcomeNotEligible:
		return "not eligible"
	default:
		return "unknown"
	}
}

// NegotiatedPlaintextFallback reports whether t's handshake agreed on
// the plaintext fallback protocol.
func NegotiatedPlaintextFallback(t transport.Transport) bool {
	return t != nil && t.NegotiatedProtocol() == TLSToPlainProtocol
}

// MoveToPlaintext moves t to a plaintext transport on the same socket
// if the fallback protocol was negotiated. On OutcomeConverted the
// returned transport owns the socket, any bytes received but unread
// before the call remain readable through it, and t must not be used
// again. On any other outcome t is untouched and remains usable in TLS
// mode. The file descriptor never changes.
func MoveToPlaintext(t transport.Transport) (nt transport.Transport, outcome Outcome) {
	defer func() {
		if recover() != nil {
			nt, outcome = nil, OutcomeUnsupported
		}
	}()

	if !NegotiatedPlaintextFallback(t) {
		return nil, OutcomeNotNegotiated
	}

	d, ok := t.(transport.Detachable)
	if !ok {
		return nil, OutcomeUnsupported
	}

	// Capture handshake metadata before detach renders t inert.
	protocol := t.NegotiatedProtocol()
	peerCerts := t.PeerCertificates()

	raw, err := d.Detach()
	if err != nil {
		return nil, OutcomeUnsupported
	}

	return transport.NewPlain(raw, protocol, peerCerts), OutcomeConverted
}

// MoveToKtls moves t to a kernel-offloaded transport on the same socket
// via the installed converter. Offload is opt-in: without a converter
// installed the outcome is OutcomeNoHook. The converter decides
// feasibility; a nil result maps to OutcomeUnsupported and leaves t
// untouched. No retry or automatic fallback is attempted. The file
// descriptor never changes.
func (r *Registry) MoveToKtls(t transport.Transport) (nt transport.Transport, outcome Outcome) {
	defer func() {
		if recover() != nil {
			nt, outcome = nil, OutcomeUnsupported
		}
	}()

	fn := r.toKtls.Load()
	if fn == nil {
		return nil, OutcomeNoHook
	}

	converted := (*fn)(t)
	if converted == nil {
		return nil, OutcomeUnsupported
	}

	return converted, OutcomeConverted
}

// KtlsStats queries offload telemetry for t via the installed stats
// callback. The outcome distinguishes the callback being absent
// (OutcomeNoHook) from the callback finding t not offloaded
// (OutcomeNotEligible).
func (r *Registry) KtlsStats(t transport.Transport) (info *transport.KtlsInfo, outcome Outcome) {
	defer func() {
		if recover() != nil {
			info, outcome = nil, OutcomeNotEligible
		}
	}()

	fn := r.ktlsStats.Load()
	if fn == nil {
		return nil, OutcomeNoHook
	}

	stats := (*fn)(t)
	if stats == nil {
		return nil, OutcomeNotEligible
	}

	return stats, OutcomeConverted
}
