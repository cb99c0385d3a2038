//go:build linux

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

// Package ktlsoffload provides ready-made kernel TLS offload callbacks
// for the hook registry on Linux.
package ktlsoffload

import (
	"log/slog"
	"syscall"

	"github.com/dpeckett/tlspost/hooks"
	"github.com/dpeckett/tlspost/internal/ktls"
	"github.com/dpeckett/tlspost/transport"
)

// Converter returns a hooks.ConvertFunc that moves a TLS transport's
// record protection into the kernel, reusing the same socket. It
// returns nil (declining the conversion) when the transport is not a
// *transport.TLS, the negotiated cipher suite has no kernel support,
// undelivered TLS data is still buffered in user space, or the kernel
// rejects the offload.
func Converter(logger *slog.Logger) hooks.ConvertFunc {
	return func(t transport.Transport) transport.Transport {
		tlsT, ok := t.(*transport.TLS)
		if !ok {
			return nil
		}

		state := tlsT.ConnectionState()
		if !ktls.Supported(state.CipherSuite) {
			logger.Debug("Cipher suite not supported by kernel TLS", "cipherSuite", state.CipherSuite)
			return nil
		}

		sc, ok := tlsT.NetConn().(syscall.Conn)
		if !ok {
			return nil
		}

		rawConn, err := sc.SyscallConn()
		if err != nil {
			logger.Debug("Failed to access raw connection", "error", err)
			return nil
		}

		// The crypto state handed to the kernel describes the record
		// boundary as user space last saw it, so nothing may remain
		// buffered above the socket.
		if tlsT.Buffered() > 0 {
			logger.Debug("Refusing kernel TLS offload with buffered reads pending")
			return nil
		}

		var enableErr error
		if err := rawConn.Control(func(fd uintptr) {
			enableErr = ktls.Enable(int32(fd), tlsT.TLSConn())
		}); err != nil {
			logger.Debug("Failed to control raw connection", "error", err)
			return nil
		}

		if enableErr != nil {
			logger.Debug("Failed to enable kernel TLS", "error", enableErr)
			return nil
		}

		raw, err := tlsT.Detach()
		if err != nil {
			logger.Debug("Failed to detach TLS transport", "error", err)
			return nil
		}

		logger.Debug("Moved connection to kernel TLS", "remoteAddr", raw.RemoteAddr())

		return transport.NewKtls(raw, state)
	}
}

// StatsProvider returns a hooks.StatsFunc reporting telemetry for
// transports produced by Converter. For any other transport kind it
// returns nil.
func StatsProvider() hooks.StatsFunc {
	return func(t transport.Transport) *transport.KtlsInfo {
		kt, ok := t.(*transport.Ktls)
		if !ok {
			return nil
		}

		info := kt.Info()
		return &info
	}
}
