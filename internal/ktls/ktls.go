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

package ktls

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"syscall"
	"unsafe"

	"github.com/dpeckett/ktls/tls"
	"golang.org/x/sys/unix"
)

// Socket option names for SOL_TLS, from the kernel uapi (linux/tls.h).
const (
	TLS_TX = 1 // Set transmit parameters.
	TLS_RX = 2 // Set receive parameters.
)

// Supported reports whether the kernel TLS implementation can take over
// record protection for the given cipher suite.
func Supported(cipherSuite uint16) bool {
	switch cipherSuite {
	case tls.TLS_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_AES_128_GCM_SHA256,
		tls.TLS_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
		tls.TLS_CHACHA20_POLY1305_SHA256:
		return true
	default:
		return false
	}
}

// Enable switches the socket referred to by fd over to kernel TLS
// record protection in both directions, using the connection state of
// the completed handshake on tlsConn. On failure the socket may be left
// with the TLS ULP installed but no crypto state; the caller should
// treat the connection as unusable.
func Enable(fd int32, tlsConn *tls.Conn) error {
	if err := syscall.SetsockoptString(int(fd), syscall.SOL_TCP, unix.TCP_ULP, "tls"); err != nil {
		return fmt.Errorf("failed to enable kernel TLS: %w", err)
	}

	state := tlsConn.ConnectionState()

	for _, read := range []bool{false, true} {
		info, err := cryptoInfo(state, read)
		if err != nil {
			return err
		}

		level := TLS_TX
		if read {
			level = TLS_RX
		}

		if err := setsockoptBytes(int(fd), unix.SOL_TLS, level, info); err != nil {
			return fmt.Errorf("failed to configure tls socket: %w", err)
		}
	}

	return nil
}

// cryptoInfo encodes the kernel tls_crypto_info structure for one
// direction of the connection.
func cryptoInfo(state tls.ConnectionState, read bool) ([]byte, error) {
	key, iv, seq := state.KeyInfo(read)

	var info any
	switch state.CipherSuite {
	case tls.TLS_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_AES_128_GCM_SHA256:
		v := cryptoInfoAESGCM128{
			Info: cryptoInfoHeader{
				Version:    state.Version,
				CipherType: cipherAESGCM128,
			},
			Key:    [cipherAESGCM128KeySize]byte(key),
			Salt:   [cipherAESGCM128SaltSize]byte(iv[:cipherAESGCM128SaltSize]),
			RecSeq: [cipherAESGCM128RecSeqSize]byte(seq),
		}

		// TLSv1.2 generates the IV in the kernel.
		if state.Version == tls.VersionTLS12 {
			v.IV = [cipherAESGCM128IVSize]byte(seq)
		} else {
			copy(v.IV[:], iv[cipherAESGCM128SaltSize:])
		}

		info = &v
	case tls.TLS_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_AES_256_GCM_SHA384:
		v := cryptoInfoAESGCM256{
			Info: cryptoInfoHeader{
				Version:    state.Version,
				CipherType: cipherAESGCM256,
			},
			Key:    [cipherAESGCM256KeySize]byte(key),
			Salt:   [cipherAESGCM256SaltSize]byte(iv[:cipherAESGCM256SaltSize]),
			RecSeq: [cipherAESGCM256RecSeqSize]byte(seq),
		}

		// TLSv1.2 generates the IV in the kernel.
		if state.Version == tls.VersionTLS12 {
			v.IV = [cipherAESGCM256IVSize]byte(seq)
		} else {
			copy(v.IV[:], iv[cipherAESGCM256SaltSize:])
		}

		info = &v
	case tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
		tls.TLS_CHACHA20_POLY1305_SHA256:
		info = &cryptoInfoCHACHA20POLY1305{
			Info: cryptoInfoHeader{
				Version:    state.Version,
				CipherType: cipherCHACHA20POLY1305,
			},
			IV:     [cipherCHACHA20IVSize]byte(iv),
			Key:    [cipherCHACHA20KeySize]byte(key),
			RecSeq: [cipherCHACHA20RecSeqSize]byte(seq),
		}
	default:
		return nil, fmt.Errorf("unsupported cipher suite: %d", state.CipherSuite)
	}

	var w bytes.Buffer
	if err := binary.Write(&w, binary.NativeEndian, info); err != nil {
		return nil, fmt.Errorf("failed to encode crypto info: %w", err)
	}

	return w.Bytes(), nil
}

func setsockoptBytes(s int, level int, name int, value []byte) error {
	_, _, e1 := syscall.Syscall6(syscall.SYS_SETSOCKOPT, uintptr(s), uintptr(level), uintptr(name), uintptr(unsafe.Pointer(unsafe.SliceData(value))), uintptr(len(value)), 0)
	if e1 != 0 {
		return unix.Errno(e1)
	}

	return nil
}
