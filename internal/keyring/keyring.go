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

package keyring

import (
	"crypto/x509"
	"fmt"

	"github.com/dpeckett/keyutils"
)

// KeySerial is a unique identifier for a key in the kernel keyring.
type KeySerial int32

// PublishPeerCertificate adds the peer's certificate to the user
// keyring under a description derived from peerName.
func PublishPeerCertificate(cert *x509.Certificate, peerName string) (KeySerial, error) {
	keyring, err := keyutils.UserKeyring()
	if err != nil {
		return 0, fmt.Errorf("failed to get user keyring: %w", err)
	}

	description := fmt.Sprintf("TLS x509 %s", peerName)
	key, err := keyring.AddType(description, "asymmetric", cert.Raw)
	if err != nil {
		return 0, fmt.Errorf("failed to add key: %w", err)
	}

	return KeySerial(key.Id()), nil
}
