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

package keyring_test

import (
	"testing"

	"github.com/dpeckett/tlspost/internal/keyring"
	"github.com/dpeckett/tlspost/internal/testutil"
	"github.com/stretchr/testify/require"
)

func TestPublishPeerCertificate(t *testing.T) {
	cert, _, err := testutil.GenerateSelfSignedCert("trusted.example")
	require.NoError(t, err)

	serial, err := keyring.PublishPeerCertificate(cert.Leaf, "trusted.example")
	require.NoError(t, err)

	require.NotZero(t, serial)
}
