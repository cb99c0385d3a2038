//go:build !linux

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

package main

import (
	"fmt"
	"os"
)

// The echo server publishes peer identities to the kernel keyring and
// offers kernel TLS offload, both of which need Linux.
func main() {
	fmt.Fprintln(os.Stderr, "tlspost-echo requires Linux")
	os.Exit(1)
}
