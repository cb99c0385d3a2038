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

// Package ktlsoffload provides ready-made kernel TLS offload callbacks
// for the hook registry on Linux.
package ktlsoffload

import (
	"log/slog"

	"github.com/dpeckett/tlspost/hooks"
)

// Converter returns nil on non-Linux systems; kernel TLS offload is
// unavailable and the registry treats a nil callback as absent.
func Converter(logger *slog.Logger) hooks.ConvertFunc {
	return nil
}

// StatsProvider returns nil on non-Linux systems.
func StatsProvider() hooks.StatsFunc {
	return nil
}
