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

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dpeckett/ktls/tls"
	"github.com/dpeckett/tlspost/hooks"
	"github.com/dpeckett/tlspost/internal/keyring"
	"github.com/dpeckett/tlspost/ktlsoffload"
	"github.com/dpeckett/tlspost/transport"
	"github.com/urfave/cli/v2"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	app := &cli.App{
		Name:  "tlspost-echo",
		Usage: "An echo server demonstrating post-handshake TLS transport downgrades",
		Flags: []cli.Flag{
			&cli.GenericFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set the log level",
				Value:   fromLogLevel(slog.LevelInfo),
			},
			&cli.StringFlag{
				Name:    "listen",
				Aliases: []string{"a"},
				Usage:   "Address to listen on",
				Value:   "localhost:8443",
			},
			&cli.StringFlag{
				Name:     "cert",
				Usage:    "Path to the server certificate",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "key",
				Usage:    "Path to the server private key",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "ktls",
				Usage: "Offload established connections to kernel TLS when possible",
			},
		},
		Before: func(c *cli.Context) error {
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: (*slog.Level)(c.Generic("log-level").(*logLevelFlag)),
			}))
			return nil
		},
		Action: func(c *cli.Context) error {
			cert, err := tls.LoadX509KeyPair(c.String("cert"), c.String("key"))
			if err != nil {
				logger.Error("Failed to load key pair", "error", err)
				return err
			}

			registry := hooks.Default()

			registry.InstallServerFinalizer(func(t transport.Transport) {
				certs := t.PeerCertificates()
				if len(certs) == 0 {
					return
				}

				serial, err := keyring.PublishPeerCertificate(certs[0], certs[0].Subject.CommonName)
				if err != nil {
					logger.Warn("Failed to publish peer certificate", "error", err)
					return
				}

				logger.Debug("Published peer certificate", "serial", serial)
			})

			if c.Bool("ktls") {
				registry.InstallKtls(ktlsoffload.Converter(logger), ktlsoffload.StatsProvider())
			}

			tlsConfig := &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
				ClientAuth:   tls.RequestClientCert,
				NextProtos:   []string{hooks.TLSToPlainProtocol, "echo"},
				// Session tickets would arrive after the handshake as
				// TLS records and corrupt a plaintext-downgraded
				// stream.
				SessionTicketsDisabled: true,
			}

			ln, err := net.Listen("tcp", c.String("listen"))
			if err != nil {
				logger.Error("Failed to listen", "error", err)
				return err
			}
			defer ln.Close()

			logger.Info("Listening for connections", "addr", ln.Addr())

			term := make(chan os.Signal, 1)
			signal.Notify(term, os.Interrupt, syscall.SIGTERM)

			go func() {
				<-term
				ln.Close()
			}()

			for {
				conn, err := ln.Accept()
				if err != nil {
					if errors.Is(err, net.ErrClosed) {
						return nil
					}

					logger.Error("Failed to accept connection", "error", err)
					continue
				}

				go handleConn(logger, registry, conn, tlsConfig)
			}
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("Failed to run application", "error", err)
		os.Exit(1)
	}
}

func handleConn(logger *slog.Logger, registry *hooks.Registry, conn net.Conn, baseConfig *tls.Config) {
	logger = logger.With("remoteAddr", conn.RemoteAddr())

	// The verify callback needs the transport, so the config is wired
	// up after construction but before the handshake runs.
	tlsConfig := baseConfig.Clone()

	t := transport.Server(conn, tlsConfig)
	tlsConfig.VerifyPeerCertificate = registry.PeerVerifier(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := t.HandshakeContext(ctx); err != nil {
		logger.Error("TLS handshake failed", "error", err)
		_ = conn.Close()
		return
	}

	registry.FinalizeServer(t)

	var current transport.Transport = t

	if pt, outcome := hooks.MoveToPlaintext(t); outcome == hooks.OutcomeConverted {
		logger.Info("Moved connection to plaintext")
		current = pt
	} else if kt, outcome := registry.MoveToKtls(t); outcome == hooks.OutcomeConverted {
		logger.Info("Moved connection to kernel TLS")
		current = kt
	} else {
		logger.Debug("Keeping TLS transport", "outcome", outcome)
	}

	defer current.Close()

	if _, err := io.Copy(current, current); err != nil {
		logger.Error("Failed to echo", "error", err)
	}

	if info, outcome := registry.KtlsStats(current); outcome == hooks.OutcomeConverted {
		logger.Info("Kernel TLS stats",
			"cipherSuite", info.CipherSuite,
			"txBytes", info.TxBytes,
			"rxBytes", info.RxBytes)
	}
}

type logLevelFlag slog.Level

func fromLogLevel(l slog.Level) *logLevelFlag {
	f := logLevelFlag(l)
	return &f
}

func (f *logLevelFlag) Set(value string) error {
	return (*slog.Level)(f).UnmarshalText([]byte(value))
}

func (f *logLevelFlag) String() string {
	return (*slog.Level)(f).String()
}
