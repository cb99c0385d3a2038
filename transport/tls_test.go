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

package transport_test

import (
	"net"
	"testing"

	"github.com/dpeckett/ktls/tls"
	"github.com/dpeckett/tlspost/internal/testutil"
	"github.com/dpeckett/tlspost/transport"
	"github.com/stretchr/testify/require"
)

// handshakePair establishes a TLS connection over loopback TCP and
// returns both ends with completed handshakes.
func handshakePair(t *testing.T, protos []string) (server *transport.TLS, client *transport.TLS, rawServer net.Conn) {
	t.Helper()

	cert, pool, err := testutil.GenerateSelfSignedCert("localhost")
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer ln.Close()

	clientErr := make(chan error, 1)
	clientCh := make(chan *transport.TLS, 1)

	go func() {
		conn, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			clientErr <- err
			return
		}

		ct := transport.Client(conn, &tls.Config{
			RootCAs:    pool,
			ServerName: "localhost",
			NextProtos: protos,
			MinVersion: tls.VersionTLS12,
		})
		if err := ct.Handshake(); err != nil {
			clientErr <- err
			return
		}

		clientCh <- ct
		clientErr <- nil
	}()

	conn, err := ln.Accept()
	require.NoError(t, err)

	st := transport.Server(conn, &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   protos,
		MinVersion:   tls.VersionTLS12,
	})
	require.NoError(t, st.Handshake())
	require.NoError(t, <-clientErr)

	ct := <-clientCh

	t.Cleanup(func() {
		_, _ = st.Detach()
		_, _ = ct.Detach()
		_ = conn.Close()
	})

	return st, ct, conn
}

func TestTLSHandshakeMetadata(t *testing.T) {
	server, client, _ := handshakePair(t, []string{"echo"})

	require.Equal(t, "echo", server.NegotiatedProtocol())
	require.Equal(t, "echo", client.NegotiatedProtocol())

	// The client sees the server's self-signed leaf; the server
	// requested no client certificate.
	require.Len(t, client.PeerCertificates(), 1)
	require.Equal(t, "localhost", client.PeerCertificates()[0].Subject.CommonName)
	require.Empty(t, server.PeerCertificates())
}

func TestTLSRoundTrip(t *testing.T) {
	server, client, _ := handshakePair(t, nil)

	go func() {
		buf := make([]byte, 5)
		if _, err := server.Read(buf); err == nil {
			_, _ = server.Write(buf)
		}
	}()

	_, err := client.Write([]byte("hello"))
	require.NoError(t, err)

	buf := make([]byte, 5)
	_, err = client.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))
}

func TestTLSDetach(t *testing.T) {
	server, client, rawServer := handshakePair(t, nil)

	raw, err := server.Detach()
	require.NoError(t, err)

	// The detached conn is the raw socket the TLS layer sat on.
	type netConner interface{ NetConn() net.Conn }
	require.Same(t, rawServer, raw.(netConner).NetConn())

	// Detach is one-shot.
	_, err = server.Detach()
	require.ErrorIs(t, err, transport.ErrDetached)

	// All I/O on the detached transport fails fast.
	_, err = server.Read(make([]byte, 1))
	require.ErrorIs(t, err, transport.ErrDetached)
	_, err = server.Write([]byte("x"))
	require.ErrorIs(t, err, transport.ErrDetached)
	require.ErrorIs(t, server.Close(), transport.ErrDetached)

	// The socket itself is alive: raw bytes written by the client's
	// raw conn arrive through the detached server conn.
	clientRaw, err := client.Detach()
	require.NoError(t, err)

	_, err = clientRaw.Write([]byte("raw"))
	require.NoError(t, err)

	buf := make([]byte, 3)
	_, err = raw.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "raw", string(buf))
}
