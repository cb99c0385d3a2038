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

package hooks_test

import (
	"crypto/x509"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dpeckett/tlspost/hooks"
	"github.com/dpeckett/tlspost/internal/testutil"
	"github.com/dpeckett/tlspost/transport"
	"github.com/stretchr/testify/require"
)

// fakeTransport is a minimal Transport over an in-memory pipe.
type fakeTransport struct {
	net.Conn
	protocol string
	chain    []*x509.Certificate
}

func newFakeTransport(protocol string) (*fakeTransport, net.Conn) {
	local, remote := net.Pipe()
	return &fakeTransport{Conn: local, protocol: protocol}, remote
}

func (f *fakeTransport) NegotiatedProtocol() string {
	return f.protocol
}

func (f *fakeTransport) PeerCertificates() []*x509.Certificate {
	return f.chain
}

// fakeDetachable additionally supports one-shot socket release.
type fakeDetachable struct {
	fakeTransport
	detachErr error
	detached  bool
}

func (f *fakeDetachable) Detach() (net.Conn, error) {
	if f.detachErr != nil {
		return nil, f.detachErr
	}
	if f.detached {
		return nil, transport.ErrDetached
	}
	f.detached = true
	return f.Conn, nil
}

func leafChain(t *testing.T, commonName string) []*x509.Certificate {
	t.Helper()

	cert, _, err := testutil.GenerateSelfSignedCert(commonName)
	require.NoError(t, err)

	return []*x509.Certificate{cert.Leaf}
}

func TestVerifyPeerDefaultPolicy(t *testing.T) {
	var registry hooks.Registry

	ft, remote := newFakeTransport("")
	defer remote.Close()

	// Without a verifier the result is exactly the preverified flag.
	require.True(t, registry.VerifyPeer(ft, true, nil))
	require.False(t, registry.VerifyPeer(ft, false, nil))
	require.False(t, registry.VerifyPeer(ft, false, leafChain(t, "trusted.example")))
}

func TestVerifyPeerInstalled(t *testing.T) {
	var registry hooks.Registry
	registry.InstallVerifier(func(_ transport.Transport, preverified bool, chain []*x509.Certificate) bool {
		return preverified && len(chain) > 0 && chain[0].Subject.CommonName == "trusted.example"
	})

	ft, remote := newFakeTransport("")
	defer remote.Close()

	require.True(t, registry.VerifyPeer(ft, true, leafChain(t, "trusted.example")))
	require.False(t, registry.VerifyPeer(ft, true, leafChain(t, "other")))
	require.False(t, registry.VerifyPeer(ft, false, leafChain(t, "trusted.example")))

	// The installed verifier decides even when preverification failed.
	var permissive hooks.Registry
	permissive.InstallVerifier(func(transport.Transport, bool, []*x509.Certificate) bool {
		return true
	})
	require.True(t, permissive.VerifyPeer(ft, false, nil))
}

func TestVerifyPeerPanicContained(t *testing.T) {
	var registry hooks.Registry
	registry.InstallVerifier(func(transport.Transport, bool, []*x509.Certificate) bool {
		panic("verifier blew up")
	})

	ft, remote := newFakeTransport("")
	defer remote.Close()

	require.NotPanics(t, func() {
		require.False(t, registry.VerifyPeer(ft, true, nil))
	})
}

func TestPeerVerifier(t *testing.T) {
	chain := leafChain(t, "trusted.example")

	var registry hooks.Registry
	registry.InstallVerifier(func(_ transport.Transport, preverified bool, chain []*x509.Certificate) bool {
		return len(chain) > 0 && chain[0].Subject.CommonName == "trusted.example"
	})

	ft, remote := newFakeTransport("")
	defer remote.Close()

	verify := registry.PeerVerifier(ft)

	// Preverified path: chains come from the TLS library.
	require.NoError(t, verify(nil, [][]*x509.Certificate{chain}))

	// Unverified path: the chain is parsed from the raw certificates.
	require.NoError(t, verify([][]byte{chain[0].Raw}, nil))

	err := verify([][]byte{leafChain(t, "other")[0].Raw}, nil)
	require.ErrorIs(t, err, hooks.ErrVerifyRejected)
}

func TestFinalizeDispatch(t *testing.T) {
	var registry hooks.Registry

	ft, remote := newFakeTransport("")
	defer remote.Close()

	// No hooks installed: both finalizers are no-ops.
	require.NotPanics(t, func() {
		registry.FinalizeServer(ft)
		registry.FinalizeClient(ft)
	})

	var serverCalls, clientCalls int
	var serverGot transport.Transport

	registry.InstallServerFinalizer(func(t transport.Transport) {
		serverCalls++
		serverGot = t
	})
	registry.InstallClientFinalizer(func(transport.Transport) {
		clientCalls++
	})

	registry.FinalizeServer(ft)
	require.Equal(t, 1, serverCalls)
	require.Zero(t, clientCalls)
	require.Same(t, ft, serverGot)

	registry.FinalizeClient(ft)
	require.Equal(t, 1, clientCalls)
}

func TestFinalizePanicContained(t *testing.T) {
	var registry hooks.Registry
	registry.InstallServerFinalizer(func(transport.Transport) {
		panic("finalizer blew up")
	})

	ft, remote := newFakeTransport("")
	defer remote.Close()

	require.NotPanics(t, func() {
		registry.FinalizeServer(ft)
	})
}

func TestInstallNilIgnored(t *testing.T) {
	var registry hooks.Registry

	registry.InstallVerifier(nil)
	registry.InstallServerFinalizer(nil)
	registry.InstallClientFinalizer(nil)
	registry.InstallKtls(nil, nil)

	ft, remote := newFakeTransport("")
	defer remote.Close()

	// Everything still resolves to the safe defaults.
	require.True(t, registry.VerifyPeer(ft, true, nil))

	_, outcome := registry.MoveToKtls(ft)
	require.Equal(t, hooks.OutcomeNoHook, outcome)

	_, outcome = registry.KtlsStats(ft)
	require.Equal(t, hooks.OutcomeNoHook, outcome)
}

func TestConcurrentDispatch(t *testing.T) {
	var registry hooks.Registry

	var finalized atomic.Int64
	registry.InstallVerifier(func(_ transport.Transport, preverified bool, _ []*x509.Certificate) bool {
		return preverified
	})
	registry.InstallServerFinalizer(func(transport.Transport) {
		finalized.Add(1)
	})
	registry.InstallClientFinalizer(func(transport.Transport) {
		finalized.Add(1)
	})

	ft, remote := newFakeTransport("")
	defer remote.Close()

	const workers = 32
	const iterations = 200

	var rejected atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				if !registry.VerifyPeer(ft, true, nil) {
					rejected.Add(1)
				}
				registry.FinalizeServer(ft)
				registry.FinalizeClient(ft)
			}
		}()
	}
	wg.Wait()

	require.Zero(t, rejected.Load())
	require.Equal(t, int64(2*workers*iterations), finalized.Load())
}
