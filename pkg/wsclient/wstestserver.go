// Copyright © 2025 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wsclient

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type testWSServer struct {
	connected  bool
	testReq    func(req *http.Request)
	toServer   chan string
	fromServer chan string
	mux        sync.Mutex
	upgrader   *websocket.Upgrader
	svr        *httptest.Server
}

// NewTestWSServer creates a little server for packages (including this one) to use in unit
// tests. Everything the client sends is reflected as a string on toServer, and strings
// written to fromServer are delivered to the client. Only a single connection is accepted,
// so tests can assert reconnect failures deterministically.
func NewTestWSServer(testReq func(req *http.Request)) (toServer, fromServer chan string, url string, close func()) {
	s := newTestWSServer(testReq)
	s.svr = httptest.NewServer(http.HandlerFunc(s.handler))
	return s.toServer, s.fromServer, "ws" + strings.TrimPrefix(s.svr.URL, "http"), s.close
}

// NewTestTLSWSServer is NewTestWSServer with TLS enabled using the supplied PEM files
func NewTestTLSWSServer(testReq func(req *http.Request), publicKeyFile, privateKeyFile *os.File) (toServer, fromServer chan string, url string, close func(), err error) {
	cert, err := tls.LoadX509KeyPair(publicKeyFile.Name(), privateKeyFile.Name())
	if err != nil {
		return nil, nil, "", nil, err
	}
	s := newTestWSServer(testReq)
	s.svr = httptest.NewUnstartedServer(http.HandlerFunc(s.handler))
	s.svr.TLS = &tls.Config{Certificates: []tls.Certificate{cert}}
	s.svr.StartTLS()
	return s.toServer, s.fromServer, "wss" + strings.TrimPrefix(s.svr.URL, "https"), s.close, nil
}

func newTestWSServer(testReq func(req *http.Request)) *testWSServer {
	return &testWSServer{
		testReq:    testReq,
		toServer:   make(chan string, 1),
		fromServer: make(chan string, 1),
		upgrader:   &websocket.Upgrader{},
	}
}

func (s *testWSServer) handler(w http.ResponseWriter, r *http.Request) {
	s.mux.Lock()
	firstConnection := !s.connected
	s.connected = true
	s.mux.Unlock()
	if !firstConnection {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if s.testReq != nil {
		s.testReq(r)
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	go func() {
		for {
			_, message, err := ws.ReadMessage()
			if err != nil {
				return
			}
			s.toServer <- string(message)
		}
	}()
	go func() {
		for message := range s.fromServer {
			if err := ws.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
				return
			}
		}
	}()
}

func (s *testWSServer) close() {
	if s.svr != nil {
		s.svr.Close()
	}
}

// GenerateTLSCertficates writes a self-signed cert and key for 127.0.0.1 to temporary
// files, for unit tests to connect to the TLS test server. The caller owns cleanup.
func GenerateTLSCertficates(t *testing.T) (publicKeyFile, privateKeyFile *os.File) {
	privatekey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	publickey := &privatekey.PublicKey
	privateKeyBytes := x509.MarshalPKCS1PrivateKey(privatekey)
	privateKeyFile, err = os.CreateTemp("", "key.pem")
	require.NoError(t, err)
	privateKeyBlock := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: privateKeyBytes}
	err = pem.Encode(privateKeyFile, privateKeyBlock)
	require.NoError(t, err)

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	require.NoError(t, err)
	x509Template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"unittest"},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(100 * time.Second),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1)},
	}
	derBytes, err := x509.CreateCertificate(rand.Reader, x509Template, x509Template, publickey, privatekey)
	require.NoError(t, err)
	publicKeyFile, err = os.CreateTemp("", "cert.pem")
	require.NoError(t, err)
	err = pem.Encode(publicKeyFile, &pem.Block{Type: "CERTIFICATE", Bytes: derBytes})
	require.NoError(t, err)
	return publicKeyFile, privateKeyFile
}
