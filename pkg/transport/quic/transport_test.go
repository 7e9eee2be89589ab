package quic

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/QYUbit/Replica/pkg/transport"
)

const alpn = "replica-test"

func testTLS(t *testing.T) (server, client *tls.Config) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		DNSNames:     []string{"localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}

	server = &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
		NextProtos:   []string{alpn},
	}
	client = &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{alpn},
	}
	return server, client
}

type recorder struct {
	connects    []transport.Connection
	disconnects []transport.DisconnectReason
	endpoints   []transport.TerminationEndpoint
	packets     [][]byte
}

func (r *recorder) OnConnect(c transport.Connection) { r.connects = append(r.connects, c) }

func (r *recorder) OnDisconnect(c transport.Connection, reason transport.DisconnectReason, endpoint transport.TerminationEndpoint) {
	r.disconnects = append(r.disconnects, reason)
	r.endpoints = append(r.endpoints, endpoint)
}

func (r *recorder) OnPacket(c transport.Connection, h transport.PacketHeader, payload []byte) {
	r.packets = append(r.packets, payload)
}

// waitFor drains the interfaces until cond holds.
func waitFor(t *testing.T, cond func() bool, ifaces ...*Interface) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, i := range ifaces {
			i.Drain()
		}
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestQuicConnectSendDisconnect(t *testing.T) {
	serverTLS, clientTLS := testTLS(t)
	cfg := &quic.Config{MaxIdleTimeout: 5 * time.Second}

	hostRec, clientRec := &recorder{}, &recorder{}
	host := New("host", hostRec, Options{TLSConfig: serverTLS, QUICConfig: cfg})
	client := New("client", clientRec, Options{TLSConfig: clientTLS, QUICConfig: cfg})
	t.Cleanup(func() {
		host.Close()
		client.Close()
	})

	if err := host.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if err := host.Listen("127.0.0.1:0"); err != transport.ErrAlreadyListening {
		t.Errorf("second Listen = %v, want ErrAlreadyListening", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := client.Connect(ctx, host.Addr().String())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if conn.Role() != transport.RoleAcceptor {
		t.Errorf("client conn role = %s, want Acceptor", conn.Role())
	}

	waitFor(t, func() bool { return len(hostRec.connects) == 1 && len(clientRec.connects) == 1 }, host, client)
	if hostRec.connects[0].Role() != transport.RoleConnector {
		t.Errorf("host conn role = %s, want Connector", hostRec.connects[0].Role())
	}

	if err := conn.Send([]byte("ping"), true); err != nil {
		t.Fatalf("Send: %v", err)
	}
	waitFor(t, func() bool { return len(hostRec.packets) == 1 }, host)
	if string(hostRec.packets[0]) != "ping" {
		t.Errorf("host got %q, want ping", hostRec.packets[0])
	}

	if err := host.Disconnect(hostRec.connects[0].ID(), transport.ReasonTerminatedByServer); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	waitFor(t, func() bool { return len(hostRec.disconnects) == 1 && len(clientRec.disconnects) == 1 }, host, client)

	if hostRec.endpoints[0] != transport.EndpointLocal {
		t.Errorf("host endpoint = %s, want Local", hostRec.endpoints[0])
	}
	if clientRec.disconnects[0] != transport.ReasonTerminatedByServer || clientRec.endpoints[0] != transport.EndpointRemote {
		t.Errorf("client saw %s/%s, want TerminatedByServer/Remote", clientRec.disconnects[0], clientRec.endpoints[0])
	}
	if err := conn.Send([]byte("late"), true); err != transport.ErrConnectionClosed {
		t.Errorf("Send after disconnect = %v, want ErrConnectionClosed", err)
	}
}

func TestQuicCloseTwice(t *testing.T) {
	serverTLS, _ := testTLS(t)
	iface := New("host", &recorder{}, Options{TLSConfig: serverTLS})
	if err := iface.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := iface.Close(); err != transport.ErrInterfaceClosed {
		t.Errorf("second Close = %v, want ErrInterfaceClosed", err)
	}
	if err := iface.Listen("127.0.0.1:0"); err != transport.ErrInterfaceClosed {
		t.Errorf("Listen after Close = %v, want ErrInterfaceClosed", err)
	}
}

func TestFactoryRequiresTLS(t *testing.T) {
	if _, err := Factory(Options{})("x", &recorder{}); err == nil {
		t.Error("factory accepted a missing tls config")
	}

	var created *Interface
	serverTLS, _ := testTLS(t)
	iface, err := Factory(Options{TLSConfig: serverTLS, Created: func(i *Interface) { created = i }})("x", &recorder{})
	if err != nil {
		t.Fatal(err)
	}
	if created == nil || created != iface {
		t.Error("Created hook not called with the new interface")
	}
	iface.Close()
}

func TestCloseCodesRoundTrip(t *testing.T) {
	for reason := range closeCodes {
		if got := reasonFromCode(closeCode(reason)); got != reason {
			t.Errorf("reasonFromCode(closeCode(%s)) = %s", reason, got)
		}
	}
	if got := reasonFromCode(0); got != transport.ReasonTransportError {
		t.Errorf("unknown code mapped to %s", got)
	}
}
