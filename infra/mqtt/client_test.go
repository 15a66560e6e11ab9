package mqtt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremqtt "github.com/kilianp07/dersize/core/mqtt"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0644); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if err := os.WriteFile(caFile, certPEM, 0644); err != nil {
		t.Fatalf("write ca: %v", err)
	}
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) == 0 {
		t.Fatalf("no certs loaded")
	}
	if tlsCfg.RootCAs == nil {
		t.Fatalf("no root CAs")
	}
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatalf("auth not set")
	}
}

func TestNewClientOptionsWill(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", TopicPrefix: "feeder", QoS: map[string]byte{"status": 1}})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if !opts.WillEnabled || opts.WillTopic != "feeder/status" || string(opts.WillPayload) != "offline" {
		t.Fatalf("will options incorrect: %+v", opts)
	}
	if !opts.WillRetained || opts.WillQos != 1 {
		t.Fatalf("will should be retained with qos 1")
	}
}

func withMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
}

func TestConnectAnnouncesStatus(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", QoS: map[string]byte{"status": 1}}, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if !strings.HasPrefix(mc.opts.ClientID, "dersize-") {
		t.Fatalf("generated client id %q", mc.opts.ClientID)
	}
	if len(mc.published) != 1 || mc.published[0].topic != "dersize/status" || mc.published[0].qos != 1 || !mc.published[0].retained {
		t.Fatalf("status not announced: %+v", mc.published)
	}
	if got := cli.Topic("run", "evaluation"); got != "dersize/run/evaluation" {
		t.Fatalf("topic %s", got)
	}
}

func TestPublishEncodesJSON(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", QoS: map[string]byte{"event": 2}}, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if err := cli.Publish("dersize/r/finished", map[string]int{"evaluated": 3}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	last := mc.published[len(mc.published)-1]
	if last.qos != 2 || string(last.payload.([]byte)) != `{"evaluated":3}` {
		t.Fatalf("unexpected publish %+v", last)
	}
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1}, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	mc.published = nil
	mc.publishErrs = []error{fmt.Errorf("net fail"), nil}
	if err := cli.Publish("t", 1); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(mc.published) != 2 {
		t.Fatalf("expected retries, got %d", len(mc.published))
	}
}

type recordMonitor struct {
	mu   sync.Mutex
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) CaptureMessage(string, map[string]string) {}
func (r *recordMonitor) Recover()                                 {}
func (r *recordMonitor) Flush(time.Duration)                      {}

func TestPublishErrorCaptured(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	mon := &recordMonitor{}
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1}, mon)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	mc.publishErrs = []error{fmt.Errorf("net fail"), fmt.Errorf("net fail")}
	err = cli.Publish("dersize/x", "payload")
	if !errors.Is(err, coremqtt.ErrPublish) {
		t.Fatalf("expected ErrPublish, got %v", err)
	}
	if mon.err == nil || mon.tags["module"] != "mqtt" || mon.tags["topic"] != "dersize/x" {
		t.Fatalf("error not captured: %+v", mon.tags)
	}
}

func TestDisconnect(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id"}, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	cli.Disconnect()
	if !mc.disconnected {
		t.Fatalf("expected disconnect")
	}
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  interface{}
}

// mockClient implements pahoClient for tests
type mockClient struct {
	opts         *paho.ClientOptions
	published    []published
	publishErrs  []error
	disconnected bool
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) { m.disconnected = true }
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	m.published = append(m.published, published{topic, qos, retained, payload})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(string, byte, paho.MessageHandler) paho.Token { return &dummyToken{} }
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }
