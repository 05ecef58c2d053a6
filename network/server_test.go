package network

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VanDung-dev/eric-go/api"
	"github.com/VanDung-dev/eric-go/bridge"
	"github.com/VanDung-dev/eric-go/ffi"
	"github.com/VanDung-dev/eric-go/ffi/ffitest"
)

const validXML = `<Elster><Name>Müller</Name></Elster>`

func openSession(t *testing.T, eng *ffitest.Engine) *bridge.Client {
	t.Helper()
	c, err := bridge.Open(bridge.Options{
		Home:   t.TempDir(),
		LogDir: t.TempDir(),
		Open:   func(string) (*ffi.Library, error) { return eng.Library(), nil },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func newTestServer(t *testing.T, eng *ffitest.Engine, metrics *api.Metrics) *Server {
	t.Helper()
	return NewServer("tcp://127.0.0.1:0", openSession(t, eng), zerolog.Nop(), metrics)
}

func TestHandleValidate(t *testing.T) {
	s := newTestServer(t, ffitest.New(), nil)

	resp := s.handle(&Request{ID: "r1", Op: OpValidate, XML: validXML, DatenartVersion: "Test_1"})
	assert.Equal(t, "r1", resp.ID)
	assert.Equal(t, StatusOK, resp.Status)
	assert.Zero(t, resp.Code)
	assert.Contains(t, resp.ValidationResponse, "<Erfolg>")
	assert.NoError(t, resp.Err())
}

func TestHandleRejected(t *testing.T) {
	s := newTestServer(t, ffitest.New(), nil)

	resp := s.handle(&Request{ID: "r2", Op: OpValidate, XML: "<broken>", DatenartVersion: "Test_1"})
	assert.Equal(t, StatusRejected, resp.Status)
	assert.Equal(t, ffi.CodeGlobalPruefFehler, resp.Code)
	assert.NotEmpty(t, resp.Message)
	assert.Error(t, resp.Err())
	assert.Equal(t, ffi.CodeGlobalPruefFehler, resp.Result().Code)
}

func TestHandleSend(t *testing.T) {
	eng := ffitest.New()
	s := newTestServer(t, eng, nil)

	var handle uint32
	resp := s.handle(&Request{
		ID: "r3", Op: OpSend, XML: validXML, DatenartVersion: "Test_1",
		CertificatePath: "/certs/test.pfx", PIN: "123456", TransferHandle: &handle,
	})
	require.Equal(t, StatusOK, resp.Status, resp.Error)
	require.NotNil(t, resp.TransferHandle)
	assert.Equal(t, uint32(42), *resp.TransferHandle)
	assert.NotEmpty(t, resp.ServerResponse)
	assert.Zero(t, eng.OpenCertificates())
}

func TestHandleCertificateError(t *testing.T) {
	s := newTestServer(t, ffitest.New(), nil)

	resp := s.handle(&Request{ID: "r4", Op: OpSend, XML: validXML, DatenartVersion: "Test_1", CertificatePath: "/nope.pfx"})
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, ffitest.CodeCertificateNotFound, resp.Code)
	assert.NotEmpty(t, resp.Error)
}

func TestHandleUnknownOp(t *testing.T) {
	s := newTestServer(t, ffitest.New(), nil)

	resp := s.handle(&Request{ID: "r5", Op: "delete"})
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "unknown op")
}

func TestHandleVersionAndCheck(t *testing.T) {
	s := newTestServer(t, ffitest.New(), nil)

	resp := s.handle(&Request{ID: "r6", Op: OpVersion})
	assert.Equal(t, StatusOK, resp.Status)
	assert.Contains(t, resp.Version, "41.6.2.0")

	resp = s.handle(&Request{ID: "r7", Op: OpCheck, XML: validXML, DatenartVersion: "Test_1"})
	assert.Equal(t, StatusOK, resp.Status)
}

func TestHandleAfterSessionClosed(t *testing.T) {
	session := openSession(t, ffitest.New())
	s := NewServer("tcp://127.0.0.1:0", session, zerolog.Nop(), nil)
	require.NoError(t, session.Close())

	resp := s.handle(&Request{ID: "r8", Op: OpValidate, XML: validXML, DatenartVersion: "Test_1"})
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "not initialized")
}

func TestMalformed(t *testing.T) {
	resp := malformed([]byte(`{"id":"x","op":42}`))
	assert.Equal(t, "x", resp.ID)
	assert.Equal(t, StatusError, resp.Status)

	resp = malformed([]byte("garbage"))
	assert.Empty(t, resp.ID)
}

func TestDecodeRequest(t *testing.T) {
	req, err := decodeRequest([]byte(`{"id":"a","op":"validate","xml":"<a/>"}`))
	require.NoError(t, err)
	assert.Equal(t, OpValidate, req.Op)

	_, err = decodeRequest([]byte(`{"op":"validate"}`))
	assert.Error(t, err)
	_, err = decodeRequest([]byte(`[`))
	assert.Error(t, err)
}

func TestServerRoundTrip(t *testing.T) {
	eng := ffitest.New()
	reg := prometheus.NewRegistry()
	metrics := api.NewMetrics("eric", reg)

	s := newTestServer(t, eng, metrics)
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop() })
	assert.True(t, s.Stats().IsRunning)

	c, err := Dial(s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := c.Validate(ctx, bridge.ValidateRequest{XML: validXML, DatenartVersion: "Test_1"})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, resp.Status)
	assert.NotEmpty(t, resp.ID)

	resp, err = c.Send(ctx, bridge.SendRequest{XML: validXML, DatenartVersion: "Test_1", CertificatePath: "/certs/test.pfx", PIN: "bad"})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, resp.Status)
	assert.Equal(t, ffitest.CodePINWrong, resp.Code)

	v, err := c.Version(ctx)
	require.NoError(t, err)
	assert.Contains(t, v, "41.6.2.0")

	stats := s.Stats()
	assert.Equal(t, uint64(3), stats.Handled)
	assert.Equal(t, uint64(1), stats.Rejected)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ServiceRequestsTotal.WithLabelValues(OpSend, StatusRejected)))

	require.NoError(t, s.Stop())
	assert.False(t, s.Stats().IsRunning)
	assert.NoError(t, s.Stop())
}

// blockingEngine holds every call until release is closed.
type blockingEngine struct {
	release chan struct{}
}

func (e *blockingEngine) wait() (*bridge.Result, error) {
	<-e.release
	return &bridge.Result{}, nil
}

func (e *blockingEngine) Validate(bridge.ValidateRequest) (*bridge.Result, error) { return e.wait() }
func (e *blockingEngine) Send(bridge.SendRequest) (*bridge.Result, error) { return e.wait() }
func (e *blockingEngine) CheckXML(string, string) (*bridge.Result, error) { return e.wait() }
func (e *blockingEngine) EngineVersion() (string, error) {
	<-e.release
	return "", nil
}

func TestClientTimeout(t *testing.T) {
	eng := &blockingEngine{release: make(chan struct{})}
	s := NewServer("tcp://127.0.0.1:0", eng, zerolog.Nop(), nil)
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop() })
	t.Cleanup(func() { close(eng.release) })

	c, err := Dial(s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = c.Validate(ctx, bridge.ValidateRequest{XML: validXML, DatenartVersion: "Test_1"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// countingEngine blocks like blockingEngine and counts Send calls.
type countingEngine struct {
	blockingEngine
	sends atomic.Int32
}

func (e *countingEngine) Send(req bridge.SendRequest) (*bridge.Result, error) {
	e.sends.Add(1)
	return e.wait()
}

func TestStopDropsQueuedRequests(t *testing.T) {
	eng := &countingEngine{blockingEngine: blockingEngine{release: make(chan struct{})}}
	s := NewServer("tcp://127.0.0.1:0", eng, zerolog.Nop(), nil)
	require.NoError(t, s.Start())

	c, err := Dial(s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const n = 5
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Send(ctx, bridge.SendRequest{XML: validXML, DatenartVersion: "Test_1"})
		}()
	}

	require.Eventually(t, func() bool {
		return eng.sends.Load() == 1 && s.Stats().QueueSize == n-1
	}, 5*time.Second, 10*time.Millisecond)

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop() }()
	require.Eventually(t, func() bool { return s.ctx.Err() != nil }, 5*time.Second, 10*time.Millisecond)
	close(eng.release)

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, int32(1), eng.sends.Load())

	cancel()
	wg.Wait()
}

func TestClosedClient(t *testing.T) {
	s := newTestServer(t, ffitest.New(), nil)
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop() })

	c, err := Dial(s.Addr())
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.Do(context.Background(), &Request{Op: OpVersion})
	assert.ErrorIs(t, err, ErrClientClosed)
}

// FuzzRequestParsing tests request decoding with random inputs.
// Run with: go test -fuzz=FuzzRequestParsing -fuzztime=30s ./network/
func FuzzRequestParsing(f *testing.F) {
	f.Add([]byte(`{"id":"1","op":"validate","xml":"<a/>","datenart_version":"ESt_2020"}`))
	f.Add([]byte(`{"id":"2","op":"send","transfer_handle":7}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`[1,2,3]`))

	f.Fuzz(func(t *testing.T, data []byte) {
		// Should not panic regardless of input
		req, err := decodeRequest(data)
		if err != nil {
			resp := malformed(data)
			if resp.Status != StatusError {
				t.Errorf("malformed status = %q", resp.Status)
			}
			return
		}
		if req.ID == "" {
			t.Error("decoded request without id")
		}
	})
}
