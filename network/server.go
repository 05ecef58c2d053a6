package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/rs/zerolog"

	"github.com/VanDung-dev/eric-go/api"
	"github.com/VanDung-dev/eric-go/bridge"
	"github.com/VanDung-dev/eric-go/ffi"
)

// Engine is the session the server drives. *bridge.Client implements it.
type Engine interface {
	Validate(bridge.ValidateRequest) (*bridge.Result, error)
	Send(bridge.SendRequest) (*bridge.Result, error)
	CheckXML(xml, datenartVersion string) (*bridge.Result, error)
	EngineVersion() (string, error)
}

// inbound is a request together with the ROUTER envelope to reply to.
type inbound struct {
	envelope [][]byte
	req      *Request
	raw      []byte
}

// Server serves engine requests on a ROUTER socket. Requests are processed
// strictly one after another.
type Server struct {
	address string
	engine  Engine
	log     zerolog.Logger
	metrics *api.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	router zmq4.Socket
	queue  chan inbound

	mu       sync.RWMutex
	running  bool
	handled  uint64
	rejected uint64
	wg       sync.WaitGroup
}

// NewServer creates a server that will bind address, e.g. tcp://127.0.0.1:5570.
func NewServer(address string, engine Engine, logger zerolog.Logger, metrics *api.Metrics) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		address: address,
		engine:  engine,
		log:     logger.With().Str("component", "service").Logger(),
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
		queue:   make(chan inbound, 64),
	}
}

// Start binds the socket and starts the receive and processing loops.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("server already running")
	}

	s.router = zmq4.NewRouter(s.ctx)
	if err := s.router.Listen(s.address); err != nil {
		_ = s.router.Close()
		return fmt.Errorf("failed to bind router: %w", err)
	}
	s.running = true

	s.wg.Add(2)
	go s.receiverLoop()
	go s.processLoop()

	s.log.Info().Str("address", s.Addr()).Msg("service listening")
	return nil
}

// Addr returns the bound address, with the actual port for tcp://host:0.
func (s *Server) Addr() string {
	if s.router == nil || !strings.HasPrefix(s.address, "tcp://") {
		return s.address
	}
	addr := s.router.Addr()
	if addr == nil {
		return s.address
	}
	return "tcp://" + addr.String()
}

// Stop closes the socket and waits for the loops to exit. A request being
// processed runs to completion first; requests still queued are dropped
// unprocessed.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	err := s.router.Close()
	s.wg.Wait()
	return err
}

// Stats contains server statistics.
type Stats struct {
	Address   string `json:"address"`
	IsRunning bool   `json:"is_running"`
	Handled   uint64 `json:"handled"`
	Rejected  uint64 `json:"rejected"`
	QueueSize int    `json:"queue_size"`
}

// Stats returns current server statistics.
func (s *Server) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Address:   s.address,
		IsRunning: s.running,
		Handled:   s.handled,
		Rejected:  s.rejected,
		QueueSize: len(s.queue),
	}
}

func (s *Server) receiverLoop() {
	defer s.wg.Done()
	defer close(s.queue)

	for {
		msg, err := s.router.Recv()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.log.Debug().Err(err).Msg("receive failed")
				continue
			}
		}
		if len(msg.Frames) < 2 {
			continue
		}

		last := len(msg.Frames) - 1
		in := inbound{envelope: msg.Frames[:last], raw: msg.Frames[last]}
		in.req, _ = decodeRequest(in.raw)

		select {
		case s.queue <- in:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Server) processLoop() {
	defer s.wg.Done()

	for in := range s.queue {
		if s.ctx.Err() != nil {
			s.discard(1)
			return
		}

		var resp *Response
		if in.req == nil {
			resp = malformed(in.raw)
		} else {
			resp = s.handle(in.req)
		}

		data, err := json.Marshal(resp)
		if err != nil {
			s.log.Error().Err(err).Str("id", resp.ID).Msg("marshal response")
			continue
		}
		frames := append(append([][]byte{}, in.envelope...), data)
		if err := s.router.Send(zmq4.NewMsgFrom(frames...)); err != nil {
			s.log.Warn().Err(err).Str("id", resp.ID).Msg("send response")
		}
	}
}

// discard drains the queue after Stop without running anything against the
// engine. The router is closed, so the requests cannot be answered.
func (s *Server) discard(n int) {
	for range s.queue {
		n++
	}
	s.log.Warn().Int("dropped", n).Msg("queued requests dropped on stop")
}

// malformed answers a frame that is not a valid request. The ID is recovered
// when the JSON at least carries one.
func malformed(raw []byte) *Response {
	var probe struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(raw, &probe)
	return &Response{
		ID:        probe.ID,
		Status:    StatusError,
		Code:      ffi.CodeGlobalUnknown,
		Error:     "malformed request",
		Timestamp: time.Now(),
	}
}

// handle runs one request against the engine.
func (s *Server) handle(req *Request) *Response {
	start := time.Now()
	resp := &Response{ID: req.ID}

	var (
		res *bridge.Result
		err error
	)
	switch req.Op {
	case OpValidate:
		res, err = s.engine.Validate(bridge.ValidateRequest{
			XML:             req.XML,
			DatenartVersion: req.DatenartVersion,
			PDFPath:         req.PDFPath,
		})
	case OpSend:
		res, err = s.engine.Send(bridge.SendRequest{
			XML:             req.XML,
			DatenartVersion: req.DatenartVersion,
			CertificatePath: req.CertificatePath,
			PIN:             req.PIN,
			PDFPath:         req.PDFPath,
			TransferHandle:  req.TransferHandle,
		})
	case OpCheck:
		res, err = s.engine.CheckXML(req.XML, req.DatenartVersion)
	case OpVersion:
		resp.Version, err = s.engine.EngineVersion()
	default:
		err = fmt.Errorf("%w: unknown op %q", bridge.ErrUsage, req.Op)
	}

	switch {
	case res != nil:
		resp.Code = res.Code
		resp.Message = res.Message
		resp.ValidationResponse = res.ValidationResponse
		resp.ServerResponse = res.ServerResponse
		resp.TransferHandle = res.TransferHandle
		resp.Status = StatusOK
		if err != nil {
			resp.Status = StatusRejected
		}
	case err != nil:
		resp.Status = StatusError
		resp.Error = err.Error()
		resp.Code = ffi.CodeGlobalUnknown
		if code, ok := ffi.CodeOf(err); ok {
			resp.Code = code
		}
	default:
		resp.Status = StatusOK
	}
	resp.Timestamp = time.Now()

	s.mu.Lock()
	s.handled++
	if resp.Status != StatusOK {
		s.rejected++
	}
	s.mu.Unlock()

	s.metrics.RecordServiceRequest(req.Op, resp.Status, time.Since(start))
	s.log.Debug().
		Str("id", req.ID).
		Str("op", req.Op).
		Str("status", resp.Status).
		Int("code", resp.Code).
		Dur("duration", time.Since(start)).
		Msg("request handled")
	return resp
}
