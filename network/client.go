package network

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/google/uuid"

	"github.com/VanDung-dev/eric-go/bridge"
)

// Client sends requests to a Server. It is safe for concurrent use; the
// server still processes requests one at a time.
type Client struct {
	ctx    context.Context
	cancel context.CancelFunc
	dealer zmq4.Socket

	sendMu  sync.Mutex
	mu      sync.Mutex
	pending map[string]chan *Response
	closed  bool
	wg      sync.WaitGroup
}

// Dial connects to a server at address.
func Dial(address string) (*Client, error) {
	ctx, cancel := context.WithCancel(context.Background())
	dealer := zmq4.NewDealer(ctx, zmq4.WithID(zmq4.SocketIdentity(uuid.NewString())))
	if err := dealer.Dial(address); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	c := &Client{
		ctx:     ctx,
		cancel:  cancel,
		dealer:  dealer,
		pending: make(map[string]chan *Response),
	}
	c.wg.Add(1)
	go c.receiverLoop()
	return c, nil
}

// Close disconnects. Pending calls fail with ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	err := c.dealer.Close()
	c.wg.Wait()
	return err
}

// Do sends req and waits for the matching response or ctx. An empty ID is
// filled with a random UUID.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ch := make(chan *Response, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()
	defer c.forget(req.ID)

	c.sendMu.Lock()
	err = c.dealer.Send(zmq4.NewMsg(data))
	c.sendMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrClientClosed
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Validate runs a validate request remotely.
func (c *Client) Validate(ctx context.Context, req bridge.ValidateRequest) (*Response, error) {
	return c.Do(ctx, &Request{
		Op:              OpValidate,
		XML:             req.XML,
		DatenartVersion: req.DatenartVersion,
		PDFPath:         req.PDFPath,
	})
}

// Send runs a send request remotely. Paths are resolved on the server.
func (c *Client) Send(ctx context.Context, req bridge.SendRequest) (*Response, error) {
	return c.Do(ctx, &Request{
		Op:              OpSend,
		XML:             req.XML,
		DatenartVersion: req.DatenartVersion,
		CertificatePath: req.CertificatePath,
		PIN:             req.PIN,
		PDFPath:         req.PDFPath,
		TransferHandle:  req.TransferHandle,
	})
}

// Version asks the server for the engine version.
func (c *Client) Version(ctx context.Context) (string, error) {
	resp, err := c.Do(ctx, &Request{Op: OpVersion})
	if err != nil {
		return "", err
	}
	if err := resp.Err(); err != nil {
		return "", err
	}
	return resp.Version, nil
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) receiverLoop() {
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.mu.Unlock()
	}()

	for {
		msg, err := c.dealer.Recv()
		if err != nil {
			select {
			case <-c.ctx.Done():
				return
			default:
				continue
			}
		}
		if len(msg.Frames) == 0 {
			continue
		}

		var resp Response
		if err := json.Unmarshal(msg.Frames[len(msg.Frames)-1], &resp); err != nil {
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- &resp
		}
	}
}
