// Package workerclient is the worker half of the wire protocol: the six
// RPCs a worker issues against the coordinator (get-steps, done, pending,
// cancel, reset, error), grounded directly on the reference worker's
// request_steps/request_done/request_pending/request_cancel/request_reset/
// request_error.
package workerclient

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/daniel-olson-code/pipeline/pkg/protocol"
)

// Client issues worker RPCs against a coordinator at Addr. Every call opens
// a fresh connection, sends one request frame, and closes — mirroring the
// reference worker's per-call socket.socket() usage rather than holding a
// persistent connection open.
type Client struct {
	Addr    string
	Timeout time.Duration
}

// New builds a Client dialing addr, with a default per-call timeout.
func New(addr string) *Client {
	return &Client{Addr: addr, Timeout: 10 * time.Second}
}

func (c *Client) dial() (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", c.Addr, c.Timeout)
	if err != nil {
		return nil, fmt.Errorf("workerclient: dial %s: %w", c.Addr, err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
	return conn, nil
}

func (c *Client) send(method string, payload []byte) (net.Conn, error) {
	conn, err := c.dial()
	if err != nil {
		return nil, err
	}

	frame := append([]byte(method+protocol.Separator), payload...)
	if err := protocol.WriteFrame(conn, frame); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// GetSteps asks the coordinator for up to its default limit of runnable
// step ids across scopes, leased to this worker.
func (c *Client) GetSteps(scopes []string) ([]string, error) {
	payload, err := json.Marshal(scopes)
	if err != nil {
		return nil, fmt.Errorf("workerclient: encode scopes: %w", err)
	}

	conn, err := c.send("get-steps", payload)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	resp, err := protocol.ReadFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("workerclient: get-steps: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(resp, &ids); err != nil {
		return nil, fmt.Errorf("workerclient: decode get-steps response: %w", err)
	}
	return ids, nil
}

// Done reports a step finished successfully.
func (c *Client) Done(stepID string) error {
	return c.sendFireAndForget("done", []byte(stepID))
}

// Pending reports a step should be retried without propagation.
func (c *Client) Pending(stepID string) error {
	return c.sendFireAndForget("pending", []byte(stepID))
}

// Cancel reports a step (and its whole component) should be cancelled.
func (c *Client) Cancel(stepID string) error {
	return c.sendFireAndForget("cancel", []byte(stepID))
}

// Reset reports a step (and its whole component) should be reset to pending
// (steps with parents) or queued (root steps).
func (c *Client) Reset(stepID string) error {
	return c.sendFireAndForget("reset", []byte(stepID))
}

// errorRequest is the JSON shape the "error" method expects.
type errorRequest struct {
	StepID string `json:"step_id"`
	Msg    string `json:"msg"`
	Trace  string `json:"trace"`
}

// Error reports a step failed, with a message and trace.
func (c *Client) Error(stepID, msg, trace string) error {
	payload, err := json.Marshal(errorRequest{StepID: stepID, Msg: msg, Trace: trace})
	if err != nil {
		return fmt.Errorf("workerclient: encode error payload: %w", err)
	}
	return c.sendFireAndForget("error", payload)
}

// sendFireAndForget issues a request and closes without reading a
// response, matching the reference worker's request_done/request_pending/
// request_cancel/request_reset/request_error, none of which read a reply.
func (c *Client) sendFireAndForget(method string, payload []byte) error {
	conn, err := c.send(method, payload)
	if err != nil {
		return err
	}
	return conn.Close()
}
