package ivd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"imgview/internal/model"
)

type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string { return fmt.Sprintf("rpc error (%d): %s", e.Code, e.Message) }

// Client speaks to ivd over one connection. Calls are serialised.
type Client struct {
	conn   net.Conn
	r      *bufio.Reader
	w      *bufio.Writer
	mu     sync.Mutex
	nextID int64
}

func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn: conn,
		r:    bufio.NewReader(conn),
		w:    bufio.NewWriter(conn),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

type rawResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

func (c *Client) Call(method string, params any, out any) error {
	if c == nil || c.conn == nil {
		return fmt.Errorf("client is nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	req := Request{JSONRPC: "2.0", Method: method, ID: json.RawMessage(strconv.FormatInt(c.nextID, 10))}
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return err
		}
		req.Params = b
	}

	if err := WriteOneLine(c.w, req); err != nil {
		return err
	}
	if err := c.w.Flush(); err != nil {
		return err
	}

	line, err := ReadOneLine(c.r)
	if err != nil {
		return err
	}
	var resp rawResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return err
	}
	if string(resp.ID) != string(req.ID) {
		return fmt.Errorf("response id %s does not match request %s", resp.ID, req.ID)
	}
	if resp.Error != nil {
		return &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Result, out)
}

func (c *Client) Ping() error {
	var out string
	if err := c.Call("ping", nil, &out); err != nil {
		return err
	}
	if out != "pong" {
		return fmt.Errorf("unexpected ping result: %q", out)
	}
	return nil
}

func (c *Client) Version() (string, error) {
	var out string
	if err := c.Call("version", nil, &out); err != nil {
		return "", err
	}
	return out, nil
}

func (c *Client) Open(p SessionOpenParams) (string, error) {
	var out SessionOpenResult
	if err := c.Call("session.open", p, &out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

func (c *Client) CloseSession(id string) error {
	return c.Call("session.close", SessionParams{SessionID: id}, nil)
}

func (c *Client) Status(id string) (model.Status, error) {
	var out model.Status
	err := c.Call("session.status", SessionParams{SessionID: id}, &out)
	return out, err
}

func (c *Client) Next(id string, wait bool) (model.Status, error) {
	var out model.Status
	err := c.Call("nav.next", NavParams{SessionID: id, Wait: wait}, &out)
	return out, err
}

func (c *Client) Prev(id string, wait bool) (model.Status, error) {
	var out model.Status
	err := c.Call("nav.prev", NavParams{SessionID: id, Wait: wait}, &out)
	return out, err
}

func (c *Client) Jump(id string, index int, wait bool) (model.Status, error) {
	var out model.Status
	err := c.Call("nav.jump", JumpParams{SessionID: id, Index: index, Wait: wait}, &out)
	return out, err
}

func (c *Client) Scroll(p ScrollTickParams) (model.Status, error) {
	var out model.Status
	err := c.Call("scroll.tick", p, &out)
	return out, err
}

func (c *Client) SetSort(id, sort string, wait bool) (model.Status, error) {
	var out model.Status
	err := c.Call("sort.set", SortSetParams{SessionID: id, Sort: sort, Wait: wait}, &out)
	return out, err
}

func (c *Client) SlideShow(p SlideShowParams) (model.Status, error) {
	var out model.Status
	err := c.Call("slideshow.set", p, &out)
	return out, err
}
