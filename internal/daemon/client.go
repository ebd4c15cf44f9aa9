package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
)

// SocketPath returns the daemon socket path, honouring KRISHI_SPEECH_SOCKET.
func SocketPath() string {
	if p := os.Getenv("KRISHI_SPEECH_SOCKET"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "krishi", "speech.sock")
}

// Client communicates with the speech daemon over a Unix socket.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	mu      sync.Mutex
}

// Connect dials the daemon Unix socket.
func Connect(socketPath string) (*Client, error) {
	return ConnectContext(context.Background(), socketPath)
}

// ConnectContext dials the daemon Unix socket, giving up when ctx is done.
func ConnectContext(ctx context.Context, socketPath string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // 1MB buffer

	return &Client{conn: conn, scanner: scanner}, nil
}

// ConnectPair dials the command and event connections concurrently. Either
// both are returned or neither.
func ConnectPair(ctx context.Context, socketPath string) (cmd, ev *Client, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cmd, err = ConnectContext(gctx, socketPath)
		return err
	})
	g.Go(func() error {
		var err error
		ev, err = ConnectContext(gctx, socketPath)
		return err
	})
	if err := g.Wait(); err != nil {
		if cmd != nil {
			cmd.Close()
		}
		if ev != nil {
			ev.Close()
		}
		return nil, nil, err
	}
	return cmd, ev, nil
}

// Close shuts down the connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// SendCommand sends a command and reads one response line.
func (c *Client) SendCommand(cmd Command) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(cmd)
	if err != nil {
		return Response{}, fmt.Errorf("marshal command: %w", err)
	}

	data = append(data, '\n')
	if _, err := c.conn.Write(data); err != nil {
		return Response{}, fmt.Errorf("write command: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return Response{}, fmt.Errorf("read response: %w", err)
		}
		return Response{}, fmt.Errorf("connection closed")
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return Response{}, fmt.Errorf("unmarshal response: %w", err)
	}

	return resp, nil
}

// CommandError is a command the daemon answered with ok=false.
type CommandError struct {
	Cmd     string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("daemon %s: %s", e.Cmd, e.Message)
}

// Call sends a command and turns a refusal into a *CommandError.
func (c *Client) Call(cmd Command) (Response, error) {
	resp, err := c.SendCommand(cmd)
	if err != nil {
		return Response{}, err
	}
	if !resp.OK {
		return resp, &CommandError{Cmd: cmd.Cmd, Message: resp.Error}
	}
	return resp, nil
}

// Subscribe asks for the event stream on this connection. Use ReadEvent in
// a loop afterwards.
func (c *Client) Subscribe(events ...string) error {
	_, err := c.Call(Command{Cmd: CmdSubscribe, Events: events})
	return err
}

// ReadEvent reads the next NDJSON event line. Blocks until data arrives.
// After calling Subscribe, use this in a loop to receive events.
func (c *Client) ReadEvent() (Event, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return Event{}, fmt.Errorf("read event: %w", err)
		}
		return Event{}, fmt.Errorf("connection closed")
	}

	var ev Event
	if err := json.Unmarshal(c.scanner.Bytes(), &ev); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}

	return ev, nil
}
