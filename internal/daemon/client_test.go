package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// mockDaemon accepts any number of connections. Every command line is
// recorded and answered by respond; a subscribe is answered OK and then
// followed by events.
type mockDaemon struct {
	path    string
	respond func(Command) Response
	events  []Event

	mu   sync.Mutex
	cmds []Command
}

func startMockDaemon(t *testing.T, respond func(Command) Response, events ...Event) *mockDaemon {
	t.Helper()

	dir := t.TempDir()
	m := &mockDaemon{path: filepath.Join(dir, "test.sock"), respond: respond, events: events}

	ln, err := net.Listen("unix", m.path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() {
		ln.Close()
		os.Remove(m.path)
	})

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go m.serve(conn)
		}
	}()
	return m
}

func (m *mockDaemon) serve(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var cmd Command
		if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
			return
		}
		m.mu.Lock()
		m.cmds = append(m.cmds, cmd)
		m.mu.Unlock()

		resp := Response{OK: true}
		if cmd.Cmd != CmdSubscribe && m.respond != nil {
			resp = m.respond(cmd)
		}
		data, _ := json.Marshal(resp)
		conn.Write(append(data, '\n'))

		if cmd.Cmd == CmdSubscribe {
			for _, ev := range m.events {
				data, _ := json.Marshal(ev)
				conn.Write(append(data, '\n'))
			}
		}
	}
}

func (m *mockDaemon) commands() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Command(nil), m.cmds...)
}

func TestClientSendCommand(t *testing.T) {
	m := startMockDaemon(t, func(Command) Response {
		return Response{OK: true, Status: "idle", Listening: BoolPtr(false)}
	})

	client, err := Connect(m.path)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	got, err := client.SendCommand(Command{Cmd: CmdStatus})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if !got.OK {
		t.Error("ok = false, want true")
	}
	if got.Status != "idle" {
		t.Errorf("status = %q, want %q", got.Status, "idle")
	}
	if got.Listening == nil || *got.Listening {
		t.Errorf("listening = %v, want false", got.Listening)
	}
}

func TestClientCallRefused(t *testing.T) {
	m := startMockDaemon(t, func(Command) Response {
		return Response{OK: false, Error: "microphone busy"}
	})

	client, err := Connect(m.path)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	_, err = client.Call(Command{Cmd: CmdStart})
	var ce *CommandError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *CommandError", err)
	}
	if ce.Cmd != "start" || ce.Message != "microphone busy" {
		t.Errorf("CommandError = %+v", ce)
	}
}

func TestClientConnectFailure(t *testing.T) {
	_, err := Connect("/nonexistent/path/speech.sock")
	if err == nil {
		t.Error("expected error connecting to nonexistent socket")
	}
}

func TestConnectPair(t *testing.T) {
	m := startMockDaemon(t, nil, Event{Event: EventListening})

	cmd, ev, err := ConnectPair(context.Background(), m.path)
	if err != nil {
		t.Fatalf("ConnectPair: %v", err)
	}
	defer cmd.Close()
	defer ev.Close()

	if err := ev.Subscribe(EventSegment, EventEnded); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	got, err := ev.ReadEvent()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	if got.Event != EventListening {
		t.Errorf("event = %+v", got)
	}

	if _, err := cmd.Call(Command{Cmd: CmdStatus}); err != nil {
		t.Fatalf("status on command connection: %v", err)
	}

	cmds := m.commands()
	if len(cmds) != 2 || cmds[0].Cmd != CmdSubscribe || len(cmds[0].Events) != 2 {
		t.Errorf("commands = %+v", cmds)
	}
}

func TestConnectPairFailure(t *testing.T) {
	cmd, ev, err := ConnectPair(context.Background(), "/nonexistent/path/speech.sock")
	if err == nil {
		t.Fatal("expected error")
	}
	if cmd != nil || ev != nil {
		t.Error("no client should be returned on failure")
	}
}

func TestClientReadEvents(t *testing.T) {
	mic := float32(0.5)
	m := startMockDaemon(t, nil,
		Event{Event: EventPartial, Text: "नमस"},
		Event{Event: EventLevel, Mic: &mic},
	)

	client, err := Connect(m.path)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	if err := client.Subscribe(); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ev1, err := client.ReadEvent()
	if err != nil {
		t.Fatalf("read event 1: %v", err)
	}
	if ev1.Event != "partial" || ev1.Text != "नमस" {
		t.Errorf("event1 = %+v", ev1)
	}

	ev2, err := client.ReadEvent()
	if err != nil {
		t.Fatalf("read event 2: %v", err)
	}
	if ev2.Event != "level" || ev2.Mic == nil || *ev2.Mic != 0.5 {
		t.Errorf("event2 = %+v", ev2)
	}
}

func TestSocketPathEnv(t *testing.T) {
	t.Setenv("KRISHI_SPEECH_SOCKET", "/tmp/custom.sock")
	if got := SocketPath(); got != "/tmp/custom.sock" {
		t.Errorf("SocketPath = %q", got)
	}
}
