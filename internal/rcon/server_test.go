package rcon

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"lingbot/internal/config"
	"lingbot/internal/notify"
	"lingbot/internal/sched"
	"lingbot/pkg/logx"
)

func startTestServer(t *testing.T, profiles map[string]config.ProfileConfig) string {
	t.Helper()
	factory := func(string, config.ProfileConfig, logx.Logger) sched.Workload { return nil }
	scheduler, err := sched.New(sched.Config{LogDir: t.TempDir()},
		profiles, factory, notify.Nop(), nil, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	reload := func() (*sched.ReloadResult, error) {
		return scheduler.ApplyProfiles(profiles)
	}
	h := NewHandlers(scheduler, notify.Nop(), reload, logx.Nop())

	sock := filepath.Join(t.TempDir(), "control.sock")
	srv := NewServer(sock, h, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// wait for the listener
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("unix", sock); err == nil {
			conn.Close()
			return sock
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("control socket never came up")
	return ""
}

type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dialTest(t *testing.T, sock string) *testClient {
	t.Helper()
	conn, err := net.Dial("unix", sock)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	c := &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}

	greeting := c.read()
	if greeting.Type != RespMessage || greeting.Msg != "hi!" {
		t.Fatalf("greeting = %+v, want message hi!", greeting)
	}
	return c
}

func (c *testClient) send(frame string) {
	c.t.Helper()
	if _, err := c.conn.Write(append([]byte(frame), 0)); err != nil {
		c.t.Fatal(err)
	}
}

func (c *testClient) read() Response {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	raw, err := c.r.ReadBytes(0)
	if err != nil {
		c.t.Fatalf("reading frame: %v", err)
	}
	var resp Response
	if err := json.Unmarshal(raw[:len(raw)-1], &resp); err != nil {
		c.t.Fatalf("decoding %q: %v", raw, err)
	}
	return resp
}

func TestPingNonceRoundTrip(t *testing.T) {
	t.Parallel()
	sock := startTestServer(t, nil)
	c := dialTest(t, sock)

	c.send(`{"type":"ping","nonce":"a1"}`)
	resp := c.read()
	if resp.Type != RespPong || resp.Nonce != "a1" {
		t.Fatalf("got %+v, want pong with nonce a1", resp)
	}

	// connection stays open for further commands
	c.send(`{"type":"echo","data":"still here"}`)
	resp = c.read()
	if resp.Type != RespMessage || resp.Msg != "still here" {
		t.Fatalf("got %+v, want echoed message", resp)
	}
}

func TestCancelUnknownProfileError(t *testing.T) {
	t.Parallel()
	sock := startTestServer(t, nil)
	c := dialTest(t, sock)

	c.send(`{"type":"cancel","profile":"ghost"}`)
	resp := c.read()
	if resp.Type != RespError || resp.CommandType != CmdCancel {
		t.Fatalf("got %+v, want cancel error", resp)
	}
	if resp.Error != "Profile 'ghost' not found" {
		t.Fatalf("error = %q", resp.Error)
	}
}

func TestValidationErrorTerminatesConnection(t *testing.T) {
	t.Parallel()
	sock := startTestServer(t, nil)
	c := dialTest(t, sock)

	c.send(`{"type":"dance"}`)
	resp := c.read()
	if resp.Type != RespValidationError || len(resp.Errors) == 0 {
		t.Fatalf("got %+v, want validation_error", resp)
	}

	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.r.ReadBytes(0); err == nil {
		t.Fatal("connection should be closed after a validation error")
	}
}

func TestExitCommand(t *testing.T) {
	t.Parallel()
	sock := startTestServer(t, nil)
	c := dialTest(t, sock)

	c.send(`{"type":"exit","nonce":"z9"}`)
	resp := c.read()
	if resp.Type != RespExit || resp.Reason != ExitUserRequest || resp.Nonce != "z9" {
		t.Fatalf("got %+v, want exit user_request", resp)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.r.ReadBytes(0); err == nil {
		t.Fatal("connection should be closed after exit")
	}
}

func TestListProfilesAndTrigger(t *testing.T) {
	t.Parallel()
	profiles := map[string]config.ProfileConfig{
		"alice": {
			RunWindow: config.WindowConfig{Start: "20:00", End: "23:00"},
			Username:  "u", Password: "p",
			Solver: config.SolverConfig{Runs: 1},
		},
	}
	sock := startTestServer(t, profiles)
	c := dialTest(t, sock)

	c.send(`{"type":"list_profiles","nonce":"n1"}`)
	resp := c.read()
	if resp.Type != RespListProfiles || resp.Nonce != "n1" {
		t.Fatalf("got %+v", resp)
	}
	st, ok := resp.Profiles["alice"]
	if !ok {
		t.Fatalf("profiles = %v, want alice", resp.Profiles)
	}
	if st.TaskCreated || st.Running {
		t.Errorf("fresh profile should be idle, got %+v", st)
	}

	c.send(`{"type":"trigger_scheduler"}`)
	resp = c.read()
	if resp.Type != RespSuccess || resp.CommandType != CmdTriggerScheduler {
		t.Fatalf("got %+v", resp)
	}
}

func TestReloadResponse(t *testing.T) {
	t.Parallel()
	sock := startTestServer(t, nil)
	c := dialTest(t, sock)

	c.send(`{"type":"reload","nonce":"r1"}`)
	resp := c.read()
	if resp.Type != RespReload || resp.Nonce != "r1" {
		t.Fatalf("got %+v", resp)
	}
	if resp.ReloadResult == nil {
		t.Fatal("reload response is missing its result fields")
	}
}

func TestResponseRoundTrip(t *testing.T) {
	t.Parallel()
	next := time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)
	variants := []Response{
		Pong("a"),
		Message("hello", "b"),
		Success(CmdNotify, "c"),
		Errorf(CmdReload, "Failed to reload configuration", "bad yaml", "d"),
		Exit(ExitServerError, ""),
		ValidationError([]string{"type: field required"}),
		Rescheduled("alice", next, "e"),
		ReloadDone(&sched.ReloadResult{New: []string{"x"}, Updated: []string{}, Removed: []string{"y"}, Deferred: []string{}}, "f"),
	}
	for _, v := range variants {
		b, err := v.Encode()
		if err != nil {
			t.Fatalf("encode %+v: %v", v, err)
		}
		if b[len(b)-1] != 0 {
			t.Fatal("frame must end with NUL")
		}
		var got Response
		if err := json.Unmarshal(b[:len(b)-1], &got); err != nil {
			t.Fatalf("decode %q: %v", b, err)
		}
		if got.Type != v.Type || got.Nonce != v.Nonce {
			t.Fatalf("round trip changed identity: %+v -> %+v", v, got)
		}
	}
}
