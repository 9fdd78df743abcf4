package daemonctl

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"padsynth/internal/api"
)

func writePID(t *testing.T, path string, pid int) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "padsynth.pid")

	if pid, err := ReadPID(path); err != nil || pid != 0 {
		t.Fatalf("missing file: pid=%d err=%v", pid, err)
	}
	writePID(t, path, 4242)
	if pid, err := ReadPID(path); err != nil || pid != 4242 {
		t.Fatalf("pid=%d err=%v", pid, err)
	}
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadPID(path); err == nil {
		t.Fatal("expected error for garbage pid file")
	}
}

func TestProcessInfoCurrentProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "padsynth.pid")
	writePID(t, path, os.Getpid())
	alive, pid, err := ProcessInfo(path)
	if err != nil || !alive || pid != os.Getpid() {
		t.Fatalf("alive=%v pid=%d err=%v", alive, pid, err)
	}
}

func TestStopAndTerminateNotRunning(t *testing.T) {
	dir := t.TempDir()
	_, err := StopAndTerminate(filepath.Join(dir, "padsynth.pid"), filepath.Join(dir, "padsynth.lock"), time.Second)
	if !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestStopAndTerminateRefusesSelf(t *testing.T) {
	path := filepath.Join(t.TempDir(), "padsynth.pid")
	writePID(t, path, os.Getpid())
	if _, err := StopAndTerminate(path, "", time.Second); err == nil {
		t.Fatal("expected refusal to signal the current process")
	}
}

func TestStopAndTerminateChild(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Skipf("sleep unavailable: %v", err)
	}
	waited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(waited)
	}()

	path := filepath.Join(t.TempDir(), "padsynth.pid")
	writePID(t, path, cmd.Process.Pid)

	result, err := StopAndTerminate(path, "", 5*time.Second)
	if err != nil {
		t.Fatalf("StopAndTerminate: %v", err)
	}
	if result.PID != cmd.Process.Pid || result.ForcedKill {
		t.Fatalf("unexpected result %+v", result)
	}
	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("child did not exit")
	}
}

func TestWaitForAPI(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if n < 3 {
			_, _ = w.Write([]byte(`{"running":false}`))
			return
		}
		_, _ = w.Write([]byte(`{"running":true,"pid":77}`))
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	status, err := WaitForAPI(context.Background(), client, 5*time.Second)
	if err != nil {
		t.Fatalf("WaitForAPI: %v", err)
	}
	if status.PID != 77 {
		t.Fatalf("pid = %d", status.PID)
	}
}

func TestWaitForAPITimeout(t *testing.T) {
	client, err := api.NewClient("127.0.0.1:1", "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := WaitForAPI(context.Background(), client, 300*time.Millisecond); err == nil {
		t.Fatal("expected timeout")
	}
}
