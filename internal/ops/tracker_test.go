package ops

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"

	"cactusd/internal/model"
	"cactusd/internal/ota"
)

func TestCreateAndGet(t *testing.T) {
	tr := NewTracker()

	op := tr.Create(model.OpFlash, "cactus-kitchen")
	if op.ID == "" || len(op.ID) != 8 {
		t.Errorf("id = %q, want 8-char token", op.ID)
	}
	if op.Status != model.OpPending {
		t.Errorf("status = %q, want pending", op.Status)
	}

	got, err := tr.Get(op.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != model.OpFlash || got.DeviceName != "cactus-kitchen" {
		t.Errorf("got %+v", got)
	}

	if _, err := tr.Get("missing"); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	tr := NewTracker()
	op := tr.Create(model.OpBuild, "")

	got, _ := tr.Get(op.ID)
	got.Status = model.OpFailed

	again, _ := tr.Get(op.ID)
	if again.Status != model.OpPending {
		t.Error("mutating a returned operation leaked into the store")
	}
}

func TestLifecycleForwardOnly(t *testing.T) {
	op := &model.Operation{Status: model.OpPending}

	if !op.SetStatus(model.OpRunning) {
		t.Error("pending -> running should be allowed")
	}
	if op.SetStatus(model.OpPending) {
		t.Error("running -> pending must be rejected")
	}
	if !op.SetStatus(model.OpFailed) {
		t.Error("running -> failed should be allowed")
	}
	if op.SetStatus(model.OpRunning) {
		t.Error("failed is terminal")
	}
	if op.SetStatus(model.OpSuccess) {
		t.Error("failed cannot become success")
	}
}

func TestProgressMonotonic(t *testing.T) {
	op := &model.Operation{Status: model.OpRunning, Progress: 50}
	op.SetProgress(10)
	if op.Progress != 50 {
		t.Errorf("progress = %d, regressed below 50", op.Progress)
	}
	op.SetProgress(80)
	if op.Progress != 80 {
		t.Errorf("progress = %d, want 80", op.Progress)
	}
}

func TestCapacityEviction(t *testing.T) {
	tr := NewTrackerWithCapacity(3)

	first := tr.Create(model.OpBuild, "")
	tr.Create(model.OpBuild, "")
	tr.Create(model.OpBuild, "")
	tr.Create(model.OpBuild, "")

	if len(tr.List()) != 3 {
		t.Fatalf("retained %d, want 3", len(tr.List()))
	}
	if _, err := tr.Get(first.ID); err == nil {
		t.Error("oldest operation should have been evicted")
	}
}

func TestListOldestFirst(t *testing.T) {
	tr := NewTracker()
	a := tr.Create(model.OpBuild, "")
	b := tr.Create(model.OpFlash, "")

	list := tr.List()
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Errorf("list = %+v", list)
	}
}

func TestRunFlashLifecycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	host, portStr, _ := net.SplitHostPort(srv.Listener.Addr().String())
	port, _ := strconv.Atoi(portStr)

	tr := NewTracker()
	op := tr.Create(model.OpFlash, "board")

	path := t.TempDir() + "/fw.bin"
	if err := os.WriteFile(path, []byte("fw"), 0644); err != nil {
		t.Fatal(err)
	}

	ok, msg := RunFlash(context.Background(), tr, op.ID, path, host, port, ota.Options{})
	if !ok {
		t.Fatalf("flash failed: %s", msg)
	}

	got, err := tr.Get(op.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.OpSuccess {
		t.Errorf("status = %q, want success", got.Status)
	}
	if got.Progress != 100 {
		t.Errorf("progress = %d, want 100", got.Progress)
	}
	if got.FirmwarePath != path {
		t.Errorf("firmware path = %q", got.FirmwarePath)
	}
}

func TestRunFlashFailure(t *testing.T) {
	// Nothing listens here.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	host, portStr, _ := net.SplitHostPort(l.Addr().String())
	port, _ := strconv.Atoi(portStr)
	l.Close()

	tr := NewTracker()
	op := tr.Create(model.OpFlash, "board")

	path := t.TempDir() + "/fw.bin"
	if err := os.WriteFile(path, []byte("fw"), 0644); err != nil {
		t.Fatal(err)
	}

	ok, _ := RunFlash(context.Background(), tr, op.ID, path, host, port, ota.Options{})
	if ok {
		t.Fatal("flash should have failed")
	}

	got, _ := tr.Get(op.ID)
	if got.Status != model.OpFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
	if got.Message == "" {
		t.Error("failure message missing")
	}
}
