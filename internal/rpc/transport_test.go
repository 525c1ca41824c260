package rpc

import (
	"context"
	"os/exec"
	"testing"
	"time"
)

func startProcess(t *testing.T, cfg ProcessConfig) *ProcessTransport {
	t.Helper()
	if _, err := exec.LookPath(cfg.Command); err != nil {
		t.Skipf("%s not available", cfg.Command)
	}
	tr, err := StartProcess(context.Background(), cfg)
	if err != nil {
		t.Fatalf("StartProcess() error = %v", err)
	}
	return tr
}

func TestProcessTransport_CloseLetsChildExit(t *testing.T) {
	tr := startProcess(t, ProcessConfig{Command: "cat", CloseGrace: 5 * time.Second})

	start := time.Now()
	if err := tr.Close(); err != nil {
		t.Fatalf("Close() error = %v, want clean exit on stdin EOF", err)
	}
	if d := time.Since(start); d >= 5*time.Second {
		t.Errorf("Close() took %s, waited out the grace period", d)
	}
	if !tr.cmd.ProcessState.Success() {
		t.Errorf("exit state = %s", tr.cmd.ProcessState)
	}
}

func TestProcessTransport_CloseKillsAfterGrace(t *testing.T) {
	tr := startProcess(t, ProcessConfig{
		Command:    "sleep",
		Args:       []string{"30"},
		CloseGrace: 50 * time.Millisecond,
	})

	start := time.Now()
	if err := tr.Close(); err == nil {
		t.Fatal("Close() error = nil, want the kill reported")
	}
	if d := time.Since(start); d > 10*time.Second {
		t.Errorf("Close() took %s", d)
	}
	if tr.cmd.ProcessState == nil || tr.cmd.ProcessState.Exited() {
		t.Errorf("exit state = %v, want terminated by signal", tr.cmd.ProcessState)
	}
	if err := tr.Close(); err == nil {
		t.Error("second Close() lost the first result")
	}
}

func TestStartProcess_EmptyCommand(t *testing.T) {
	if _, err := StartProcess(context.Background(), ProcessConfig{}); err == nil {
		t.Fatal("StartProcess() with empty command succeeded")
	}
}
