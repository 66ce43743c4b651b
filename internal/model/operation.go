package model

import (
	"time"
)

// Operation kinds.
const (
	OpBuild = "build"
	OpFlash = "flash"
)

// Operation statuses. Success and failed are terminal.
const (
	OpPending = "pending"
	OpRunning = "running"
	OpSuccess = "success"
	OpFailed  = "failed"
)

// Operation is one long-running build or flash job tracked in memory.
type Operation struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	DeviceName   string    `json:"device_name,omitempty"`
	Status       string    `json:"status"`
	Progress     int       `json:"progress"`
	Message      string    `json:"message,omitempty"`
	FirmwarePath string    `json:"firmware_path,omitempty"`
	Logs         string    `json:"logs,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Terminal reports whether the operation has reached a sink state.
func (o *Operation) Terminal() bool {
	return o.Status == OpSuccess || o.Status == OpFailed
}

// SetStatus advances the lifecycle. Transitions out of a terminal state and
// backward transitions are ignored.
func (o *Operation) SetStatus(status string) bool {
	if o.Terminal() {
		return false
	}
	if status == OpPending && o.Status == OpRunning {
		return false
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return true
}

// SetProgress raises the progress percentage. Progress never decreases
// while the operation runs.
func (o *Operation) SetProgress(percent int) {
	if percent > o.Progress {
		o.Progress = percent
		o.UpdatedAt = time.Now()
	}
}
