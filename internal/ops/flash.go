package ops

import (
	"context"

	"cactusd/internal/log"
	"cactusd/internal/model"
	"cactusd/internal/ota"
)

// RunFlash executes one firmware delivery and drives the operation's
// lifecycle: pending -> running -> success/failed. It is the single
// writer for its operation id.
func RunFlash(ctx context.Context, tracker *Tracker, opID, firmwarePath, host string, otaPort int, opts ota.Options) (bool, string) {
	tracker.Update(opID, func(op *model.Operation) {
		op.SetStatus(model.OpRunning)
		op.FirmwarePath = firmwarePath
	})

	callerProgress := opts.OnProgress
	opts.OnProgress = func(p ota.Progress) {
		tracker.Update(opID, func(op *model.Operation) {
			op.SetProgress(p.Percent)
			op.Message = p.Message
		})
		if callerProgress != nil {
			callerProgress(p)
		}
	}

	ok, message := ota.Flash(ctx, firmwarePath, host, otaPort, opts)

	tracker.Update(opID, func(op *model.Operation) {
		if ok {
			op.SetStatus(model.OpSuccess)
			op.SetProgress(100)
		} else {
			op.SetStatus(model.OpFailed)
		}
		op.Message = message
	})

	if ok {
		log.Info("Flash operation succeeded", "operation", opID, "host", host, "port", otaPort)
	} else {
		log.Warn("Flash operation failed", "operation", opID, "host", host, "message", message)
	}
	return ok, message
}
