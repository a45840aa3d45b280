package rcon

import (
	"time"

	"lingbot/internal/notify"
	"lingbot/internal/sched"
	"lingbot/pkg/logx"
)

// ReloadFunc re-reads configuration from its external source and applies it.
// It must leave all state untouched when it returns an error.
type ReloadFunc func() (*sched.ReloadResult, error)

// Handlers executes decoded commands against the scheduler. Each command is
// independent; adding one never touches the others.
type Handlers struct {
	sched    *sched.Scheduler
	notifier notify.Notifier
	reload   ReloadFunc
	log      logx.Logger
}

func NewHandlers(s *sched.Scheduler, notifier notify.Notifier, reload ReloadFunc, log logx.Logger) *Handlers {
	if notifier == nil {
		notifier = notify.Nop()
	}
	return &Handlers{sched: s, notifier: notifier, reload: reload, log: log}
}

// Handle runs one command to completion and produces its response.
// Validation has already happened; required fields are present.
func (h *Handlers) Handle(cmd *Command) Response {
	switch cmd.Type {
	case CmdPing:
		return Pong(cmd.Nonce)

	case CmdEcho:
		return Message(*cmd.Data, cmd.Nonce)

	case CmdNotify:
		h.notifier.Send(*cmd.Msg)
		return Success(CmdNotify, cmd.Nonce)

	case CmdListProfiles:
		return ListProfiles(h.sched.Snapshot(), cmd.Nonce)

	case CmdReschedule:
		var newTime *time.Time
		if cmd.NewTime != nil {
			t, err := ParseNewTime(*cmd.NewTime, time.Now())
			if err != nil {
				return Errorf(CmdReschedule, err.Error(), "", cmd.Nonce)
			}
			newTime = &t
		}
		t, err := h.sched.Reschedule(*cmd.Profile, newTime)
		if err != nil {
			return Errorf(CmdReschedule, err.Error(), "", cmd.Nonce)
		}
		return Rescheduled(*cmd.Profile, t, cmd.Nonce)

	case CmdCancel:
		if err := h.sched.Cancel(*cmd.Profile, false); err != nil {
			return Errorf(CmdCancel, err.Error(), "", cmd.Nonce)
		}
		return Success(CmdCancel, cmd.Nonce)

	case CmdForceCancel:
		if err := h.sched.Cancel(*cmd.Profile, true); err != nil {
			return Errorf(CmdForceCancel, err.Error(), "", cmd.Nonce)
		}
		return Success(CmdForceCancel, cmd.Nonce)

	case CmdRunNow:
		if err := h.sched.RunNow(*cmd.Profile); err != nil {
			return Errorf(CmdRunNow, err.Error(), "", cmd.Nonce)
		}
		return Success(CmdRunNow, cmd.Nonce)

	case CmdTriggerScheduler:
		h.sched.Wake()
		return Success(CmdTriggerScheduler, cmd.Nonce)

	case CmdReload:
		res, err := h.reload()
		if err != nil {
			return Errorf(CmdReload, "Failed to reload configuration", err.Error(), cmd.Nonce)
		}
		return ReloadDone(res, cmd.Nonce)
	}

	// Unreachable while validation and this switch stay in sync.
	return Errorf(cmd.Type, "unhandled command", "", cmd.Nonce)
}
