// Package rcon is the local control protocol: a unix socket speaking
// NUL-delimited JSON frames, one command/response pair at a time per
// connection. It is the process's only external control surface.
package rcon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"
)

// Command tags, the closed set of request variants.
const (
	CmdPing             = "ping"
	CmdEcho             = "echo"
	CmdExit             = "exit"
	CmdNotify           = "notify"
	CmdListProfiles     = "list_profiles"
	CmdReschedule       = "reschedule"
	CmdCancel           = "cancel"
	CmdForceCancel      = "force_cancel"
	CmdRunNow           = "run_now"
	CmdTriggerScheduler = "trigger_scheduler"
	CmdReload           = "reload"
)

const maxNotifyLen = 512

// Command is one decoded control request. Fields that are required only for
// some command types are pointers so a missing field is distinguishable from
// an empty one.
type Command struct {
	Type  string `json:"type"`
	Nonce string `json:"nonce,omitempty"`

	Data    *string `json:"data,omitempty"`     // echo
	Msg     *string `json:"msg,omitempty"`      // notify
	Profile *string `json:"profile,omitempty"`  // reschedule, cancel, force_cancel, run_now
	NewTime *string `json:"new_time,omitempty"` // reschedule, optional
}

// ParseCommand decodes and validates one frame. A non-nil error list means
// the frame is invalid and the connection must be terminated after the
// validation_error response.
func ParseCommand(frame []byte) (*Command, []string) {
	var c Command
	dec := json.NewDecoder(bytes.NewReader(frame))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return nil, []string{err.Error()}
	}
	if errs := c.validate(); len(errs) > 0 {
		return nil, errs
	}
	return &c, nil
}

func (c *Command) validate() []string {
	var errs []string
	switch c.Type {
	case CmdPing, CmdExit, CmdListProfiles, CmdTriggerScheduler, CmdReload:
	case CmdEcho:
		if c.Data == nil {
			errs = append(errs, "data: field required")
		}
	case CmdNotify:
		switch {
		case c.Msg == nil:
			errs = append(errs, "msg: field required")
		case *c.Msg == "":
			errs = append(errs, "msg: must not be empty")
		case utf8.RuneCountInString(*c.Msg) > maxNotifyLen:
			errs = append(errs, fmt.Sprintf("msg: longer than %d characters", maxNotifyLen))
		}
	case CmdReschedule:
		if c.Profile == nil || *c.Profile == "" {
			errs = append(errs, "profile: field required")
		}
		if c.NewTime != nil {
			if _, err := ParseNewTime(*c.NewTime, time.Now()); err != nil {
				errs = append(errs, "new_time: "+err.Error())
			}
		}
	case CmdCancel, CmdForceCancel, CmdRunNow:
		if c.Profile == nil || *c.Profile == "" {
			errs = append(errs, "profile: field required")
		}
	case "":
		errs = append(errs, "type: field required")
	default:
		errs = append(errs, fmt.Sprintf("type: unknown command %q", c.Type))
	}
	return errs
}

// ParseNewTime accepts either a full RFC 3339 timestamp or a bare "HH:MM"
// clock time, which is resolved against now's calendar day.
func ParseNewTime(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("15:04", s, now.Location()); err == nil {
		y, m, d := now.Date()
		return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, now.Location()), nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q, expected RFC 3339 or HH:MM", s)
}
