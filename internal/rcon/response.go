package rcon

import (
	"encoding/json"
	"time"

	"lingbot/internal/sched"
)

// Response tags, the closed set of response variants.
const (
	RespPong               = "pong"
	RespMessage            = "message"
	RespSuccess            = "success"
	RespError              = "error"
	RespExit               = "exit"
	RespValidationError    = "validation_error"
	RespListProfiles       = "list_profiles"
	RespProfileRescheduled = "profile_rescheduled"
	RespReload             = "reload"
)

// Exit reasons.
const (
	ExitUserRequest = "user_request"
	ExitServerError = "server_error"
)

// Response is one control protocol reply. The nonce echoes whatever the
// request carried.
type Response struct {
	Type  string `json:"type"`
	Nonce string `json:"nonce,omitempty"`

	Msg         string   `json:"msg,omitempty"`
	CommandType string   `json:"command_type,omitempty"`
	Error       string   `json:"error,omitempty"`
	Detail      string   `json:"detail,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	Errors      []string `json:"errors,omitempty"`

	Profiles map[string]sched.ProfileStatus `json:"profiles,omitempty"`
	Profile  string                         `json:"profile,omitempty"`
	NewTime  string                         `json:"new_time,omitempty"`

	*sched.ReloadResult
}

// Encode serializes the response followed by the NUL frame delimiter.
func (r Response) Encode() ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return append(b, 0), nil
}

func Pong(nonce string) Response {
	return Response{Type: RespPong, Nonce: nonce}
}

func Message(msg, nonce string) Response {
	return Response{Type: RespMessage, Nonce: nonce, Msg: msg}
}

func Success(commandType, nonce string) Response {
	return Response{Type: RespSuccess, Nonce: nonce, CommandType: commandType}
}

func Errorf(commandType, errMsg, detail, nonce string) Response {
	return Response{Type: RespError, Nonce: nonce, CommandType: commandType, Error: errMsg, Detail: detail}
}

func Exit(reason, nonce string) Response {
	return Response{Type: RespExit, Nonce: nonce, Reason: reason}
}

func ValidationError(errs []string) Response {
	return Response{Type: RespValidationError, Errors: errs}
}

func ListProfiles(profiles map[string]sched.ProfileStatus, nonce string) Response {
	return Response{Type: RespListProfiles, Nonce: nonce, Profiles: profiles}
}

func Rescheduled(profile string, newTime time.Time, nonce string) Response {
	return Response{
		Type: RespProfileRescheduled, Nonce: nonce,
		Profile: profile, NewTime: newTime.Format(time.RFC3339),
	}
}

func ReloadDone(res *sched.ReloadResult, nonce string) Response {
	return Response{Type: RespReload, Nonce: nonce, ReloadResult: res}
}
