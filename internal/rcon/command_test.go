package rcon

import (
	"strings"
	"testing"
	"time"
)

func TestParseCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		frame   string
		wantTyp string
		wantErr string // substring of the first validation error
	}{
		{name: "ping", frame: `{"type":"ping"}`, wantTyp: CmdPing},
		{name: "ping with nonce", frame: `{"type":"ping","nonce":"a1"}`, wantTyp: CmdPing},
		{name: "echo", frame: `{"type":"echo","data":"hello"}`, wantTyp: CmdEcho},
		{name: "echo missing data", frame: `{"type":"echo"}`, wantErr: "data: field required"},
		{name: "notify", frame: `{"type":"notify","msg":"hi"}`, wantTyp: CmdNotify},
		{name: "notify empty msg", frame: `{"type":"notify","msg":""}`, wantErr: "msg: must not be empty"},
		{name: "notify too long", frame: `{"type":"notify","msg":"` + strings.Repeat("x", 513) + `"}`, wantErr: "longer than 512"},
		{name: "cancel", frame: `{"type":"cancel","profile":"alice"}`, wantTyp: CmdCancel},
		{name: "cancel missing profile", frame: `{"type":"cancel"}`, wantErr: "profile: field required"},
		{name: "reschedule hhmm", frame: `{"type":"reschedule","profile":"a","new_time":"18:30"}`, wantTyp: CmdReschedule},
		{name: "reschedule rfc3339", frame: `{"type":"reschedule","profile":"a","new_time":"2026-03-14T18:30:00Z"}`, wantTyp: CmdReschedule},
		{name: "reschedule bad time", frame: `{"type":"reschedule","profile":"a","new_time":"tomorrow"}`, wantErr: "new_time:"},
		{name: "unknown type", frame: `{"type":"dance"}`, wantErr: "unknown command"},
		{name: "missing type", frame: `{}`, wantErr: "type: field required"},
		{name: "unknown field", frame: `{"type":"ping","bogus":1}`, wantErr: "bogus"},
		{name: "not json", frame: `ping please`, wantErr: "invalid character"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cmd, errs := ParseCommand([]byte(tt.frame))
			if tt.wantErr != "" {
				if len(errs) == 0 {
					t.Fatalf("expected validation errors, got command %+v", cmd)
				}
				if !strings.Contains(errs[0], tt.wantErr) {
					t.Fatalf("error %q does not contain %q", errs[0], tt.wantErr)
				}
				return
			}
			if errs != nil {
				t.Fatalf("unexpected validation errors: %v", errs)
			}
			if cmd.Type != tt.wantTyp {
				t.Fatalf("type = %s, want %s", cmd.Type, tt.wantTyp)
			}
		})
	}
}

func TestParseNewTime(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.Local)

	got, err := ParseNewTime("18:30", now)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 3, 14, 18, 30, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Fatalf("HH:MM resolved to %v, want %v", got, want)
	}

	got, err = ParseNewTime("2026-03-15T08:00:00Z", now)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("RFC3339 resolved to %v", got)
	}

	if _, err := ParseNewTime("soon", now); err == nil {
		t.Fatal("expected error for unparseable time")
	}
}
