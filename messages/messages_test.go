package messages

import (
	"strings"
	"testing"

	"github.com/room4-2/OpenInterpret/transcript"
)

func TestParseClientMessage(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
		check   func(t *testing.T, m *ClientMessage)
	}{
		{
			name: "control",
			in:   `{"type":"control","payload":{"action":"start"}}`,
			check: func(t *testing.T, m *ClientMessage) {
				p, err := m.Control()
				if err != nil || p.Action != ActionStart {
					t.Errorf("Control() = %+v, %v", p, err)
				}
			},
		},
		{
			name: "config",
			in:   `{"type":"config","payload":{"language":"ja-JP"}}`,
			check: func(t *testing.T, m *ClientMessage) {
				p, err := m.Config()
				if err != nil || p.Language != "ja-JP" {
					t.Errorf("Config() = %+v, %v", p, err)
				}
			},
		},
		{name: "not json", in: `hello`, wantErr: true},
		{name: "no type", in: `{"payload":{}}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseClientMessage([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, m)
			}
		})
	}
}

func TestEncodeServerMessages(t *testing.T) {
	tests := []struct {
		name string
		msg  *ServerMessage
		want []string
	}{
		{
			name: "status",
			msg:  NewStatusMessage("s1", StatusPayload{Status: "connecting", Attempt: 2, MaxAttempts: 3}),
			want: []string{`"type":"status"`, `"sessionId":"s1"`, `"attempt":2`, `"maxAttempts":3`},
		},
		{
			name: "partial",
			msg:  NewPartialMessage("s1", transcript.RoleUser, "hel"),
			want: []string{`"type":"partial"`, `"role":"user"`, `"text":"hel"`},
		},
		{
			name: "pong",
			msg:  NewPongMessage("s1"),
			want: []string{`"type":"pong"`},
		},
		{
			name: "error",
			msg:  NewErrorMessage("", ErrCodeUnknownAction, "nope"),
			want: []string{`"code":"UNKNOWN_ACTION"`, `"message":"nope"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.msg.Encode()
			if err != nil {
				t.Fatal(err)
			}
			for _, w := range tt.want {
				if !strings.Contains(string(data), w) {
					t.Errorf("%s missing %s", data, w)
				}
			}
		})
	}
}
