package transcript

import "testing"

func TestCommitOnePerDirection(t *testing.T) {
	tests := []struct {
		name   string
		input  []string
		output []string
		want   []Role
	}{
		{"both", []string{"hel", "lo"}, []string{"bon", "jour"}, []Role{RoleUser, RoleModel}},
		{"user only", []string{"hi"}, nil, []Role{RoleUser}},
		{"model only", nil, []string{"salut"}, []Role{RoleModel}},
		{"blank", []string{"  "}, []string{"\n"}, nil},
		{"empty", nil, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAccumulator()
			for _, s := range tt.input {
				a.AppendInput(s)
			}
			for _, s := range tt.output {
				a.AppendOutput(s)
			}

			turns := a.Commit()
			if len(turns) != len(tt.want) {
				t.Fatalf("got %d turns, want %d", len(turns), len(tt.want))
			}
			for i, role := range tt.want {
				if turns[i].Role != role {
					t.Errorf("turn %d role = %s, want %s", i, turns[i].Role, role)
				}
				if !turns[i].IsFinal || turns[i].ID == "" {
					t.Errorf("turn %d not finalized: %+v", i, turns[i])
				}
			}
			if in, out := a.Partial(); in != "" || out != "" {
				t.Errorf("buffers not cleared: %q %q", in, out)
			}
			if len(a.History()) != len(tt.want) {
				t.Errorf("history has %d turns", len(a.History()))
			}
		})
	}
}

func TestAppendReturnsPartial(t *testing.T) {
	a := NewAccumulator()
	if got := a.AppendOutput("Hola"); got != "Hola" {
		t.Errorf("partial = %q", got)
	}
	if got := a.AppendOutput(" mundo"); got != "Hola mundo" {
		t.Errorf("partial = %q", got)
	}
	if len(a.History()) != 0 {
		t.Error("appending must not touch history")
	}
}

func TestInterruptDiscardsModelOnly(t *testing.T) {
	a := NewAccumulator()
	a.AppendInput("tell me a story")
	a.AppendOutput("once upon")

	if dropped := a.Interrupt(); dropped != "once upon" {
		t.Errorf("dropped = %q", dropped)
	}
	in, out := a.Partial()
	if out != "" {
		t.Errorf("model buffer = %q after interrupt", out)
	}
	if in != "tell me a story" {
		t.Errorf("user buffer = %q", in)
	}

	turns := a.Commit()
	if len(turns) != 1 || turns[0].Role != RoleUser {
		t.Fatalf("turns = %+v", turns)
	}
	for _, turn := range a.History() {
		if turn.Text == "once upon" {
			t.Error("interrupted text reached history")
		}
	}
}

func TestFlushOrderAndTrim(t *testing.T) {
	a := NewAccumulator()
	a.AppendInput(" hello ")
	a.AppendOutput("world")

	turns := a.Flush()
	if len(turns) != 2 {
		t.Fatalf("got %d turns", len(turns))
	}
	if turns[0].Text != "hello" || turns[1].Text != "world" {
		t.Errorf("turns = %q, %q", turns[0].Text, turns[1].Text)
	}
	if again := a.Flush(); len(again) != 0 {
		t.Errorf("second flush produced %d turns", len(again))
	}
}

func TestAddToolOutcome(t *testing.T) {
	a := NewAccumulator()
	a.AppendOutput("drawing")
	turn := a.Add(RoleModel, "Here is your image", "data:image/png;base64,AAAA")
	if !turn.IsFinal || turn.Image == "" {
		t.Errorf("turn = %+v", turn)
	}
	if _, out := a.Partial(); out != "drawing" {
		t.Error("Add must not consume the streaming buffer")
	}
	if h := a.History(); len(h) != 1 || h[0].ID != turn.ID {
		t.Errorf("history = %+v", h)
	}
}
