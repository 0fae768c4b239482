package bot

import "testing"

func TestIsMenuTrigger(t *testing.T) {
	tests := []struct {
		input  string
		prefix string
		want   bool
	}{
		{"!menu", "!", true},
		{"!anything", "!", true},
		{"menu", "!", true},
		{"MENU", "!", true},
		{"Menu", "!", true},
		{"menus", "!", false},
		{"hello", "!", false},
		{"1", "!", false},
		{"#menu", "#", true},
		{"!menu", "#", false},
	}

	for _, tt := range tests {
		if got := IsMenuTrigger(tt.input, tt.prefix); got != tt.want {
			t.Errorf("IsMenuTrigger(%q, %q) = %v, want %v", tt.input, tt.prefix, got, tt.want)
		}
	}
}

func TestStepTransitions(t *testing.T) {
	tests := []struct {
		name        string
		state       State
		input       string
		wantNext    State
		wantHandled bool
		wantReply   string
	}{
		{"trigger from idle", StateIdle, "!menu", StateMainMenu, true, mainMenuText},
		{"trigger from main menu", StateMainMenu, "menu", StateMainMenu, true, mainMenuText},
		{"trigger from settings", StateSettings, "!menu", StateMainMenu, true, mainMenuText},

		{"status option", StateMainMenu, "1", StateMainMenu, true, statusText},
		{"settings option", StateMainMenu, "2", StateSettings, true, settingsText},
		{"back from settings", StateSettings, "0", StateMainMenu, true, mainMenuText},

		{"free text in idle", StateIdle, "hello there", StateIdle, false, ""},
		{"free text in main menu", StateMainMenu, "what is this", StateMainMenu, false, ""},
		{"free text in settings", StateSettings, "5", StateSettings, false, ""},
		{"option 1 in idle is chat", StateIdle, "1", StateIdle, false, ""},
		{"option 0 in main menu is chat", StateMainMenu, "0", StateMainMenu, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Step(tt.state, tt.input, "!")
			if res.Next != tt.wantNext {
				t.Errorf("Next = %s, want %s", res.Next, tt.wantNext)
			}
			if res.Handled != tt.wantHandled {
				t.Errorf("Handled = %v, want %v", res.Handled, tt.wantHandled)
			}
			if res.Reply != tt.wantReply {
				t.Errorf("Reply = %q, want %q", res.Reply, tt.wantReply)
			}
		})
	}
}

func TestStepExitOptionFallsThrough(t *testing.T) {
	// "3" (exit) has no dedicated transition: the menu does not consume
	// it, so it reaches the AI layer like any other text.
	res := Step(StateMainMenu, "3", "!")
	if res.Handled {
		t.Fatal("expected option 3 to fall through to chat")
	}
	if res.Next != StateMainMenu {
		t.Fatalf("Next = %s, want %s", res.Next, StateMainMenu)
	}
}
