package bot

import "strings"

// Menu texts mirror the original bot's wording.
const (
	mainMenuText = "*Main Menu* 🏠\n\n1️⃣ Status\n2️⃣ Settings\n3️⃣ Exit"
	settingsText = "*Settings*\n\n0️⃣ Back"
	statusText   = "🟢 System: Active"

	// SessionExpiredNotice is sent when the inactivity timeout fires.
	SessionExpiredNotice = "_Session expired. Type !menu to start again._"
)

// StepResult is the outcome of one state-machine evaluation.
type StepResult struct {
	Next  State
	Reply string
	// Handled reports whether the menu layer consumed the input. When
	// false the dispatcher falls through to AI-chat handling and Next
	// equals the current state.
	Handled bool
}

// IsMenuTrigger reports whether the normalized input summons the main menu:
// it starts with the command prefix or equals the literal keyword "menu"
// case-insensitively. Triggers take priority over everything else.
func IsMenuTrigger(input, prefix string) bool {
	if prefix != "" && strings.HasPrefix(input, prefix) {
		return true
	}
	return strings.EqualFold(input, "menu")
}

// Step evaluates one (state, input) pair against the transition table.
// It is pure: the dispatcher owns timeout handling and persistence.
//
//	any state        trigger  -> MAIN_MENU     (main menu)
//	MAIN_MENU        "1"      -> MAIN_MENU     (status)
//	MAIN_MENU        "2"      -> SETTINGS_MENU (settings)
//	SETTINGS_MENU    "0"      -> MAIN_MENU     (main menu again)
//	anything else             -> unchanged, not handled
func Step(current State, input, prefix string) StepResult {
	if IsMenuTrigger(input, prefix) {
		return StepResult{Next: StateMainMenu, Reply: mainMenuText, Handled: true}
	}

	switch current {
	case StateMainMenu:
		switch input {
		case "1":
			return StepResult{Next: StateMainMenu, Reply: statusText, Handled: true}
		case "2":
			return StepResult{Next: StateSettings, Reply: settingsText, Handled: true}
		}
	case StateSettings:
		if input == "0" {
			return StepResult{Next: StateMainMenu, Reply: mainMenuText, Handled: true}
		}
	}

	return StepResult{Next: current}
}
