package tui

// Keybinding constants
const (
	KeyQuit     = "q"
	KeyCtrlC    = "ctrl+c"
	KeyEnter    = "enter"
	KeyEsc      = "esc"
	KeyBack     = "b"
	KeyUp       = "up"
	KeyDown     = "down"
	KeyJ        = "j"
	KeyK        = "k"
	KeySettings = "s"
)

// HelpView returns a one-line help bar for the current phase.
func HelpView(p phase) string {
	switch p {
	case phaseRunning:
		return StyleHelp.Render("running... | q: quit")
	case phaseReport:
		return StyleHelp.Render("j/k: scroll | b/esc: choose another policy | q: quit")
	}
	return StyleHelp.Render("j/k: move | enter: run | s: settings | q: quit")
}
