// Package ui provides terminal output formatting for the testbox CLI.
//
// All output goes to ui.Out (defaults to os.Stderr) so that stdout stays free
// for the commands testbox runs. Tests swap Out for a buffer.
//
// Example usage:
//
//	ui.Header()
//	ui.Info("Starting %d fixtures", len(specs))
//	ui.Fixture("db", "postgres:16-alpine", map[int]string{5432: "localhost:49153"})
//	ui.Footer()
//
// Output styling:
//   - Info:    → Cyan arrow
//   - Success: ✔ Green checkmark
//   - Fail:    ✘ Red X
//   - Warn:    ○ Yellow circle
package ui
