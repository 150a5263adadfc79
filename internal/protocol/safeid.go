// Package protocol implements the sideband file protocol between the arena
// orchestrator and its agent processes: per-agent status files (agent-written,
// orchestrator-read), per-agent control signals (orchestrator-written,
// agent-consumed), and the consolidated session document.
package protocol

import "strings"

// SafeAgentID normalizes a raw model ID into a filesystem-safe form used for
// status and control file names. Path-hostile characters are replaced with a
// dash. Two distinct raw IDs that collide after normalization must be
// rejected by the caller, since they would map to the same file path.
func SafeAgentID(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
