package protocol

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelarena/arena/internal/models"
)

func TestSafeAgentID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain", raw: "gpt-4o", want: "gpt-4o"},
		{name: "slash", raw: "org/model", want: "org-model"},
		{name: "colon", raw: "org:model", want: "org-model"},
		{name: "spaces", raw: "my model v2", want: "my-model-v2"},
		{name: "dots kept", raw: "claude-3.5", want: "claude-3.5"},
		{name: "windows hostile", raw: `a\b*c?d`, want: "a-b-c-d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeAgentID(tt.raw); got != tt.want {
				t.Errorf("SafeAgentID(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestReadStatusFileMissing(t *testing.T) {
	sf, err := ReadStatusFile(t.TempDir(), "gpt-4o")
	if err != nil {
		t.Fatalf("missing file should not error, got %v", err)
	}
	if sf != nil {
		t.Fatalf("missing file should yield nil status, got %+v", sf)
	}
}

func TestStatusFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := &models.StatusFile{
		Status: models.FileStatusCompleted,
		Stats:  models.AgentStats{Rounds: 3, ToolCalls: 7},
		Error:  "",
	}
	if err := WriteStatusFile(dir, "m-a", in); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := ReadStatusFile(dir, "m-a")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out == nil || out.Status != models.FileStatusCompleted || out.Stats.ToolCalls != 7 {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestReadStatusFileMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(StatusFilePath(dir, "bad"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadStatusFile(dir, "bad"); err == nil {
		t.Error("malformed status file should error")
	}
}

func TestControlSignalConsumeDeletes(t *testing.T) {
	dir := t.TempDir()
	if err := WriteControlSignal(dir, "m-a", models.ControlStop, "session timeout"); err != nil {
		t.Fatalf("write: %v", err)
	}

	sig, err := ConsumeControlSignal(dir, "m-a")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if sig == nil || sig.Type != models.ControlStop || sig.Reason != "session timeout" {
		t.Fatalf("unexpected signal: %+v", sig)
	}
	if sig.Timestamp == 0 {
		t.Error("timestamp not set")
	}

	// Second consume finds nothing.
	sig, err = ConsumeControlSignal(dir, "m-a")
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if sig != nil {
		t.Errorf("signal should be deleted after consume, got %+v", sig)
	}
}

func TestWriteSessionFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")

	sf := &models.SessionFile{
		ArenaSessionID: "s-1",
		SourceRepoPath: "/tmp/repo",
		WorktreeNames:  []string{"m-a", "m-b"},
		CreatedAt:      100,
		UpdatedAt:      200,
		Agents: map[string]models.StatusFile{
			"m-a": {Status: models.FileStatusRunning},
		},
	}
	if err := WriteSessionFileAtomic(path, sf); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The rename target must always be parseable JSON.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var parsed models.SessionFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("session file not valid JSON: %v", err)
	}
	if parsed.ArenaSessionID != "s-1" || len(parsed.Agents) != 1 {
		t.Errorf("unexpected content: %+v", parsed)
	}

	// Overwrite leaves no temp files behind.
	sf.UpdatedAt = 300
	if err := WriteSessionFileAtomic(path, sf); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only session.json in dir, found %d entries", len(entries))
	}
}

func TestReadSessionFileMissing(t *testing.T) {
	sf, err := ReadSessionFile(filepath.Join(t.TempDir(), "session.json"))
	if err != nil || sf != nil {
		t.Errorf("missing session file should be (nil, nil), got %+v, %v", sf, err)
	}
}
