package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		in      string
		want    Action
		wantErr bool
	}{
		{"", ActionDelete, false},
		{"delete", ActionDelete, false},
		{"Quarantine", ActionQuarantine, false},
		{" report ", ActionReport, false},
		{"shred", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAction(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAction(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAction(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRemediator_Delete(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "src/leak.env", "x")

	got, err := Remediator{Action: ActionDelete, Root: root}.Apply("src/leak.env")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoFileExists(t, path)

	// Already gone is not an error.
	_, err = Remediator{Action: ActionDelete, Root: root}.Apply("src/leak.env")
	assert.NoError(t, err)
}

func TestRemediator_Quarantine(t *testing.T) {
	root := t.TempDir()
	quarantine := filepath.Join(t.TempDir(), "q")
	path := writeFile(t, root, "src/leak.env", "secret")

	got, err := Remediator{Action: ActionQuarantine, Root: root, QuarantineDir: quarantine}.Apply("src/leak.env")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(quarantine, "src", "leak.env"), got)
	assert.NoFileExists(t, path)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "secret", string(data))
}

func TestRemediator_QuarantineEscape(t *testing.T) {
	root := t.TempDir()
	_, err := Remediator{Action: ActionQuarantine, Root: root, QuarantineDir: filepath.Join(root, "q")}.Apply("../outside")
	assert.Error(t, err)

	_, err = Remediator{Action: ActionQuarantine, Root: root}.Apply("a")
	assert.Error(t, err)
}

func TestRemediator_Report(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "leak.env", "x")

	got, err := Remediator{Action: ActionReport, Root: root}.Apply("leak.env")
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.FileExists(t, path)
}
