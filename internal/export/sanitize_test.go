package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"control chars dropped", " A\nB\rC\tD\x00 ", 100, "ABCD"},
		{"allowed kept", "Az09 -_.,()", 100, "Az09 -_.,()"},
		{"separators replaced", "Reel: take/2", 100, "Reel_ take_2"},
		{"emoji replaced", "Alice 😂", 100, "Alice _"},
		{"leading dots removed", "../../etc/passwd", 100, "_.._etc_passwd"},
		{"hidden file", ".reel", 100, "reel"},
		{"only dots", "...", 100, ""},
		{"truncated then trimmed", "abcdefghi jklmnop", 10, "abcdefghi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeName(tt.in, tt.maxLen); got != tt.want {
				t.Fatalf("SanitizeName(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name  string
		title string
		id    string
		ext   string
		want  string
	}{
		{"library entry", "My Reel: take/2", "0a1b2c3d-0000-0000-0000-000000000000", ".mp4", "My Reel_ take_2_0a1b2c3d.mp4"},
		{"short id", "Reel", "ab12", ".mp4", "Reel_ab12.mp4"},
		{"project output", "Trailer Reactions", "", ".mp4", "Trailer Reactions.mp4"},
		{"edl", "Reel", "", "edl", "Reel.edl"},
		{"empty title", "  ", "", ".mp4", "reel.mp4"},
		{"traversal title", "..", "", ".mp4", "reel.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FileName(tt.title, tt.id, tt.ext); got != tt.want {
				t.Fatalf("FileName(%q, %q, %q) = %q, want %q", tt.title, tt.id, tt.ext, got, tt.want)
			}
		})
	}

	long := FileName(strings.Repeat("x", 200), "", ".mp4")
	if len(long) != MaxFileTitleLen+len(".mp4") {
		t.Fatalf("long title produced %d byte name", len(long))
	}
}

func TestValidateOutputDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateOutputDir(dir); err != nil {
		t.Fatalf("ValidateOutputDir(%q) error = %v", dir, err)
	}

	tests := []struct {
		name    string
		dir     string
		wantMsg string
	}{
		{"empty", " ", "required"},
		{"missing", filepath.Join(dir, "missing"), "does not exist"},
		{"traversal", "/tmp/../etc", "cannot contain .."},
		{"unclean", dir + "/./sub", "clean path"},
		{"not a directory", file, "not a directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputDir(tt.dir)
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("ValidateOutputDir(%q) error = %v, want %q", tt.dir, err, tt.wantMsg)
			}
			if strings.Contains(err.Error(), "output_dir") {
				t.Fatalf("error %q uses the request field name", err)
			}
		})
	}
}

func TestValidateOutputPath(t *testing.T) {
	dir := t.TempDir()
	if err := ValidateOutputPath(filepath.Join(dir, "reel.mp4")); err != nil {
		t.Fatalf("ValidateOutputPath() error = %v", err)
	}

	existing := filepath.Join(dir, "old.mp4")
	if err := os.WriteFile(existing, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ValidateOutputPath(existing); err != nil {
		t.Fatalf("existing file should be overwritable, got %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantMsg string
	}{
		{"empty", "", "output path is required"},
		{"directory", dir, "is a directory"},
		{"trailing slash", dir + "/", "does not name a file"},
		{"missing directory", filepath.Join(dir, "nope", "reel.mp4"), "does not exist"},
		{"traversal", filepath.Join(dir, "sub") + "/../reel.mp4", "cannot contain .."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputPath(tt.path)
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("ValidateOutputPath(%q) error = %v, want %q", tt.path, err, tt.wantMsg)
			}
		})
	}
}
