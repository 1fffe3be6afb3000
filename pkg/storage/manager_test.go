package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"e621dl/pkg/e621"
	"e621dl/pkg/tagfile"
)

func testPost(id int, md5, ext string) e621.Post {
	return e621.Post{ID: id, File: e621.File{MD5: md5, Ext: ext}}
}

func TestManagerSave(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(tempDir, "")
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if manager.FilesWritten() != 0 {
		t.Error("Expected initial file count to be 0")
	}

	dir := manager.EntryDir(DirGeneral, "wolf -comic")
	path := manager.PathFor(dir, testPost(42, "abc", "png"))
	if manager.Exists(path) {
		t.Error("Expected Exists to return false before saving")
	}

	testData := []byte("test image data")
	if err := manager.Save(path, bytes.NewReader(testData)); err != nil {
		t.Fatalf("Failed to save file: %v", err)
	}

	expectedPath := filepath.Join(tempDir, "General Searches", "wolf -comic", "42.png")
	if path != expectedPath {
		t.Errorf("Expected path %s, got %s", expectedPath, path)
	}

	content, err := os.ReadFile(expectedPath)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if !bytes.Equal(content, testData) {
		t.Error("File content does not match expected data")
	}

	if !manager.Exists(path) {
		t.Error("Expected Exists to return true after saving")
	}
	if manager.FilesWritten() != 1 {
		t.Errorf("Expected 1 file written, got %d", manager.FilesWritten())
	}
	if manager.BytesWritten() != int64(len(testData)) {
		t.Errorf("Expected %d bytes written, got %d", len(testData), manager.BytesWritten())
	}

	entries, _ := os.ReadDir(filepath.Dir(expectedPath))
	if len(entries) != 1 {
		t.Errorf("Expected only the final file in the directory, found %d entries", len(entries))
	}
}

func TestPendingFileAbort(t *testing.T) {
	manager, err := NewManager(t.TempDir(), "id")
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	path := manager.PathFor(manager.EntryDir(DirPools, "My Comic"), testPost(1, "", "jpg"))
	pf, err := manager.Create(path)
	if err != nil {
		t.Fatalf("Failed to create pending file: %v", err)
	}
	pf.Write([]byte("partial"))
	pf.Abort()
	pf.Abort()

	if manager.Exists(path) {
		t.Error("Aborted file must not appear at its final path")
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 0 {
		t.Errorf("Expected temporary file to be removed, found %d entries", len(entries))
	}
	if err := pf.Commit(); err == nil {
		t.Error("Expected Commit after Abort to fail")
	}
}

func TestFileNaming(t *testing.T) {
	byID, _ := NewManager(t.TempDir(), "id")
	byMD5, _ := NewManager(t.TempDir(), "md5")

	post := testPost(1234, "d41d8cd98f00b204e9800998ecf8427e", "webm")
	if got := byID.FileName(post); got != "1234.webm" {
		t.Errorf("Expected 1234.webm, got %s", got)
	}
	if got := byMD5.FileName(post); got != "d41d8cd98f00b204e9800998ecf8427e.webm" {
		t.Errorf("Expected md5 name, got %s", got)
	}
	if got := byMD5.FileName(testPost(5, "", "png")); got != "5.png" {
		t.Errorf("Expected fallback to id, got %s", got)
	}

	if _, err := NewManager(t.TempDir(), "sha1"); err == nil {
		t.Error("Expected unknown naming convention to be rejected")
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"wolf -comic", "wolf -comic"},
		{`a?b:c*d<e>f"g|h/i\j`, "a_b_c_d_e_f_g_h_i_j"},
		{"rating:s fav:me", "rating_s fav_me"},
		{"  ", "_"},
		{"..", "_"},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEntryDirLayout(t *testing.T) {
	base := t.TempDir()
	manager, _ := NewManager(base, "")

	if got := manager.EntryDir(CategoryDir(tagfile.KindSet), "Best/Of"); got != filepath.Join(base, "Sets", "Best_Of") {
		t.Errorf("unexpected set dir %s", got)
	}
	if got := manager.EntryDir(CategoryDir(tagfile.KindSinglePost), "42"); got != filepath.Join(base, "Single Posts") {
		t.Errorf("single posts share one directory, got %s", got)
	}
	if got := CategoryDir(tagfile.KindTag); got != DirGeneral {
		t.Errorf("unexpected tag category %s", got)
	}
	if !strings.HasPrefix(manager.EntryDir(DirPools, "x"), base) {
		t.Error("entry dir must be under the base directory")
	}
}
