package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"e621dl/pkg/config"
	"e621dl/pkg/e621"
	"e621dl/pkg/tagfile"
)

// Category directories under the output root
const (
	DirGeneral     = "General Searches"
	DirPools       = "Pools"
	DirSets        = "Sets"
	DirSinglePosts = "Single Posts"
)

// CategoryDir returns the category directory for an entry kind
func CategoryDir(kind tagfile.Kind) string {
	switch kind {
	case tagfile.KindPool:
		return DirPools
	case tagfile.KindSet:
		return DirSets
	case tagfile.KindSinglePost:
		return DirSinglePosts
	default:
		return DirGeneral
	}
}

var sanitizer = strings.NewReplacer(
	"?", "_", ":", "_", "*", "_", "<", "_", ">", "_",
	`"`, "_", "|", "_", "/", "_", `\`, "_",
)

// Sanitize makes an entry name safe to use as a single path component
func Sanitize(name string) string {
	name = strings.TrimSpace(sanitizer.Replace(name))
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}

// Manager handles file placement and atomic writes
type Manager struct {
	baseDir string
	naming  string

	mu      sync.Mutex
	created map[string]bool

	files atomic.Int64
	bytes atomic.Int64
}

// NewManager creates a storage manager rooted at baseDir
func NewManager(baseDir, naming string) (*Manager, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	switch naming {
	case "":
		naming = config.NamingID
	case config.NamingID, config.NamingMD5:
	default:
		return nil, fmt.Errorf("unknown naming convention %q", naming)
	}
	return &Manager{
		baseDir: baseDir,
		naming:  naming,
		created: make(map[string]bool),
	}, nil
}

// EntryDir returns the directory files of one entry are written to
func (m *Manager) EntryDir(category, name string) string {
	if category == DirSinglePosts {
		return filepath.Join(m.baseDir, DirSinglePosts)
	}
	return filepath.Join(m.baseDir, category, Sanitize(name))
}

// FileName names a post's file by id or md5 followed by its extension
func (m *Manager) FileName(post e621.Post) string {
	stem := strconv.Itoa(post.ID)
	if m.naming == config.NamingMD5 && post.File.MD5 != "" {
		stem = post.File.MD5
	}
	ext := strings.TrimPrefix(post.File.Ext, ".")
	if ext == "" {
		return stem
	}
	return stem + "." + ext
}

// PathFor returns the destination path of post within dir
func (m *Manager) PathFor(dir string, post e621.Post) string {
	return filepath.Join(dir, m.FileName(post))
}

// Exists reports whether a file is already present at path
func (m *Manager) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (m *Manager) ensureDir(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.created[dir] {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	m.created[dir] = true
	return nil
}

// PendingFile is a temporary file that becomes visible at its final path on Commit
type PendingFile struct {
	m       *Manager
	f       *os.File
	final   string
	written int64
	done    bool
}

// Create opens a temporary file beside path
func (m *Manager) Create(path string) (*PendingFile, error) {
	dir := filepath.Dir(path)
	if err := m.ensureDir(dir); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	return &PendingFile{m: m, f: f, final: path}, nil
}

func (p *PendingFile) Write(b []byte) (int, error) {
	n, err := p.f.Write(b)
	p.written += int64(n)
	return n, err
}

// Path is the final destination
func (p *PendingFile) Path() string { return p.final }

// Commit flushes the file and renames it into place
func (p *PendingFile) Commit() error {
	if p.done {
		return fmt.Errorf("file %s already finished", p.final)
	}
	p.done = true

	tmp := p.f.Name()
	if err := p.f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp, p.final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	p.m.files.Add(1)
	p.m.bytes.Add(p.written)
	return nil
}

// Abort discards the temporary file. It is a no-op after Commit.
func (p *PendingFile) Abort() {
	if p.done {
		return
	}
	p.done = true
	tmp := p.f.Name()
	p.f.Close()
	os.Remove(tmp)
}

// Save writes everything from r to path atomically
func (m *Manager) Save(path string, r io.Reader) error {
	pf, err := m.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(pf, r); err != nil {
		pf.Abort()
		return fmt.Errorf("failed to save file data: %w", err)
	}
	return pf.Commit()
}

// BaseDir returns the output root
func (m *Manager) BaseDir() string { return m.baseDir }

// FilesWritten returns the number of files committed by this manager
func (m *Manager) FilesWritten() int64 { return m.files.Load() }

// BytesWritten returns the total size of committed files
func (m *Manager) BytesWritten() int64 { return m.bytes.Load() }
