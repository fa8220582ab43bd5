package vm

import (
	"archive/zip"
	"bytes"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/daimatz/jbridge/pkg/classfile"
)

// ErrClassNotFound is wrapped by loaders when a class is absent, as opposed
// to present but unreadable.
var ErrClassNotFound = stderrors.New("class not found")

// ClassLoader loads .class files by internal class name. Implementations
// must be safe for concurrent use.
type ClassLoader interface {
	LoadClass(name string) (*classfile.ClassFile, error)
}

// ArchiveClassLoader loads classes from a jar or a JDK jmod file.
type ArchiveClassLoader struct {
	Path string

	mu        sync.Mutex
	cache     map[string]*classfile.ClassFile
	zipReader *zip.Reader
	prefix    string
}

// NewArchiveClassLoader creates a loader for the archive at path.
func NewArchiveClassLoader(path string) *ArchiveClassLoader {
	return &ArchiveClassLoader{
		Path:  path,
		cache: make(map[string]*classfile.ClassFile),
	}
}

func (cl *ArchiveClassLoader) ensureZipReader() error {
	if cl.zipReader != nil {
		return nil
	}

	data, err := os.ReadFile(cl.Path)
	if err != nil {
		return fmt.Errorf("archive: reading %s: %w", cl.Path, err)
	}

	// jmod files are zips behind a 4 byte "JM\x01\x00" header and keep
	// classes under classes/.
	if bytes.HasPrefix(data, []byte("JM")) {
		data = data[4:]
		cl.prefix = "classes/"
	}
	cl.zipReader, err = zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("archive: opening zip %s: %w", cl.Path, err)
	}
	return nil
}

func (cl *ArchiveClassLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cf, ok := cl.cache[name]; ok {
		return cf, nil
	}
	if err := cl.ensureZipReader(); err != nil {
		return nil, err
	}

	target := cl.prefix + name + ".class"
	rc, err := cl.zipReader.Open(target)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("archive: %s in %s: %w", name, cl.Path, ErrClassNotFound)
		}
		return nil, fmt.Errorf("archive: opening %s: %w", target, err)
	}
	defer rc.Close()

	cf, err := classfile.Parse(rc)
	if err != nil {
		return nil, fmt.Errorf("archive: parsing %s: %w", name, err)
	}
	cl.cache[name] = cf
	return cf, nil
}

// DirClassLoader loads classes from a directory tree, delegating to the
// parent first when one is set.
type DirClassLoader struct {
	Dir    string
	Parent ClassLoader

	mu    sync.Mutex
	cache map[string]*classfile.ClassFile
}

// NewDirClassLoader creates a new DirClassLoader.
func NewDirClassLoader(dir string, parent ClassLoader) *DirClassLoader {
	return &DirClassLoader{
		Dir:    dir,
		Parent: parent,
		cache:  make(map[string]*classfile.ClassFile),
	}
}

func (cl *DirClassLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	if cl.Parent != nil {
		if cf, err := cl.Parent.LoadClass(name); err == nil {
			return cf, nil
		}
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cf, ok := cl.cache[name]; ok {
		return cf, nil
	}

	path := filepath.Join(cl.Dir, filepath.FromSlash(name)+".class")
	cf, err := classfile.ParseFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("dir: %s in %s: %w", name, cl.Dir, ErrClassNotFound)
		}
		return nil, fmt.Errorf("dir: loading %s: %w", name, err)
	}
	cl.cache[name] = cf
	return cf, nil
}

// ClassPath searches its loaders in order.
type ClassPath []ClassLoader

// NewClassPath builds a ClassPath from directory, jar and jmod entries.
func NewClassPath(entries ...string) ClassPath {
	var cp ClassPath
	for _, e := range entries {
		switch strings.ToLower(filepath.Ext(e)) {
		case ".jar", ".jmod", ".zip":
			cp = append(cp, NewArchiveClassLoader(e))
		default:
			cp = append(cp, NewDirClassLoader(e, nil))
		}
	}
	return cp
}

func (cp ClassPath) LoadClass(name string) (*classfile.ClassFile, error) {
	for _, l := range cp {
		cf, err := l.LoadClass(name)
		if err == nil {
			return cf, nil
		}
		if !stderrors.Is(err, ErrClassNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s: %w", name, ErrClassNotFound)
}

// MapClassLoader serves classes held in memory, keyed by internal name.
type MapClassLoader map[string]*classfile.ClassFile

func (m MapClassLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	if cf, ok := m[name]; ok {
		return cf, nil
	}
	return nil, fmt.Errorf("%s: %w", name, ErrClassNotFound)
}
