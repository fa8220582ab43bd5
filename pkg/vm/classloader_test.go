package vm

import (
	"archive/zip"
	"bytes"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/daimatz/jbridge/pkg/classfile"
)

func classBytes(t *testing.T, name string) []byte {
	t.Helper()
	data, err := classfile.EncodeBytes(classfile.NewBuilder(name, "java/lang/Object").Build())
	if err != nil {
		t.Fatalf("encode %s: %v", name, err)
	}
	return data
}

func writeClass(t *testing.T, dir, name string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name)+".class")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, classBytes(t, name), 0o644); err != nil {
		t.Fatal(err)
	}
}

// writeArchive writes a jar, or a jmod when jmod is set, holding the
// named classes.
func writeArchive(t *testing.T, path string, jmod bool, names ...string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		entry := name + ".class"
		if jmod {
			entry = "classes/" + entry
		}
		w, err := zw.Create(entry)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(classBytes(t, name)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	if jmod {
		data = append([]byte("JM\x01\x00"), data...)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func loadedName(t *testing.T, cl ClassLoader, name string) string {
	t.Helper()
	cf, err := cl.LoadClass(name)
	if err != nil {
		t.Fatalf("LoadClass(%s): %v", name, err)
	}
	got, err := cf.ClassName()
	if err != nil {
		t.Fatalf("class name: %v", err)
	}
	return got
}

func TestDirClassLoader(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "Hello")
	writeClass(t, dir, "jep/Test")

	cl := NewDirClassLoader(dir, nil)

	for _, name := range []string{"Hello", "jep/Test"} {
		t.Run(name, func(t *testing.T) {
			if got := loadedName(t, cl, name); got != name {
				t.Errorf("class name: got %q, want %q", got, name)
			}
		})
	}

	t.Run("not found", func(t *testing.T) {
		_, err := cl.LoadClass("NonExistentClass")
		if !stderrors.Is(err, ErrClassNotFound) {
			t.Errorf("got %v, want ErrClassNotFound", err)
		}
	})

	t.Run("delegates to parent first", func(t *testing.T) {
		shadow := classfile.NewBuilder("Hello", "java/lang/Object").Build()
		child := NewDirClassLoader(dir, MapClassLoader{"Hello": shadow})
		cf, err := child.LoadClass("Hello")
		if err != nil {
			t.Fatal(err)
		}
		if cf != shadow {
			t.Error("got the directory class, want the parent's")
		}
		if got := loadedName(t, child, "jep/Test"); got != "jep/Test" {
			t.Errorf("fallback: got %q", got)
		}
	})

	t.Run("cache", func(t *testing.T) {
		cf1, _ := cl.LoadClass("Hello")
		cf2, _ := cl.LoadClass("Hello")
		if cf1 != cf2 {
			t.Error("expected the cached ClassFile, got a fresh parse")
		}
	})
}

func TestArchiveClassLoader(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "app.jar")
	jmod := filepath.Join(dir, "java.base.jmod")
	writeArchive(t, jar, false, "jep/Test", "Hello")
	writeArchive(t, jmod, true, "java/lang/Integer")

	tests := []struct {
		name, path, class string
	}{
		{"jar", jar, "jep/Test"},
		{"jar root package", jar, "Hello"},
		{"jmod", jmod, "java/lang/Integer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := loadedName(t, NewArchiveClassLoader(tt.path), tt.class); got != tt.class {
				t.Errorf("class name: got %q, want %q", got, tt.class)
			}
		})
	}

	t.Run("not found", func(t *testing.T) {
		_, err := NewArchiveClassLoader(jmod).LoadClass("com/nonexistent/Foo")
		if !stderrors.Is(err, ErrClassNotFound) {
			t.Errorf("got %v, want ErrClassNotFound", err)
		}
	})

	t.Run("missing archive is not ErrClassNotFound", func(t *testing.T) {
		_, err := NewArchiveClassLoader(filepath.Join(dir, "nope.jar")).LoadClass("Hello")
		if err == nil || stderrors.Is(err, ErrClassNotFound) {
			t.Errorf("got %v, want an I/O error", err)
		}
	})

	t.Run("concurrent loads share one parse", func(t *testing.T) {
		cl := NewArchiveClassLoader(jar)
		results := make([]*classfile.ClassFile, 16)
		var g errgroup.Group
		for i := range results {
			g.Go(func() error {
				cf, err := cl.LoadClass("jep/Test")
				results[i] = cf
				return err
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatal(err)
		}
		for i, cf := range results {
			if cf != results[0] {
				t.Errorf("result %d: got a different ClassFile", i)
			}
		}
	})
}

func TestClassPath(t *testing.T) {
	dir := t.TempDir()
	classes := filepath.Join(dir, "classes")
	writeClass(t, classes, "Hello")
	jar := filepath.Join(dir, "lib.jar")
	writeArchive(t, jar, false, "Hello", "lib/Util")

	cp := NewClassPath(classes, jar)
	if len(cp) != 2 {
		t.Fatalf("entries: got %d, want 2", len(cp))
	}
	if _, ok := cp[0].(*DirClassLoader); !ok {
		t.Errorf("entry 0: got %T, want *DirClassLoader", cp[0])
	}
	if _, ok := cp[1].(*ArchiveClassLoader); !ok {
		t.Errorf("entry 1: got %T, want *ArchiveClassLoader", cp[1])
	}

	t.Run("first entry wins", func(t *testing.T) {
		want, _ := cp[0].LoadClass("Hello")
		got, err := cp.LoadClass("Hello")
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Error("got the jar copy, want the directory copy")
		}
	})

	t.Run("falls through", func(t *testing.T) {
		if got := loadedName(t, cp, "lib/Util"); got != "lib/Util" {
			t.Errorf("class name: got %q", got)
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := cp.LoadClass("Missing")
		if !stderrors.Is(err, ErrClassNotFound) {
			t.Errorf("got %v, want ErrClassNotFound", err)
		}
	})

	t.Run("vm loads through the class path", func(t *testing.T) {
		v := NewVM(cp)
		c, err := v.FindClass("lib/Util")
		if err != nil {
			t.Fatal(err)
		}
		if c.Name != "lib/Util" {
			t.Errorf("class: got %s", c.Name)
		}
	})
}
