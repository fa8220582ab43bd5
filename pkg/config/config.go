// Package config handles jbridge.toml runtime configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/daimatz/jbridge/pkg/vm"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "jbridge.toml"

// Config is a jbridge.toml configuration.
type Config struct {
	Runtime Runtime `toml:"runtime"`
	Bridge  Bridge  `toml:"bridge"`
	Log     Log     `toml:"log"`

	// Dir is the directory containing the file (set at load time).
	Dir string `toml:"-"`
}

// Runtime configures the guest VM.
type Runtime struct {
	// ClassPath lists directories, jars and jmods searched for classes,
	// relative to Dir unless absolute.
	ClassPath []string `toml:"classpath"`
	// Jmod is the java.base.jmod appended to the class path. When empty it
	// is looked up from the environment.
	Jmod string `toml:"jmod"`
	// GCInterval is the period of the background collector. Zero leaves
	// collection to explicit calls.
	GCInterval time.Duration `toml:"gc-interval"`
}

// Bridge configures host conversions.
type Bridge struct {
	// WrapIntegers wraps out-of-range integer arguments instead of
	// rejecting them.
	WrapIntegers bool `toml:"wrap-integers"`
}

// Log configures the zap logger.
type Log struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Default returns the configuration used without a file.
func Default() *Config {
	return &Config{
		Runtime: Runtime{ClassPath: []string{"."}},
		Log:     Log{Level: "info"},
	}
}

// Load parses the configuration file at path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	if len(c.Runtime.ClassPath) == 0 {
		c.Runtime.ClassPath = []string{"."}
	}
	if c.Runtime.GCInterval < 0 {
		return nil, fmt.Errorf("%s: gc-interval must not be negative", path)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a jbridge.toml file and
// loads it. Without one it returns the defaults rooted at startDir.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	start := dir

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			c := Default()
			c.Dir = start
			return c, nil
		}
		dir = parent
	}
}

// ClassPathEntries returns the class path with relative entries resolved
// against Dir.
func (c *Config) ClassPathEntries() []string {
	var paths []string
	for _, e := range c.Runtime.ClassPath {
		if !filepath.IsAbs(e) && c.Dir != "" {
			e = filepath.Join(c.Dir, e)
		}
		paths = append(paths, e)
	}
	return paths
}

// FindJmod locates java.base.jmod: the JAVA_BASE_JMOD variable, then
// JAVA_HOME, then the usual OpenJDK install locations. It returns "" when
// none exists.
func FindJmod() string {
	if env := os.Getenv("JAVA_BASE_JMOD"); env != "" {
		return env
	}
	if javaHome := os.Getenv("JAVA_HOME"); javaHome != "" {
		p := filepath.Join(javaHome, "jmods", "java.base.jmod")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	matches, _ := filepath.Glob("/usr/lib/jvm/java-*-openjdk-*/jmods/java.base.jmod")
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}

// ClassLoader builds the loader for the configured class path. The jmod,
// configured or found, is searched last; without one only the built-in
// classes back the class path.
func (c *Config) ClassLoader() vm.ClassLoader {
	entries := c.ClassPathEntries()
	jmod := c.Runtime.Jmod
	if jmod == "" {
		jmod = FindJmod()
	}
	if jmod != "" {
		entries = append(entries, jmod)
	}
	return vm.NewClassPath(entries...)
}

// Logger builds the zap logger described by the log section.
func (l Log) Logger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", l.Level, err)
	}
	cfg := zap.NewProductionConfig()
	if l.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = level
	return cfg.Build()
}
