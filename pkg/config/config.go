// Package config handles javavm.toml execution options.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/daimatz/javavm/pkg/link"
)

// FileName is the name of the configuration file.
const FileName = "javavm.toml"

// Config represents a javavm.toml file.
type Config struct {
	Link   Link   `toml:"link"`
	Loader Loader `toml:"loader"`
	Trace  Trace  `toml:"trace"`
	Log    Log    `toml:"log"`

	// Dir is the directory containing the javavm.toml file (set at load time).
	Dir string `toml:"-"`
}

// Link configures the checks performed while resolving references.
type Link struct {
	CheckAccess            bool `toml:"check_access"`
	CheckNullAndAbstract   bool `toml:"check_null_and_abstract"`
	InitializeOnStaticCall bool `toml:"initialize_on_static_call"`
	StrictAccess           bool `toml:"strict_access"`
}

// Loader configures where classes come from.
type Loader struct {
	Jmod      string   `toml:"jmod"`
	Classpath []string `toml:"classpath"`
	Defs      []string `toml:"defs"`
}

// Trace configures stack traces and the frame stack.
type Trace struct {
	MaxDepth      int `toml:"max_depth"`
	MaxFrameDepth int `toml:"max_frame_depth"`
}

// Log configures logging.
type Log struct {
	Verbosity int `toml:"verbosity"`
}

// Default returns the options used without a configuration file.
func Default() *Config {
	opts := link.DefaultOptions()
	return &Config{
		Link: Link{
			CheckAccess:            opts.CheckAccess,
			CheckNullAndAbstract:   opts.CheckNullAndAbstract,
			InitializeOnStaticCall: opts.InitializeOnStaticCall,
		},
		Dir: ".",
	}
}

// Parse decodes a configuration on top of the defaults.
func Parse(data []byte) (*Config, error) {
	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %s", undecoded[0])
	}
	if c.Trace.MaxDepth < 0 || c.Trace.MaxFrameDepth < 0 {
		return nil, fmt.Errorf("trace depths must not be negative")
	}
	return c, nil
}

// Load parses a javavm.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a javavm.toml file, then
// loads it. Without one it returns the defaults.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return Default(), nil
		}
		dir = parent
	}
}

// LinkOptions returns the linker options.
func (c *Config) LinkOptions() link.Options {
	return link.Options{
		CheckAccess:            c.Link.CheckAccess,
		CheckNullAndAbstract:   c.Link.CheckNullAndAbstract,
		InitializeOnStaticCall: c.Link.InitializeOnStaticCall,
	}
}

// ClasspathPaths returns the classpath with relative entries resolved
// against the configuration directory.
func (c *Config) ClasspathPaths() []string {
	return c.paths(c.Loader.Classpath)
}

// DefsPaths returns the class definition files, resolved like the
// classpath.
func (c *Config) DefsPaths() []string {
	return c.paths(c.Loader.Defs)
}

func (c *Config) paths(in []string) []string {
	var out []string
	for _, p := range in {
		if !filepath.IsAbs(p) {
			p = filepath.Join(c.Dir, p)
		}
		out = append(out, p)
	}
	return out
}

// JmodPath locates java.base.jmod: the configured path, then
// JAVA_BASE_JMOD, then JAVA_HOME, then the usual OpenJDK install
// locations. It returns "" when none exists.
func (c *Config) JmodPath() string {
	// 1. Configuration
	if c.Loader.Jmod != "" {
		if filepath.IsAbs(c.Loader.Jmod) {
			return c.Loader.Jmod
		}
		return filepath.Join(c.Dir, c.Loader.Jmod)
	}
	// 2. Explicit env var
	if env := os.Getenv("JAVA_BASE_JMOD"); env != "" {
		return env
	}
	// 3. JAVA_HOME
	if javaHome := os.Getenv("JAVA_HOME"); javaHome != "" {
		p := filepath.Join(javaHome, "jmods", "java.base.jmod")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	// 4. Glob fallback
	matches, _ := filepath.Glob("/usr/lib/jvm/java-*-openjdk-*/jmods/java.base.jmod")
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}
