package vm

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/daimatz/javavm/pkg/classfile"
)

// ErrClassNotFound is wrapped by every loader when a class does not exist.
var ErrClassNotFound = errors.New("class not found")

// ClassLoader loads .class files by class name.
type ClassLoader interface {
	LoadClass(name string) (*classfile.ClassFile, error)
}

// classCache memoizes parsed classes and collapses concurrent loads of the
// same name into one parse.
type classCache struct {
	mu     sync.RWMutex
	loaded map[string]*classfile.ClassFile
	group  singleflight.Group
}

func (c *classCache) load(name string, fn func() (*classfile.ClassFile, error)) (*classfile.ClassFile, error) {
	c.mu.RLock()
	cf, ok := c.loaded[name]
	c.mu.RUnlock()
	if ok {
		return cf, nil
	}

	v, err, _ := c.group.Do(name, func() (any, error) {
		cf, err := fn()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.loaded == nil {
			c.loaded = make(map[string]*classfile.ClassFile)
		}
		c.loaded[name] = cf
		c.mu.Unlock()
		return cf, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*classfile.ClassFile), nil
}

// JmodClassLoader loads classes from a JDK jmod file.
type JmodClassLoader struct {
	JmodPath string

	cache   classCache
	once    sync.Once
	openErr error
	entries map[string]*zip.File
}

// NewJmodClassLoader creates a new JmodClassLoader.
func NewJmodClassLoader(jmodPath string) *JmodClassLoader {
	return &JmodClassLoader{JmodPath: jmodPath}
}

func (cl *JmodClassLoader) open() error {
	cl.once.Do(func() {
		data, err := os.ReadFile(cl.JmodPath)
		if err != nil {
			cl.openErr = fmt.Errorf("jmod: opening %s: %w", cl.JmodPath, err)
			return
		}
		if len(data) < 4 || !bytes.HasPrefix(data, []byte("JM")) {
			cl.openErr = fmt.Errorf("jmod: %s: missing JM header", cl.JmodPath)
			return
		}
		zipData := data[4:] // Skip "JM\x01\x00" header
		zr, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
		if err != nil {
			cl.openErr = fmt.Errorf("jmod: opening zip: %w", err)
			return
		}
		cl.entries = make(map[string]*zip.File, len(zr.File))
		for _, f := range zr.File {
			if name, ok := strings.CutPrefix(f.Name, "classes/"); ok && strings.HasSuffix(name, ".class") {
				cl.entries[strings.TrimSuffix(name, ".class")] = f
			}
		}
		log.Debugf("jmod %s: indexed %d classes", cl.JmodPath, len(cl.entries))
	})
	return cl.openErr
}

func (cl *JmodClassLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	return cl.cache.load(name, func() (*classfile.ClassFile, error) {
		if err := cl.open(); err != nil {
			return nil, err
		}
		file, ok := cl.entries[name]
		if !ok {
			return nil, fmt.Errorf("jmod: %s in %s: %w", name, cl.JmodPath, ErrClassNotFound)
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("jmod: opening %s: %w", file.Name, err)
		}
		defer rc.Close()

		cf, err := classfile.Parse(rc)
		if err != nil {
			return nil, fmt.Errorf("jmod: parsing %s: %w", name, err)
		}
		return cf, nil
	})
}

// UserClassLoader loads user classes from the classpath, delegating to the parent first.
type UserClassLoader struct {
	ClassPath string
	Parent    ClassLoader

	cache classCache
}

// NewUserClassLoader creates a new UserClassLoader. parent may be nil.
func NewUserClassLoader(classPath string, parent ClassLoader) *UserClassLoader {
	return &UserClassLoader{ClassPath: classPath, Parent: parent}
}

func (cl *UserClassLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	if cl.Parent != nil {
		if cf, err := cl.Parent.LoadClass(name); err == nil {
			return cf, nil
		}
	}
	return cl.cache.load(name, func() (*classfile.ClassFile, error) {
		path := filepath.Join(cl.ClassPath, filepath.FromSlash(name)+".class")
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("user: %s: %w", name, ErrClassNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("user: %w", err)
		}
		defer f.Close()
		cf, err := classfile.Parse(f)
		if err != nil {
			return nil, fmt.Errorf("user: parsing %s: %w", name, err)
		}
		return cf, nil
	})
}

// MapClassLoader serves class files held in memory, such as synthetic
// bootstrap classes and classes built from definitions.
type MapClassLoader struct {
	mu      sync.RWMutex
	classes map[string]*classfile.ClassFile
}

// NewMapClassLoader creates a loader serving the given class files.
func NewMapClassLoader(classes ...*classfile.ClassFile) (*MapClassLoader, error) {
	cl := &MapClassLoader{classes: make(map[string]*classfile.ClassFile)}
	for _, cf := range classes {
		if err := cl.Add(cf); err != nil {
			return nil, err
		}
	}
	return cl, nil
}

// Add registers a class file under its own name, replacing any earlier one.
func (cl *MapClassLoader) Add(cf *classfile.ClassFile) error {
	name, err := cf.ClassName()
	if err != nil {
		return fmt.Errorf("map: %w", err)
	}
	cl.mu.Lock()
	cl.classes[name] = cf
	cl.mu.Unlock()
	return nil
}

func (cl *MapClassLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	if cf, ok := cl.classes[name]; ok {
		return cf, nil
	}
	return nil, fmt.Errorf("map: %s: %w", name, ErrClassNotFound)
}

// ChainClassLoader asks each loader in turn and returns the first class
// found. Errors other than ErrClassNotFound stop the search.
type ChainClassLoader []ClassLoader

func (c ChainClassLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	for _, l := range c {
		if l == nil {
			continue
		}
		cf, err := l.LoadClass(name)
		if err == nil {
			return cf, nil
		}
		if !errors.Is(err, ErrClassNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s: %w", name, ErrClassNotFound)
}
