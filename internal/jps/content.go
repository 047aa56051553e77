package jps

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"

	"github.com/dshills/jpsmodel/internal/project/vfs"
	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
)

// Names of the synthetic and root-level components handled by FileContent.
const (
	// ModuleOptionsComponent exposes the attributes of the <module> root
	// tag as <option key="" value=""/> children.
	ModuleOptionsComponent = "DeprecatedModuleOptionManager"

	componentTag = "component"
	optionTag    = "option"
)

const xmlDeclaration = `version="1.0" encoding="UTF-8"`

// FileContentReader reads components from configuration files.
type FileContentReader interface {
	// LoadComponent returns a macro-expanded copy of the named component
	// of fileURL, or nil when the file or component does not exist.
	// customModuleFilePath, when set, binds $MODULE_DIR$ to the directory
	// of that module file.
	LoadComponent(fileURL fileurl.URL, componentName string, customModuleFilePath fileurl.URL) (*etree.Element, error)
}

// FileContentWriter stages component changes for a later Flush.
type FileContentWriter interface {
	// SaveComponent replaces or inserts the named component. A nil
	// component removes it.
	SaveComponent(fileURL fileurl.URL, componentName string, component *etree.Element)
	// SetModuleFilePath binds $MODULE_DIR$ of fileURL to the directory of
	// moduleFile for collapsing.
	SetModuleFilePath(fileURL, moduleFile fileurl.URL)
	// DeleteFile stages removal of the whole file.
	DeleteFile(fileURL fileurl.URL)
}

// rootKind is the shape of a configuration file.
type rootKind int

const (
	rootProject     rootKind = iota // <project version="4"><component/>...</project>
	rootModule                      // <module version="4" type=".."><component/>...</module>
	rootApplication                 // <application><component/>...</application>
	rootComponent                   // the component itself is the root tag
)

type cachedFile struct {
	doc        *etree.Document
	err        error
	moduleFile fileurl.URL
	dirty      bool
	deleted    bool
}

// FileContentOptions configures a FileContent.
type FileContentOptions struct {
	// Macros are the project-level path macros.
	Macros *PathMacros
	// ComponentDirs hold files whose root tag is the component itself
	// (.idea/libraries, .idea/artifacts).
	ComponentDirs []fileurl.URL
	// ApplicationDirs hold application-level files.
	ApplicationDirs []fileurl.URL
	// ModuleDirs hold module files without the .iml extension, such as
	// the external storage "modules" directory.
	ModuleDirs []fileurl.URL
	// Logger receives diagnostics.
	Logger *logrus.Logger
}

// FileContent reads and writes XML configuration files through a vfs.FS.
// Parsed files are cached until Invalidate; writes are staged in the cache
// and reach the file system on Flush.
//
// FileContent is safe for concurrent use.
type FileContent struct {
	fs   vfs.FS
	opts FileContentOptions
	log  *logrus.Logger

	mu    sync.Mutex
	files map[fileurl.URL]*cachedFile
}

// Ensure FileContent implements the reader and writer.
var (
	_ FileContentReader = (*FileContent)(nil)
	_ FileContentWriter = (*FileContent)(nil)
)

// NewFileContent creates a FileContent over fsys.
func NewFileContent(fsys vfs.FS, opts FileContentOptions) *FileContent {
	if opts.Macros == nil {
		opts.Macros = NewPathMacros(nil)
	}
	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}
	return &FileContent{
		fs:    fsys,
		opts:  opts,
		log:   log,
		files: make(map[fileurl.URL]*cachedFile),
	}
}

// LoadComponent implements FileContentReader.
func (c *FileContent) LoadComponent(fileURL fileurl.URL, componentName string, customModuleFilePath fileurl.URL) (*etree.Element, error) {
	f := c.file(fileURL)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !customModuleFilePath.IsEmpty() && f.moduleFile.IsEmpty() {
		f.moduleFile = customModuleFilePath
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.doc == nil || f.doc.Root() == nil {
		return nil, nil
	}
	root := f.doc.Root()

	var found *etree.Element
	if componentName == ModuleOptionsComponent && root.Tag == "module" {
		found = optionsFromRoot(root)
	} else {
		found = findComponent(root, componentName)
		if found != nil {
			found = found.Copy()
		}
	}
	if found == nil {
		return nil, nil
	}
	macros := c.macrosFor(fileURL, f)
	expandElement(found, macros.Expand)
	return found, nil
}

// file returns the cache entry for fileURL, parsing the file on first use.
func (c *FileContent) file(fileURL fileurl.URL) *cachedFile {
	c.mu.Lock()
	if f, ok := c.files[fileURL]; ok {
		c.mu.Unlock()
		return f
	}
	c.mu.Unlock()

	loaded := &cachedFile{}
	data, err := c.fs.ReadFile(fileURL.Path())
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		loaded.err = NewFileError("read", fileURL, err)
	default:
		doc := etree.NewDocument()
		doc.ReadSettings.Permissive = false
		if err := doc.ReadFromBytes(data); err != nil {
			loaded.err = NewFileError("parse", fileURL, fmt.Errorf("%w: %v", ErrMalformedXML, err))
		} else if doc.Root() == nil {
			loaded.err = NewFileError("parse", fileURL, fmt.Errorf("%w: no root element", ErrMalformedXML))
		} else {
			loaded.doc = doc
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.files[fileURL]; ok {
		return f
	}
	c.files[fileURL] = loaded
	return loaded
}

func findComponent(root *etree.Element, name string) *etree.Element {
	if root.Tag == componentTag && root.SelectAttrValue("name", "") == name {
		return root
	}
	for _, child := range root.ChildElements() {
		if child.Tag == componentTag && child.SelectAttrValue("name", "") == name {
			return child
		}
	}
	return nil
}

func optionsFromRoot(root *etree.Element) *etree.Element {
	component := etree.NewElement(componentTag)
	component.CreateAttr("name", ModuleOptionsComponent)
	for _, attr := range root.Attr {
		if attr.Key == "version" {
			continue
		}
		opt := component.CreateElement(optionTag)
		opt.CreateAttr("key", attr.Key)
		opt.CreateAttr("value", attr.Value)
	}
	return component
}

func (c *FileContent) macrosFor(fileURL fileurl.URL, f *cachedFile) *PathMacros {
	switch {
	case !f.moduleFile.IsEmpty():
		return c.opts.Macros.With(MacroModuleDir, f.moduleFile.Parent().Path())
	case strings.HasSuffix(fileURL.Path(), ".iml"):
		return c.opts.Macros.With(MacroModuleDir, fileURL.Parent().Path())
	}
	return c.opts.Macros
}

func (c *FileContent) kindOf(fileURL fileurl.URL) rootKind {
	parent := fileURL.Parent()
	if strings.HasSuffix(fileURL.Path(), ".iml") {
		return rootModule
	}
	for _, d := range c.opts.ModuleDirs {
		if parent == d {
			return rootModule
		}
	}
	for _, d := range c.opts.ComponentDirs {
		if parent == d {
			return rootComponent
		}
	}
	for _, d := range c.opts.ApplicationDirs {
		if fileURL.IsUnder(d) {
			return rootApplication
		}
	}
	return rootProject
}

func newRoot(kind rootKind) *etree.Element {
	switch kind {
	case rootModule:
		el := etree.NewElement("module")
		el.CreateAttr("version", "4")
		return el
	case rootApplication:
		return etree.NewElement("application")
	case rootComponent:
		return nil
	}
	el := etree.NewElement("project")
	el.CreateAttr("version", "4")
	return el
}

// SetModuleFilePath implements FileContentWriter.
func (c *FileContent) SetModuleFilePath(fileURL, moduleFile fileurl.URL) {
	f := c.file(fileURL)
	c.mu.Lock()
	defer c.mu.Unlock()
	f.moduleFile = moduleFile
}

// SaveComponent implements FileContentWriter.
func (c *FileContent) SaveComponent(fileURL fileurl.URL, componentName string, component *etree.Element) {
	f := c.file(fileURL)

	c.mu.Lock()
	defer c.mu.Unlock()
	kind := c.kindOf(fileURL)
	if component == nil && (f.doc == nil || f.err != nil || f.deleted) {
		return
	}
	if f.doc == nil || f.err != nil || f.deleted {
		if f.err != nil {
			c.log.WithFields(logrus.Fields{"file": fileURL.String()}).Warn("overwriting unreadable file")
		}
		f.doc = etree.NewDocument()
		if root := newRoot(kind); root != nil {
			f.doc.SetRoot(root)
		}
		f.err = nil
		f.deleted = false
	}
	f.dirty = true

	macros := c.macrosFor(fileURL, f)
	var collapsed *etree.Element
	if component != nil {
		collapsed = component.Copy()
		collapsed.Tag = componentTag
		collapsed.RemoveAttr("name")
		attrs := collapsed.Attr
		collapsed.Attr = nil
		collapsed.CreateAttr("name", componentName)
		for _, a := range attrs {
			collapsed.CreateAttr(a.FullKey(), a.Value)
		}
		expandElement(collapsed, macros.Collapse)
	}

	root := f.doc.Root()
	if root == nil || kind == rootComponent || root.Tag == componentTag {
		if collapsed == nil {
			if root != nil && root.SelectAttrValue("name", "") == componentName {
				f.doc.RemoveChild(root)
			}
			return
		}
		if root != nil {
			f.doc.RemoveChild(root)
		}
		f.doc.SetRoot(collapsed)
		return
	}

	if componentName == ModuleOptionsComponent && root.Tag == "module" {
		setRootOptions(root, collapsed)
		return
	}

	existing := findComponent(root, componentName)
	switch {
	case collapsed == nil && existing != nil:
		root.RemoveChild(existing)
	case collapsed == nil:
	case existing != nil:
		idx := existing.Index()
		root.RemoveChild(existing)
		root.InsertChildAt(idx, collapsed)
	default:
		root.InsertChildAt(insertIndex(root, componentName), collapsed)
	}
}

// insertIndex keeps components sorted by name.
func insertIndex(root *etree.Element, name string) int {
	for _, child := range root.ChildElements() {
		if child.Tag == componentTag && child.SelectAttrValue("name", "") > name {
			return child.Index()
		}
	}
	return len(root.Child)
}

// setRootOptions rewrites the <module> attributes from an options
// component. The version attribute is kept and written last.
func setRootOptions(root, component *etree.Element) {
	version := root.SelectAttrValue("version", "4")
	root.Attr = nil
	if component != nil {
		for _, opt := range component.SelectElements(optionTag) {
			key := opt.SelectAttrValue("key", "")
			if key == "" || key == "version" {
				continue
			}
			root.CreateAttr(key, opt.SelectAttrValue("value", ""))
		}
	}
	root.CreateAttr("version", version)
}

// DeleteFile implements FileContentWriter.
func (c *FileContent) DeleteFile(fileURL fileurl.URL) {
	f := c.file(fileURL)
	c.mu.Lock()
	defer c.mu.Unlock()
	f.doc = nil
	f.err = nil
	f.deleted = true
	f.dirty = true
}

// Invalidate drops cached content of files that have no staged changes, so
// the next load reads them again.
func (c *FileContent) Invalidate(urls ...fileurl.URL) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range urls {
		if f, ok := c.files[u]; ok && !f.dirty {
			delete(c.files, u)
		}
	}
}

// Flush writes every staged change to the file system. Files whose
// rendered content equals the content on disk are not rewritten. It
// returns the URLs that were written or removed.
func (c *FileContent) Flush() ([]fileurl.URL, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	urls := make([]fileurl.URL, 0, len(c.files))
	for u, f := range c.files {
		if f.dirty {
			urls = append(urls, u)
		}
	}
	sort.Slice(urls, func(i, j int) bool { return urls[i] < urls[j] })

	var touched []fileurl.URL
	var errs []error
	for _, u := range urls {
		f := c.files[u]
		p := u.Path()
		if f.deleted || f.doc == nil || isEmptyRoot(f.doc.Root()) {
			if c.fs.Exists(p) {
				if err := c.fs.Remove(p); err != nil {
					errs = append(errs, NewFileError("remove", u, err))
					continue
				}
				touched = append(touched, u)
			}
			delete(c.files, u)
			continue
		}
		data, err := render(f.doc.Root())
		if err != nil {
			errs = append(errs, NewFileError("render", u, err))
			continue
		}
		if old, err := c.fs.ReadFile(p); err == nil && bytes.Equal(old, data) {
			f.dirty = false
			continue
		}
		if err := c.fs.WriteFile(p, data); err != nil {
			errs = append(errs, NewFileError("write", u, err))
			continue
		}
		f.dirty = false
		touched = append(touched, u)
		c.log.WithFields(logrus.Fields{"file": u.String()}).Debug("wrote configuration file")
	}
	return touched, errors.Join(errs...)
}

// isEmptyRoot reports whether a file has nothing left to store. Module
// files are kept while they exist, even without components.
func isEmptyRoot(root *etree.Element) bool {
	if root == nil {
		return true
	}
	return (root.Tag == "project" || root.Tag == "application") && len(root.ChildElements()) == 0
}

// render produces the canonical bytes of a file with the given root.
func render(root *etree.Element) ([]byte, error) {
	doc := etree.NewDocument()
	if root.Tag != componentTag {
		doc.CreateProcInst("xml", xmlDeclaration)
	}
	doc.SetRoot(root.Copy())
	doc.Indent(2)
	data, err := doc.WriteToBytes()
	if err != nil {
		return nil, err
	}
	return append(bytes.TrimRight(data, "\n"), '\n'), nil
}

// elementToString serializes el without indentation for storage in an
// entity field.
func elementToString(el *etree.Element) string {
	if el == nil {
		return ""
	}
	doc := etree.NewDocument()
	c := el.Copy()
	stripWhitespace(c)
	doc.SetRoot(c)
	s, err := doc.WriteToString()
	if err != nil {
		return ""
	}
	return s
}

func stripWhitespace(el *etree.Element) {
	if len(el.ChildElements()) > 0 {
		var blank []etree.Token
		for _, tok := range el.Child {
			if cd, ok := tok.(*etree.CharData); ok && isBlank(cd.Data) {
				blank = append(blank, tok)
			}
		}
		for _, tok := range blank {
			el.RemoveChild(tok)
		}
	}
	for _, child := range el.ChildElements() {
		stripWhitespace(child)
	}
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }

// parseElement parses an XML fragment produced by elementToString.
func parseElement(s string) (*etree.Element, error) {
	if s == "" {
		return nil, nil
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString(s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedXML, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: empty fragment", ErrMalformedXML)
	}
	return root, nil
}
