package jps

import (
	"fmt"
	"sort"

	"github.com/beevik/etree"

	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
)

const (
	projectModuleManagerComponent  = "ProjectModuleManager"
	externalModuleManagerComponent = "ExternalProjectModuleManager"
)

// ModuleList is a ModuleListSerializer for .idea/modules.xml or the
// module list of the external storage.
type ModuleList struct {
	fileURL    fileurl.URL
	component  string
	projectDir fileurl.URL
	modulesDir fileurl.URL
	external   bool
	ctx        *SerializationContext
}

// Ensure ModuleList implements ModuleListSerializer.
var _ ModuleListSerializer = (*ModuleList)(nil)

// NewModuleList creates the serializer of .idea/modules.xml. New modules
// get an .iml file directly in projectDir.
func NewModuleList(fileURL, projectDir fileurl.URL, ctx *SerializationContext) *ModuleList {
	return &ModuleList{
		fileURL:    fileURL,
		component:  projectModuleManagerComponent,
		projectDir: projectDir,
		ctx:        ctx,
	}
}

// NewExternalModuleList creates the serializer of the external module
// list. Module files are kept in modulesDir.
func NewExternalModuleList(fileURL, modulesDir, projectDir fileurl.URL, ctx *SerializationContext) *ModuleList {
	return &ModuleList{
		fileURL:    fileURL,
		component:  externalModuleManagerComponent,
		projectDir: projectDir,
		modulesDir: modulesDir,
		external:   true,
		ctx:        ctx,
	}
}

// FileURL implements ModuleListSerializer.
func (l *ModuleList) FileURL() fileurl.URL { return l.fileURL }

// IsExternalStorage implements ModuleListSerializer.
func (l *ModuleList) IsExternalStorage() bool { return l.external }

// LoadFileList implements ModuleListSerializer. Duplicate entries are
// dropped.
func (l *ModuleList) LoadFileList(reader FileContentReader) ([]ModulePath, error) {
	comp, err := reader.LoadComponent(l.fileURL, l.component, fileurl.Empty)
	if err != nil || comp == nil {
		return nil, err
	}
	modules := comp.SelectElement("modules")
	if modules == nil {
		return nil, nil
	}
	seen := make(map[fileurl.URL]bool)
	var paths []ModulePath
	for _, m := range modules.SelectElements("module") {
		u := urlAttr(m, "fileurl")
		if u.IsEmpty() {
			u = urlAttr(m, "filepath")
		}
		if u.IsEmpty() {
			l.ctx.reporter().ReportError(fmt.Sprintf("%v: module entry without fileurl", ErrMissingAttribute), l.fileURL)
			continue
		}
		if seen[u] {
			continue
		}
		seen[u] = true
		paths = append(paths, ModulePath{File: u, Group: attr(m, "group")})
	}
	return paths, nil
}

// CreateSerializer implements ModuleListSerializer.
func (l *ModuleList) CreateSerializer(path ModulePath) FileEntitiesSerializer {
	if l.external {
		return NewExternalModuleSerializer(path, l.modulesDir, l.ctx)
	}
	return NewModuleImlSerializer(path, l.ctx)
}

// SaveModuleList implements ModuleListSerializer. Entries are written
// sorted by file URL; an empty list removes the component.
func (l *ModuleList) SaveModuleList(paths []ModulePath, writer FileContentWriter) {
	if len(paths) == 0 {
		writer.SaveComponent(l.fileURL, l.component, nil)
		return
	}
	sorted := append([]ModulePath(nil), paths...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].File < sorted[j].File })

	comp := newComponent()
	modules := comp.CreateElement("modules")
	var last fileurl.URL
	for _, p := range sorted {
		if p.File == last {
			continue
		}
		last = p.File
		modules.AddChild(modulePathElement(p))
	}
	writer.SaveComponent(l.fileURL, l.component, comp)
}

func modulePathElement(p ModulePath) *etree.Element {
	m := etree.NewElement("module")
	m.CreateAttr("fileurl", p.File.String())
	m.CreateAttr("filepath", p.File.Path())
	setAttr(m, "group", p.Group)
	return m
}

// ModuleFileURL implements ModuleListSerializer.
func (l *ModuleList) ModuleFileURL(moduleName string) fileurl.URL {
	return l.projectDir.Append(moduleName + ".iml")
}
