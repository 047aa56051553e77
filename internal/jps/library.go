package jps

import (
	"sort"
	"strings"

	"github.com/beevik/etree"

	"github.com/dshills/jpsmodel/internal/workspace/entity"
	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
	"github.com/dshills/jpsmodel/internal/workspace/storage"
)

const (
	libraryTableComponent = "libraryTable"
	libraryTag            = "library"
	externalSystemIDAttr  = "external-system-id"
)

// loadLibrary adds a library entity for a <library> tag as a root of b.
func loadLibrary(b *storage.Builder, tag *etree.Element, name string, table entity.LibraryTableID, source entity.Source) storage.ID {
	lib := &entity.Library{Name: name, Table: table, Source: source}

	recursive := make(map[[2]string]bool)
	for _, jd := range tag.SelectElements("jarDirectory") {
		typ := attr(jd, "type")
		if typ == "" {
			typ = string(entity.RootTypeClasses)
		}
		recursive[[2]string{typ, attr(jd, "url")}] = boolAttr(jd, "recursive")
	}

	var excluded []fileurl.URL
	var props *etree.Element
	for _, child := range tag.ChildElements() {
		switch child.Tag {
		case "properties":
			props = child
		case "jarDirectory":
		case "excluded":
			for _, root := range child.SelectElements("root") {
				excluded = append(excluded, urlAttr(root, "url"))
			}
		default:
			typ := entity.LibraryRootType(child.Tag)
			for _, root := range child.SelectElements("root") {
				url := attr(root, "url")
				inclusion := entity.RootItself
				if rec, ok := recursive[[2]string{child.Tag, url}]; ok {
					inclusion = entity.ArchivesUnderRoot
					if rec {
						inclusion = entity.ArchivesUnderRootRecursively
					}
				}
				lib.Roots = append(lib.Roots, entity.LibraryRoot{URL: fileurl.Parse(url), Type: typ, Inclusion: inclusion})
			}
		}
	}

	id := b.Add(lib)
	if typ := attr(tag, "type"); typ != "" {
		b.AddChild(id, &entity.LibraryProperties{
			LibraryType:   typ,
			PropertiesXML: elementToString(props),
			Source:        source,
		})
	}
	for _, u := range excluded {
		b.AddChild(id, &entity.ExcludeURL{URL: u, Source: source})
	}
	return id
}

// libraryElement renders a library. An empty name omits the attribute.
func libraryElement(r storage.Reader, id storage.ID, name, externalSystemID string) *etree.Element {
	lib, _ := storage.Get[*entity.Library](r, id)
	tag := etree.NewElement(libraryTag)
	setAttr(tag, "name", name)

	props, hasProps := storage.ChildOf[*entity.LibraryProperties](r, id)
	if hasProps {
		setAttr(tag, "type", props.Entity.LibraryType)
	}
	setAttr(tag, externalSystemIDAttr, externalSystemID)
	if hasProps && props.Entity.PropertiesXML != "" {
		if el, err := parseElement(props.Entity.PropertiesXML); err == nil {
			tag.AddChild(el)
		}
	}

	byType := map[string][]entity.LibraryRoot{
		string(entity.RootTypeClasses): nil,
		string(entity.RootTypeJavadoc): nil,
		string(entity.RootTypeSources): nil,
	}
	for _, root := range lib.Roots {
		byType[string(root.Type)] = append(byType[string(root.Type)], root)
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	var jarDirs []entity.LibraryRoot
	for _, t := range types {
		group := tag.CreateElement(t)
		roots := byType[t]
		sort.SliceStable(roots, func(i, j int) bool {
			return strings.ToLower(roots[i].URL.String()) < strings.ToLower(roots[j].URL.String())
		})
		for _, root := range roots {
			group.CreateElement("root").CreateAttr("url", root.URL.String())
			if root.Inclusion != entity.RootItself {
				jarDirs = append(jarDirs, root)
			}
		}
	}

	if excluded := storage.ChildrenOf[*entity.ExcludeURL](r, id); len(excluded) > 0 {
		ex := tag.CreateElement("excluded")
		for _, e := range excluded {
			ex.CreateElement("root").CreateAttr("url", e.Entity.URL.String())
		}
	}

	sort.SliceStable(jarDirs, func(i, j int) bool {
		ti, tj := strings.ToLower(string(jarDirs[i].Type)), strings.ToLower(string(jarDirs[j].Type))
		if ti != tj {
			return ti < tj
		}
		return strings.ToLower(jarDirs[i].URL.String()) < strings.ToLower(jarDirs[j].URL.String())
	})
	for _, root := range jarDirs {
		jd := tag.CreateElement("jarDirectory")
		jd.CreateAttr("url", root.URL.String())
		jd.CreateAttr("recursive", boolString(root.Inclusion == entity.ArchivesUnderRootRecursively))
		if root.Type != entity.RootTypeClasses {
			jd.CreateAttr("type", string(root.Type))
		}
	}
	return tag
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// libraryFileSerializer handles one file of .idea/libraries.
type libraryFileSerializer struct {
	fileURL fileurl.URL
	source  entity.DirectorySource
}

func (s *libraryFileSerializer) InternalEntitySource() entity.Source { return s.source }
func (s *libraryFileSerializer) FileURL() fileurl.URL                { return s.fileURL }
func (s *libraryFileSerializer) MainEntityKind() entity.Kind         { return entity.KindLibrary }
func (s *libraryFileSerializer) IsExternalStorage() bool             { return false }

func (s *libraryFileSerializer) LoadEntities(reader FileContentReader, _ ErrorReporter) LoadResult {
	res := newLoadResult()
	comp, err := reader.LoadComponent(s.fileURL, libraryTableComponent, fileurl.Empty)
	if err != nil {
		res.Err = err
		return res
	}
	if comp == nil {
		return res
	}
	for _, tag := range comp.SelectElements(libraryTag) {
		src := entity.Imported(s.source, attr(tag, externalSystemIDAttr), false)
		loadLibrary(res.Builder, tag, attr(tag, "name"), entity.ProjectLibraryTable, src)
	}
	return res
}

func (s *libraryFileSerializer) SaveEntities(ids []storage.ID, r storage.Reader, writer FileContentWriter) error {
	comp := newComponent()
	for _, id := range ids {
		lib, ok := storage.Get[*entity.Library](r, id)
		if !ok {
			continue
		}
		comp.AddChild(libraryElement(r, id, lib.Name, entity.ExternalSystemID(lib.Source)))
	}
	writer.SaveComponent(s.fileURL, libraryTableComponent, comp)
	return nil
}

func (s *libraryFileSerializer) DeleteObsoleteFile(writer FileContentWriter) {
	writer.SaveComponent(s.fileURL, libraryTableComponent, nil)
}

// LibrariesDirectoryFactory creates serializers for .idea/libraries.
type LibrariesDirectoryFactory struct {
	Directory fileurl.URL
}

// DirectoryURL implements DirectorySerializerFactory.
func (f *LibrariesDirectoryFactory) DirectoryURL() fileurl.URL { return f.Directory }

// MainEntityKind implements DirectorySerializerFactory.
func (f *LibrariesDirectoryFactory) MainEntityKind() entity.Kind { return entity.KindLibrary }

// CreateSerializer implements DirectorySerializerFactory.
func (f *LibrariesDirectoryFactory) CreateSerializer(fileURL fileurl.URL, source entity.DirectorySource) FileEntitiesSerializer {
	return &libraryFileSerializer{fileURL: fileURL, source: source}
}

// FileNameFor implements DirectorySerializerFactory.
func (f *LibrariesDirectoryFactory) FileNameFor(e entity.Entity) string {
	if lib, ok := e.(*entity.Library); ok {
		return SanitizeFileName(lib.Name) + ".xml"
	}
	return ""
}

// LibraryTableSerializer handles a file holding a whole library table:
// the external project/libraries.xml or the global
// applicationLibraries.xml.
type LibraryTableSerializer struct {
	fileURL  fileurl.URL
	table    entity.LibraryTableID
	internal entity.Source
	external bool
}

// NewExternalLibrariesSerializer creates the serializer of the external
// storage library table.
func NewExternalLibrariesSerializer(fileURL fileurl.URL, project entity.ProjectLocation) *LibraryTableSerializer {
	return &LibraryTableSerializer{
		fileURL:  fileURL,
		table:    entity.ProjectLibraryTable,
		internal: entity.FileSource{File: fileURL, Project: project},
		external: true,
	}
}

// NewGlobalLibrariesSerializer creates the serializer of the application
// library table.
func NewGlobalLibrariesSerializer(fileURL fileurl.URL) *LibraryTableSerializer {
	return &LibraryTableSerializer{
		fileURL:  fileURL,
		table:    entity.ApplicationLibraryTable,
		internal: entity.GlobalSource{File: fileURL},
	}
}

// InternalEntitySource implements FileEntitiesSerializer.
func (s *LibraryTableSerializer) InternalEntitySource() entity.Source { return s.internal }

// FileURL implements FileEntitiesSerializer.
func (s *LibraryTableSerializer) FileURL() fileurl.URL { return s.fileURL }

// MainEntityKind implements FileEntitiesSerializer.
func (s *LibraryTableSerializer) MainEntityKind() entity.Kind { return entity.KindLibrary }

// IsExternalStorage implements FileEntitiesSerializer.
func (s *LibraryTableSerializer) IsExternalStorage() bool { return s.external }

func (s *LibraryTableSerializer) sourceFor(externalSystemID string) entity.Source {
	if !s.external {
		return s.internal
	}
	return entity.ImportedSource{Internal: s.internal, ExternalSystemID: externalSystemID, StoredExternally: true}
}

// LoadEntities implements FileEntitiesSerializer.
func (s *LibraryTableSerializer) LoadEntities(reader FileContentReader, _ ErrorReporter) LoadResult {
	res := newLoadResult()
	comp, err := reader.LoadComponent(s.fileURL, libraryTableComponent, fileurl.Empty)
	if err != nil {
		res.Err = err
		return res
	}
	if comp == nil {
		return res
	}
	for _, tag := range comp.SelectElements(libraryTag) {
		loadLibrary(res.Builder, tag, attr(tag, "name"), s.table, s.sourceFor(attr(tag, externalSystemIDAttr)))
	}
	return res
}

// SaveEntities implements FileEntitiesSerializer. Libraries are written
// sorted by name.
func (s *LibraryTableSerializer) SaveEntities(ids []storage.ID, r storage.Reader, writer FileContentWriter) error {
	type named struct {
		id  storage.ID
		lib *entity.Library
	}
	var libs []named
	for _, id := range ids {
		if lib, ok := storage.Get[*entity.Library](r, id); ok {
			libs = append(libs, named{id: id, lib: lib})
		}
	}
	sort.SliceStable(libs, func(i, j int) bool { return libs[i].lib.Name < libs[j].lib.Name })

	comp := newComponent()
	for _, l := range libs {
		ext := ""
		if s.external {
			ext = entity.ExternalSystemID(l.lib.Source)
		}
		comp.AddChild(libraryElement(r, l.id, l.lib.Name, ext))
	}
	writer.SaveComponent(s.fileURL, libraryTableComponent, comp)
	return nil
}

// DeleteObsoleteFile implements FileEntitiesSerializer.
func (s *LibraryTableSerializer) DeleteObsoleteFile(writer FileContentWriter) {
	writer.SaveComponent(s.fileURL, libraryTableComponent, nil)
}
