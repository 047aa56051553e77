package jps

import (
	"sort"

	"github.com/beevik/etree"

	"github.com/dshills/jpsmodel/internal/workspace/entity"
	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
	"github.com/dshills/jpsmodel/internal/workspace/storage"
)

const (
	artifactManagerComponent = "ArtifactManager"
	artifactTag              = "artifact"
	packagingRootTag         = "root"
	packagingElementTag      = "element"
	plainArtifactType        = "plain"
)

func loadArtifacts(b *storage.Builder, comp *etree.Element, sourceFor func(externalSystemID string) entity.Source) {
	var order []string
	for _, tag := range comp.SelectElements(artifactTag) {
		name := attr(tag, "name")
		order = append(order, name)
		source := sourceFor(attr(tag, externalSystemIDAttr))

		typ := attr(tag, "type")
		if typ == "" {
			typ = plainArtifactType
		}
		art := &entity.Artifact{
			Name:                  name,
			ArtifactType:          typ,
			IncludeInProjectBuild: boolAttr(tag, "build-on-make"),
			Source:                source,
		}
		if out := tag.SelectElement("output-path"); out != nil {
			if text := out.Text(); text != "" {
				art.OutputURL = fileurl.Parse(text)
			}
		}
		id := b.Add(art)
		if root := tag.SelectElement(packagingRootTag); root != nil {
			loadPackagingElement(b, id, root, source)
		}
		for _, props := range tag.SelectElements("properties") {
			p := &entity.ArtifactProperties{ProviderType: attr(props, "id"), Source: source}
			if children := props.ChildElements(); len(children) > 0 {
				p.PropertiesXML = elementToString(children[0])
			}
			b.AddChild(id, p)
		}
	}
	if len(order) > 0 {
		b.Add(&entity.ArtifactsOrder{Order: order, Source: entity.NonPersistentSource{}})
	}
}

func loadPackagingElement(b *storage.Builder, parent storage.ID, tag *etree.Element, source entity.Source) {
	id := b.AddChild(parent, packagingElementFromTag(tag, source))
	e, _ := b.Entity(id)
	if pe, ok := e.(entity.PackagingElement); ok && entity.IsComposite(pe) {
		for _, child := range tag.SelectElements(packagingElementTag) {
			loadPackagingElement(b, id, child, source)
		}
	}
}

func optionalModule(tag *etree.Element) *entity.ModuleID {
	if name := attr(tag, "name"); name != "" {
		return &entity.ModuleID{Name: name}
	}
	return nil
}

// packagingElementFromTag dispatches on the id attribute. Unknown ids keep
// the verbatim tag, children included.
func packagingElementFromTag(tag *etree.Element, source entity.Source) entity.PackagingElement {
	switch id := attr(tag, "id"); id {
	case entity.ElementRoot:
		return &entity.ArtifactRootElement{Source: source}
	case entity.ElementDirectory:
		return &entity.DirectoryElement{DirectoryName: attr(tag, "name"), Source: source}
	case entity.ElementArchive:
		return &entity.ArchiveElement{FileName: attr(tag, "name"), Source: source}
	case entity.ElementDirectoryCopy:
		return &entity.DirectoryCopyElement{FilePath: attr(tag, "path"), Source: source}
	case entity.ElementFileCopy:
		return &entity.FileCopyElement{
			FilePath:              attr(tag, "path"),
			RenamedOutputFileName: attr(tag, "output-file-name"),
			Source:                source,
		}
	case entity.ElementExtractedDir:
		return &entity.ExtractedDirectoryElement{
			FilePath:      attr(tag, "path"),
			PathInArchive: attr(tag, "path-in-jar"),
			Source:        source,
		}
	case entity.ElementArtifactOutput:
		el := &entity.ArtifactOutputElement{Source: source}
		if name := attr(tag, "artifact-name"); name != "" {
			el.Artifact = &entity.ArtifactID{Name: name}
		}
		return el
	case entity.ElementModuleOutput:
		return &entity.ModuleOutputElement{Module: optionalModule(tag), Source: source}
	case entity.ElementModuleTestOutput:
		return &entity.ModuleTestOutputElement{Module: optionalModule(tag), Source: source}
	case entity.ElementModuleSource:
		return &entity.ModuleSourceElement{Module: optionalModule(tag), Source: source}
	case entity.ElementLibraryFiles:
		el := &entity.LibraryFilesElement{Source: source}
		if name := attr(tag, "name"); name != "" {
			table := entity.LibraryTableFromLevel(attr(tag, "level"))
			if module := attr(tag, "module-name"); module != "" {
				table = entity.ModuleLibraryTable(module)
			}
			el.Library = &entity.LibraryID{Name: name, Table: table}
		}
		return el
	default:
		return &entity.CustomElement{ElementTypeID: id, ElementXML: elementToString(tag), Source: source}
	}
}

func packagingElementTagFor(r storage.Reader, id storage.ID, tagName string) *etree.Element {
	e, _ := r.Entity(id)
	pe, ok := e.(entity.PackagingElement)
	if !ok {
		return nil
	}
	if custom, ok := pe.(*entity.CustomElement); ok {
		el, err := parseElement(custom.ElementXML)
		if err == nil && el != nil {
			el.Tag = tagName
			return el
		}
	}

	tag := etree.NewElement(tagName)
	tag.CreateAttr("id", pe.TypeID())
	switch v := pe.(type) {
	case *entity.DirectoryElement:
		tag.CreateAttr("name", v.DirectoryName)
	case *entity.ArchiveElement:
		tag.CreateAttr("name", v.FileName)
	case *entity.DirectoryCopyElement:
		tag.CreateAttr("path", v.FilePath)
	case *entity.FileCopyElement:
		tag.CreateAttr("path", v.FilePath)
		setAttr(tag, "output-file-name", v.RenamedOutputFileName)
	case *entity.ExtractedDirectoryElement:
		tag.CreateAttr("path", v.FilePath)
		tag.CreateAttr("path-in-jar", v.PathInArchive)
	case *entity.ArtifactOutputElement:
		if v.Artifact != nil {
			tag.CreateAttr("artifact-name", v.Artifact.Name)
		}
	case *entity.ModuleOutputElement:
		writeModuleRef(tag, v.Module)
	case *entity.ModuleTestOutputElement:
		writeModuleRef(tag, v.Module)
	case *entity.ModuleSourceElement:
		writeModuleRef(tag, v.Module)
	case *entity.LibraryFilesElement:
		if lib := v.Library; lib != nil {
			tag.CreateAttr("level", lib.Table.Level)
			tag.CreateAttr("name", lib.Name)
			if lib.Table.IsModuleLevel() {
				tag.CreateAttr("module-name", lib.Table.Module)
			}
		}
	}
	if entity.IsComposite(pe) {
		for _, child := range r.Children(id) {
			if el := packagingElementTagFor(r, child, packagingElementTag); el != nil {
				tag.AddChild(el)
			}
		}
	}
	return tag
}

func writeModuleRef(tag *etree.Element, m *entity.ModuleID) {
	if m != nil {
		tag.CreateAttr("name", m.Name)
	}
}

// orderedArtifacts sorts artifact ids by the persisted order, appending
// unordered artifacts sorted by name.
func orderedArtifacts(r storage.Reader, ids []storage.ID) []storage.Ref[*entity.Artifact] {
	position := make(map[string]int)
	for _, order := range storage.All[*entity.ArtifactsOrder](r) {
		for _, name := range order.Entity.Order {
			if _, seen := position[name]; !seen {
				position[name] = len(position)
			}
		}
	}
	var arts []storage.Ref[*entity.Artifact]
	for _, id := range ids {
		if a, ok := storage.Get[*entity.Artifact](r, id); ok {
			arts = append(arts, storage.Ref[*entity.Artifact]{ID: id, Entity: a})
		}
	}
	sort.SliceStable(arts, func(i, j int) bool {
		pi, iok := position[arts[i].Entity.Name]
		pj, jok := position[arts[j].Entity.Name]
		switch {
		case iok && jok:
			return pi < pj
		case iok != jok:
			return iok
		}
		return arts[i].Entity.Name < arts[j].Entity.Name
	})
	return arts
}

func artifactElement(r storage.Reader, ref storage.Ref[*entity.Artifact], writeExternalID bool) *etree.Element {
	a := ref.Entity
	tag := etree.NewElement(artifactTag)
	if a.ArtifactType != "" && a.ArtifactType != plainArtifactType {
		tag.CreateAttr("type", a.ArtifactType)
	}
	setBoolAttr(tag, "build-on-make", a.IncludeInProjectBuild)
	tag.CreateAttr("name", a.Name)
	if writeExternalID {
		setAttr(tag, externalSystemIDAttr, entity.ExternalSystemID(a.Source))
	}
	if !a.OutputURL.IsEmpty() {
		tag.CreateElement("output-path").SetText(a.OutputURL.Path())
	}
	for _, child := range r.Children(ref.ID) {
		if el := packagingElementTagFor(r, child, packagingRootTag); el != nil {
			tag.AddChild(el)
		}
	}
	for _, p := range storage.ChildrenOf[*entity.ArtifactProperties](r, ref.ID) {
		props := tag.CreateElement("properties")
		props.CreateAttr("id", p.Entity.ProviderType)
		if el, err := parseElement(p.Entity.PropertiesXML); err == nil && el != nil {
			props.AddChild(el)
		}
	}
	return tag
}

func artifactsComponent(r storage.Reader, ids []storage.ID, writeExternalID bool) *etree.Element {
	arts := orderedArtifacts(r, ids)
	if len(arts) == 0 {
		return nil
	}
	comp := newComponent()
	for _, a := range arts {
		comp.AddChild(artifactElement(r, a, writeExternalID))
	}
	return comp
}

// artifactFileSerializer handles one file of .idea/artifacts.
type artifactFileSerializer struct {
	fileURL fileurl.URL
	source  entity.DirectorySource
}

func (s *artifactFileSerializer) InternalEntitySource() entity.Source { return s.source }
func (s *artifactFileSerializer) FileURL() fileurl.URL                { return s.fileURL }
func (s *artifactFileSerializer) MainEntityKind() entity.Kind         { return entity.KindArtifact }
func (s *artifactFileSerializer) IsExternalStorage() bool             { return false }

func (s *artifactFileSerializer) LoadEntities(reader FileContentReader, _ ErrorReporter) LoadResult {
	res := newLoadResult()
	comp, err := reader.LoadComponent(s.fileURL, artifactManagerComponent, fileurl.Empty)
	if err != nil || comp == nil {
		res.Err = err
		return res
	}
	loadArtifacts(res.Builder, comp, func(ext string) entity.Source {
		return entity.Imported(s.source, ext, false)
	})
	return res
}

func (s *artifactFileSerializer) SaveEntities(ids []storage.ID, r storage.Reader, writer FileContentWriter) error {
	writer.SaveComponent(s.fileURL, artifactManagerComponent, artifactsComponent(r, ids, true))
	return nil
}

func (s *artifactFileSerializer) DeleteObsoleteFile(writer FileContentWriter) {
	writer.SaveComponent(s.fileURL, artifactManagerComponent, nil)
}

// ArtifactsDirectoryFactory creates serializers for .idea/artifacts.
type ArtifactsDirectoryFactory struct {
	Directory fileurl.URL
}

// DirectoryURL implements DirectorySerializerFactory.
func (f *ArtifactsDirectoryFactory) DirectoryURL() fileurl.URL { return f.Directory }

// MainEntityKind implements DirectorySerializerFactory.
func (f *ArtifactsDirectoryFactory) MainEntityKind() entity.Kind { return entity.KindArtifact }

// CreateSerializer implements DirectorySerializerFactory.
func (f *ArtifactsDirectoryFactory) CreateSerializer(fileURL fileurl.URL, source entity.DirectorySource) FileEntitiesSerializer {
	return &artifactFileSerializer{fileURL: fileURL, source: source}
}

// FileNameFor implements DirectorySerializerFactory.
func (f *ArtifactsDirectoryFactory) FileNameFor(e entity.Entity) string {
	if a, ok := e.(*entity.Artifact); ok {
		return SanitizeFileName(a.Name) + ".xml"
	}
	return ""
}

// ArtifactTableSerializer handles the external storage artifacts.xml,
// which holds every imported artifact of the project.
type ArtifactTableSerializer struct {
	fileURL  fileurl.URL
	internal entity.FileSource
}

// NewExternalArtifactsSerializer creates the serializer of the external
// artifacts file.
func NewExternalArtifactsSerializer(fileURL fileurl.URL, project entity.ProjectLocation) *ArtifactTableSerializer {
	return &ArtifactTableSerializer{fileURL: fileURL, internal: entity.FileSource{File: fileURL, Project: project}}
}

// InternalEntitySource implements FileEntitiesSerializer.
func (s *ArtifactTableSerializer) InternalEntitySource() entity.Source { return s.internal }

// FileURL implements FileEntitiesSerializer.
func (s *ArtifactTableSerializer) FileURL() fileurl.URL { return s.fileURL }

// MainEntityKind implements FileEntitiesSerializer.
func (s *ArtifactTableSerializer) MainEntityKind() entity.Kind { return entity.KindArtifact }

// IsExternalStorage implements FileEntitiesSerializer.
func (s *ArtifactTableSerializer) IsExternalStorage() bool { return true }

// LoadEntities implements FileEntitiesSerializer.
func (s *ArtifactTableSerializer) LoadEntities(reader FileContentReader, _ ErrorReporter) LoadResult {
	res := newLoadResult()
	comp, err := reader.LoadComponent(s.fileURL, artifactManagerComponent, fileurl.Empty)
	if err != nil || comp == nil {
		res.Err = err
		return res
	}
	loadArtifacts(res.Builder, comp, func(ext string) entity.Source {
		return entity.ImportedSource{Internal: s.internal, ExternalSystemID: ext, StoredExternally: true}
	})
	return res
}

// SaveEntities implements FileEntitiesSerializer.
func (s *ArtifactTableSerializer) SaveEntities(ids []storage.ID, r storage.Reader, writer FileContentWriter) error {
	writer.SaveComponent(s.fileURL, artifactManagerComponent, artifactsComponent(r, ids, true))
	return nil
}

// DeleteObsoleteFile implements FileEntitiesSerializer.
func (s *ArtifactTableSerializer) DeleteObsoleteFile(writer FileContentWriter) {
	writer.SaveComponent(s.fileURL, artifactManagerComponent, nil)
}
