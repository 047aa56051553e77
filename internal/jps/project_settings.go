package jps

import (
	"github.com/beevik/etree"

	"github.com/dshills/jpsmodel/internal/workspace/entity"
	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
	"github.com/dshills/jpsmodel/internal/workspace/storage"
)

const (
	projectRootManagerComponent    = "ProjectRootManager"
	externalStorageConfigComponent = "ExternalStorageConfigurationManager"
)

// ProjectSettingsSerializer maps the ProjectRootManager component of
// misc.xml onto a ProjectSettings entity. Other components of the file are
// left untouched.
type ProjectSettingsSerializer struct {
	fileURL fileurl.URL
	source  entity.FileSource
}

// NewProjectSettingsSerializer creates the serializer of misc.xml.
func NewProjectSettingsSerializer(fileURL fileurl.URL, project entity.ProjectLocation) *ProjectSettingsSerializer {
	return &ProjectSettingsSerializer{fileURL: fileURL, source: entity.FileSource{File: fileURL, Project: project}}
}

// InternalEntitySource implements FileEntitiesSerializer.
func (s *ProjectSettingsSerializer) InternalEntitySource() entity.Source { return s.source }

// FileURL implements FileEntitiesSerializer.
func (s *ProjectSettingsSerializer) FileURL() fileurl.URL { return s.fileURL }

// MainEntityKind implements FileEntitiesSerializer.
func (s *ProjectSettingsSerializer) MainEntityKind() entity.Kind { return entity.KindProjectSettings }

// IsExternalStorage implements FileEntitiesSerializer.
func (s *ProjectSettingsSerializer) IsExternalStorage() bool { return false }

// LoadEntities implements FileEntitiesSerializer.
func (s *ProjectSettingsSerializer) LoadEntities(reader FileContentReader, _ ErrorReporter) LoadResult {
	res := newLoadResult()
	comp, err := reader.LoadComponent(s.fileURL, projectRootManagerComponent, fileurl.Empty)
	if err != nil || comp == nil {
		res.Err = err
		return res
	}
	settings := &entity.ProjectSettings{LanguageLevel: attr(comp, "languageLevel"), Source: s.source}
	if name := attr(comp, "project-jdk-name"); name != "" {
		settings.ProjectSdk = &entity.SdkID{Name: name, Type: attr(comp, "project-jdk-type")}
	}

	rest := newComponent()
	for _, a := range comp.Attr {
		switch a.Key {
		case "name", "languageLevel", "project-jdk-name", "project-jdk-type":
		default:
			rest.CreateAttr(a.FullKey(), a.Value)
		}
	}
	for _, child := range comp.ChildElements() {
		rest.AddChild(child.Copy())
	}
	if len(rest.Attr) > 0 || len(rest.ChildElements()) > 0 {
		settings.RootManagerXML = elementToString(rest)
	}
	res.Builder.Add(settings)
	return res
}

// SaveEntities implements FileEntitiesSerializer.
func (s *ProjectSettingsSerializer) SaveEntities(ids []storage.ID, r storage.Reader, writer FileContentWriter) error {
	for _, id := range ids {
		settings, ok := storage.Get[*entity.ProjectSettings](r, id)
		if !ok {
			continue
		}
		writer.SaveComponent(s.fileURL, projectRootManagerComponent, projectRootManagerElement(settings))
		return nil
	}
	writer.SaveComponent(s.fileURL, projectRootManagerComponent, nil)
	return nil
}

// projectRootManagerElement writes version and languageLevel first and
// the SDK reference last, the order IntelliJ uses.
func projectRootManagerElement(settings *entity.ProjectSettings) *etree.Element {
	comp := newComponent()
	var rest *etree.Element
	if settings.RootManagerXML != "" {
		rest, _ = parseElement(settings.RootManagerXML)
	}
	if rest != nil {
		setAttr(comp, "version", attr(rest, "version"))
	}
	setAttr(comp, "languageLevel", settings.LanguageLevel)
	if rest != nil {
		for _, a := range rest.Attr {
			if a.Key != "name" && a.Key != "version" {
				comp.CreateAttr(a.FullKey(), a.Value)
			}
		}
	}
	if settings.ProjectSdk != nil {
		comp.CreateAttr("project-jdk-name", settings.ProjectSdk.Name)
		setAttr(comp, "project-jdk-type", settings.ProjectSdk.Type)
	}
	if rest != nil {
		for _, child := range rest.ChildElements() {
			comp.AddChild(child.Copy())
		}
	}
	return comp
}

// DeleteObsoleteFile implements FileEntitiesSerializer.
func (s *ProjectSettingsSerializer) DeleteObsoleteFile(writer FileContentWriter) {
	writer.SaveComponent(s.fileURL, projectRootManagerComponent, nil)
}

// ExternalStorageEnabled reports whether misc.xml enables the external
// storage split.
func ExternalStorageEnabled(reader FileContentReader, miscFile fileurl.URL) (bool, error) {
	comp, err := reader.LoadComponent(miscFile, externalStorageConfigComponent, fileurl.Empty)
	if err != nil || comp == nil {
		return false, err
	}
	return boolAttr(comp, "enabled"), nil
}
