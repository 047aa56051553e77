package jps

import (
	"sort"

	"github.com/beevik/etree"

	"github.com/dshills/jpsmodel/internal/workspace/entity"
	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
	"github.com/dshills/jpsmodel/internal/workspace/storage"
)

const (
	sdkTableComponent = "ProjectJdkTable"
	sdkTag            = "jdk"
	sdkFormatVersion  = "2"
)

// Root groups always written for an SDK.
var standardSdkRootTypes = []string{"annotationsPath", "classPath", "javadocPath", "sourcePath"}

// SdkTableSerializer handles the global jdk.table.xml.
type SdkTableSerializer struct {
	fileURL fileurl.URL
	source  entity.GlobalSource
}

// NewSdkTableSerializer creates the serializer of the SDK table at fileURL.
func NewSdkTableSerializer(fileURL fileurl.URL) *SdkTableSerializer {
	return &SdkTableSerializer{fileURL: fileURL, source: entity.GlobalSource{File: fileURL}}
}

// InternalEntitySource implements FileEntitiesSerializer.
func (s *SdkTableSerializer) InternalEntitySource() entity.Source { return s.source }

// FileURL implements FileEntitiesSerializer.
func (s *SdkTableSerializer) FileURL() fileurl.URL { return s.fileURL }

// MainEntityKind implements FileEntitiesSerializer.
func (s *SdkTableSerializer) MainEntityKind() entity.Kind { return entity.KindSdk }

// IsExternalStorage implements FileEntitiesSerializer.
func (s *SdkTableSerializer) IsExternalStorage() bool { return false }

func valueOf(parent *etree.Element, tag string) string {
	if el := parent.SelectElement(tag); el != nil {
		return attr(el, "value")
	}
	return ""
}

// LoadEntities implements FileEntitiesSerializer.
func (s *SdkTableSerializer) LoadEntities(reader FileContentReader, _ ErrorReporter) LoadResult {
	res := newLoadResult()
	comp, err := reader.LoadComponent(s.fileURL, sdkTableComponent, fileurl.Empty)
	if err != nil || comp == nil {
		res.Err = err
		return res
	}
	for _, tag := range comp.SelectElements(sdkTag) {
		sdk := &entity.Sdk{
			Name:    valueOf(tag, "name"),
			Type:    valueOf(tag, "type"),
			Version: valueOf(tag, "version"),
			Source:  s.source,
		}
		if home := valueOf(tag, "homePath"); home != "" {
			sdk.HomePath = fileurl.Parse(home)
		}
		if roots := tag.SelectElement("roots"); roots != nil {
			for _, group := range roots.ChildElements() {
				for _, composite := range group.SelectElements("root") {
					for _, root := range composite.SelectElements("root") {
						sdk.Roots = append(sdk.Roots, entity.SdkRoot{URL: urlAttr(root, "url"), Type: group.Tag})
					}
				}
			}
		}
		if additional := tag.SelectElement("additional"); additional != nil {
			sdk.AdditionalData = elementToString(additional)
		}
		res.Builder.Add(sdk)
	}
	return res
}

func sdkElement(sdk *entity.Sdk) *etree.Element {
	tag := etree.NewElement(sdkTag)
	tag.CreateAttr("version", sdkFormatVersion)
	tag.CreateElement("name").CreateAttr("value", sdk.Name)
	tag.CreateElement("type").CreateAttr("value", sdk.Type)
	if sdk.Version != "" {
		tag.CreateElement("version").CreateAttr("value", sdk.Version)
	}
	if !sdk.HomePath.IsEmpty() {
		tag.CreateElement("homePath").CreateAttr("value", sdk.HomePath.Path())
	}

	byType := make(map[string][]entity.SdkRoot)
	for _, t := range standardSdkRootTypes {
		byType[t] = nil
	}
	for _, r := range sdk.Roots {
		byType[r.Type] = append(byType[r.Type], r)
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	roots := tag.CreateElement("roots")
	for _, t := range types {
		composite := roots.CreateElement(t).CreateElement("root")
		composite.CreateAttr("type", "composite")
		for _, r := range byType[t] {
			simple := composite.CreateElement("root")
			simple.CreateAttr("url", r.URL.String())
			simple.CreateAttr("type", "simple")
		}
	}

	if el, err := parseElement(sdk.AdditionalData); err == nil && el != nil {
		tag.AddChild(el)
	} else {
		tag.CreateElement("additional")
	}
	return tag
}

// SaveEntities implements FileEntitiesSerializer. SDKs are written sorted
// by name.
func (s *SdkTableSerializer) SaveEntities(ids []storage.ID, r storage.Reader, writer FileContentWriter) error {
	var sdks []*entity.Sdk
	for _, id := range ids {
		if sdk, ok := storage.Get[*entity.Sdk](r, id); ok {
			sdks = append(sdks, sdk)
		}
	}
	if len(sdks) == 0 {
		writer.SaveComponent(s.fileURL, sdkTableComponent, nil)
		return nil
	}
	sort.SliceStable(sdks, func(i, j int) bool { return sdks[i].Name < sdks[j].Name })
	comp := newComponent()
	for _, sdk := range sdks {
		comp.AddChild(sdkElement(sdk))
	}
	writer.SaveComponent(s.fileURL, sdkTableComponent, comp)
	return nil
}

// DeleteObsoleteFile implements FileEntitiesSerializer.
func (s *SdkTableSerializer) DeleteObsoleteFile(writer FileContentWriter) {
	writer.SaveComponent(s.fileURL, sdkTableComponent, nil)
}
