package jps

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/dshills/jpsmodel/internal/workspace/entity"
	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
	"github.com/dshills/jpsmodel/internal/workspace/storage"
)

const (
	rootManagerComponent    = "NewModuleRootManager"
	externalSystemComponent = "ExternalSystem"

	// uniqueIndexSuffix disambiguates module libraries sharing a name. It is
	// stripped again on save.
	uniqueIndexSuffix = "-d1a6f608-UNIQUE-INDEX-f29c-4df6-"

	optionExternalSystemID = "external.system.id"
	optionClasspath        = "classpath"
)

// Internal module option keys mapped onto ExternalSystemModuleOptions, in
// the order they are written.
var externalOptionKeys = []string{
	optionExternalSystemID,
	"external.system.module.version",
	"external.linked.project.path",
	"external.linked.project.id",
	"external.root.project.path",
	"external.system.module.group",
	"external.system.module.type",
}

// Attributes of the ExternalSystem component of an external module file.
var externalComponentAttrs = []string{
	"externalSystem",
	"externalSystemModuleVersion",
	"linkedProjectPath",
	"linkedProjectId",
	"rootProjectPath",
	"externalSystemModuleGroup",
	"externalSystemModuleType",
}

// Root manager attributes written ahead of the others, in this order.
var rootManagerAttrPriority = []string{"LANGUAGE_LEVEL", "inherit-compiler-output"}

func externalOptionValues(o *entity.ExternalSystemModuleOptions) []string {
	return []string{
		o.ExternalSystem,
		o.ExternalSystemModuleVersion,
		o.LinkedProjectPath,
		o.LinkedProjectID,
		o.RootProjectPath,
		o.ExternalSystemModuleGroup,
		o.ExternalSystemModuleType,
	}
}

func externalOptionsFrom(values []string, source entity.Source) *entity.ExternalSystemModuleOptions {
	return &entity.ExternalSystemModuleOptions{
		ExternalSystem:              values[0],
		ExternalSystemModuleVersion: values[1],
		LinkedProjectPath:           values[2],
		LinkedProjectID:             values[3],
		RootProjectPath:             values[4],
		ExternalSystemModuleGroup:   values[5],
		ExternalSystemModuleType:    values[6],
		Source:                      source,
	}
}

// ModuleImlSerializer maps a module onto its .iml file, or onto the
// module file of the external storage.
//
// Both variants share the internal source of the .iml file. Entities of the
// module stored externally carry an ImportedSource with StoredExternally
// set; when the external storage is enabled the .iml of such a module only
// keeps the content roots added locally.
type ModuleImlSerializer struct {
	path     ModulePath
	fileURL  fileurl.URL
	source   entity.FileSource
	external bool
	ctx      *SerializationContext
}

// NewModuleImlSerializer creates the serializer of an internal .iml file.
func NewModuleImlSerializer(path ModulePath, ctx *SerializationContext) *ModuleImlSerializer {
	return &ModuleImlSerializer{
		path:    path,
		fileURL: path.File,
		source:  entity.FileSource{File: path.File, Project: ctx.Project},
		ctx:     ctx,
	}
}

// NewExternalModuleSerializer creates the serializer of the external
// storage file of a module listed with the given .iml path.
func NewExternalModuleSerializer(path ModulePath, modulesDir fileurl.URL, ctx *SerializationContext) *ModuleImlSerializer {
	return &ModuleImlSerializer{
		path:     path,
		fileURL:  modulesDir.Append(path.File.NameWithoutExtension() + ".xml"),
		source:   entity.FileSource{File: path.File, Project: ctx.Project},
		external: true,
		ctx:      ctx,
	}
}

// InternalEntitySource implements FileEntitiesSerializer.
func (s *ModuleImlSerializer) InternalEntitySource() entity.Source { return s.source }

// FileURL implements FileEntitiesSerializer.
func (s *ModuleImlSerializer) FileURL() fileurl.URL { return s.fileURL }

// MainEntityKind implements FileEntitiesSerializer.
func (s *ModuleImlSerializer) MainEntityKind() entity.Kind { return entity.KindModule }

// IsExternalStorage implements FileEntitiesSerializer.
func (s *ModuleImlSerializer) IsExternalStorage() bool { return s.external }

// ModulePath returns the module list entry of the serializer.
func (s *ModuleImlSerializer) ModulePath() ModulePath { return s.path }

// ModuleName returns the module name derived from the .iml file name.
func (s *ModuleImlSerializer) ModuleName() string { return s.path.File.NameWithoutExtension() }

// renamed returns a serializer writing the module under a new name next
// to the current files. The entity source is kept so entities loaded from
// the old file still map to it.
func (s *ModuleImlSerializer) renamed(name string) *ModuleImlSerializer {
	moved := *s
	moved.path.File = s.path.File.Sibling(name + ".iml")
	if s.external {
		moved.fileURL = s.fileURL.Sibling(name + ".xml")
	} else {
		moved.fileURL = moved.path.File
	}
	return &moved
}

func (s *ModuleImlSerializer) modulePathForMacros() fileurl.URL {
	if s.external {
		return s.path.File
	}
	return fileurl.Empty
}

// includes reports whether an entity with source src is stored in this
// serializer's file.
func (s *ModuleImlSerializer) includes(src entity.Source) bool {
	return entity.IsStoredExternally(src) == s.external
}

// LoadEntities implements FileEntitiesSerializer.
func (s *ModuleImlSerializer) LoadEntities(reader FileContentReader, reporter ErrorReporter) LoadResult {
	res := newLoadResult()
	name := s.ModuleName()
	macroPath := s.modulePathForMacros()

	optionsTag, err := reader.LoadComponent(s.fileURL, ModuleOptionsComponent, macroPath)
	if err != nil {
		res.Err = err
		return res
	}
	options := readOptions(optionsTag)
	extSystem := options.get(optionExternalSystemID)

	if !s.external && extSystem != "" && s.ctx.ExternalStorageEnabled {
		res.Err = s.loadLocalContentRoots(reader, res.Orphanage, name)
		return res
	}

	var errs errorCollector
	var source entity.Source = s.source
	var extOptions *entity.ExternalSystemModuleOptions
	if s.external {
		comp, err := reader.LoadComponent(s.fileURL, externalSystemComponent, macroPath)
		errs.add(err)
		values := make([]string, len(externalComponentAttrs))
		if comp != nil {
			for i, key := range externalComponentAttrs {
				values[i] = attr(comp, key)
			}
		}
		extOptions = externalOptionsFrom(values, nil)
		source = entity.ImportedSource{Internal: s.source, ExternalSystemID: extOptions.ExternalSystem, StoredExternally: true}
	} else {
		values := make([]string, len(externalOptionKeys))
		for i, key := range externalOptionKeys {
			values[i] = options.get(key)
		}
		extOptions = externalOptionsFrom(values, nil)
		source = entity.Imported(s.source, extSystem, false)
	}

	mod := &entity.Module{Name: name, Type: options.get("type"), Source: source}
	b := res.Builder
	modID := b.Add(mod)

	if !extOptions.IsEmpty() {
		extOptions.Source = source
		b.AddChild(modID, extOptions)
	}
	if s.path.Group != "" {
		b.AddChild(modID, &entity.ModuleGroupPath{Path: strings.Split(s.path.Group, "/"), Source: source})
	}

	custom := make(map[string]string)
	for _, key := range options.keys {
		if key == "type" || isExternalOptionKey(key) {
			continue
		}
		custom[key] = options.get(key)
	}

	var deps []entity.Dependency
	var customRootData string
	rootsLoaded := false
	if cp := options.get(optionClasspath); cp != "" {
		if rs, ok := s.ctx.rootsSerializer(cp); ok {
			errs.add(rs.LoadRoots(b, modID, source, s.path.File, reader, reporter))
			rootsLoaded = true
		} else {
			reporter.ReportError(fmt.Sprintf("Classpath storage provider %s not found", cp), s.path.File)
		}
	}
	if !rootsLoaded {
		rm, err := reader.LoadComponent(s.fileURL, rootManagerComponent, macroPath)
		errs.add(err)
		deps, customRootData = s.loadRootManager(b, modID, rm, source, reporter)
		m, _ := storage.Get[*entity.Module](b, modID)
		updated := *m
		updated.Dependencies = deps
		b.Modify(modID, &updated)
	}

	if len(custom) > 0 || customRootData != "" {
		b.AddChild(modID, &entity.ModuleCustomImlData{
			RootManagerTagCustomData: customRootData,
			CustomModuleOptions:      custom,
			Source:                   source,
		})
	}

	facets, err := reader.LoadComponent(s.fileURL, facetManagerComponent, macroPath)
	errs.add(err)
	if facets != nil {
		errs.add(s.loadFacets(b, modID, name, facets, source))
	}

	for _, cs := range s.ctx.componentSerializers() {
		comp, err := reader.LoadComponent(s.fileURL, cs.ComponentName(), macroPath)
		errs.add(err)
		if comp != nil {
			errs.add(cs.LoadComponent(b, modID, comp, source))
		}
	}

	res.Unloaded = s.ctx.UnloadedModules[name]
	res.Err = errs.first()
	return res
}

func isExternalOptionKey(key string) bool {
	for _, k := range externalOptionKeys {
		if k == key {
			return true
		}
	}
	return false
}

// loadLocalContentRoots reads the content roots of a module whose main
// definition lives in the external storage. They are kept in the
// orphanage under a placeholder until the module is loaded.
func (s *ModuleImlSerializer) loadLocalContentRoots(reader FileContentReader, orphanage *storage.Builder, name string) error {
	rm, err := reader.LoadComponent(s.fileURL, rootManagerComponent, fileurl.Empty)
	if err != nil || rm == nil {
		return err
	}
	contents := rm.SelectElements("content")
	if len(contents) == 0 {
		return nil
	}
	placeholder := orphanage.Add(&entity.Module{Name: name, Source: entity.OrphanageSource{}})
	for _, content := range contents {
		loadContentRoot(orphanage, placeholder, content, s.source)
	}
	return nil
}

func (s *ModuleImlSerializer) loadRootManager(b *storage.Builder, modID storage.ID, rm *etree.Element, source entity.Source, reporter ErrorReporter) ([]entity.Dependency, string) {
	if rm == nil {
		return []entity.Dependency{entity.ModuleSourceDependency{}}, ""
	}

	settings := &entity.JavaModuleSettings{
		InheritedCompilerOutput: boolAttr(rm, "inherit-compiler-output"),
		LanguageLevelID:         attr(rm, "LANGUAGE_LEVEL"),
		Source:                  source,
	}
	hasSettings := hasAttr(rm, "inherit-compiler-output") || settings.LanguageLevelID != ""

	custom := etree.NewElement(componentTag)
	for _, a := range rm.Attr {
		switch a.Key {
		case "name", "inherit-compiler-output", "LANGUAGE_LEVEL":
		default:
			custom.CreateAttr(a.FullKey(), a.Value)
		}
	}

	var deps []entity.Dependency
	hasSourceEntry := false
	names := newModuleLibraryNames(rm)
	moduleName := s.ModuleName()

	for _, child := range rm.ChildElements() {
		switch child.Tag {
		case "output":
			settings.CompilerOutput = urlAttr(child, "url")
			hasSettings = true
		case "output-test":
			settings.CompilerOutputForTests = urlAttr(child, "url")
			hasSettings = true
		case "exclude-output":
			settings.ExcludeOutput = true
			hasSettings = true
		case "content":
			loadContentRoot(b, modID, child, source)
		case "orderEntry":
			dep, ok := s.loadOrderEntry(b, child, moduleName, source, names, reporter)
			if !ok {
				// Kept verbatim so saving does not lose it.
				custom.AddChild(child.Copy())
				continue
			}
			if _, isSource := dep.(entity.ModuleSourceDependency); isSource {
				hasSourceEntry = true
			}
			deps = append(deps, dep)
		default:
			custom.AddChild(child.Copy())
		}
	}
	if !hasSourceEntry {
		deps = append([]entity.Dependency{entity.ModuleSourceDependency{}}, deps...)
	}
	if hasSettings {
		b.AddChild(modID, settings)
	}

	customXML := ""
	if len(custom.Attr) > 0 || len(custom.ChildElements()) > 0 {
		customXML = elementToString(custom)
	}
	return deps, customXML
}

func (s *ModuleImlSerializer) loadOrderEntry(b *storage.Builder, oe *etree.Element, moduleName string, source entity.Source, names *moduleLibraryNames, reporter ErrorReporter) (entity.Dependency, bool) {
	switch typ := attr(oe, "type"); typ {
	case "sourceFolder":
		return entity.ModuleSourceDependency{}, true
	case "inheritedJdk":
		return entity.InheritedSdkDependency{}, true
	case "jdk":
		return entity.SdkDependency{Sdk: entity.SdkID{Name: attr(oe, "jdkName"), Type: attr(oe, "jdkType")}}, true
	case "library":
		return entity.LibraryDependency{
			Library:  entity.LibraryID{Name: attr(oe, "name"), Table: entity.LibraryTableFromLevel(attr(oe, "level"))},
			Exported: hasAttr(oe, "exported"),
			Scope:    scopeAttr(oe),
		}, true
	case "module":
		return entity.ModuleDependency{
			Module:           entity.ModuleID{Name: attr(oe, "module-name")},
			Exported:         hasAttr(oe, "exported"),
			Scope:            scopeAttr(oe),
			ProductionOnTest: hasAttr(oe, "production-on-test"),
		}, true
	case "module-library":
		tag := oe.SelectElement(libraryTag)
		if tag == nil {
			reporter.ReportError("module-library order entry without library tag", s.fileURL)
			return nil, false
		}
		name, generated := names.assign(attr(tag, "name"))
		table := entity.ModuleLibraryTable(moduleName)
		libID := loadLibrary(b, tag, name, table, source)
		if generated {
			lib, _ := storage.Get[*entity.Library](b, libID)
			updated := *lib
			updated.AutoNamed = true
			b.Modify(libID, &updated)
		}
		return entity.LibraryDependency{
			Library:  entity.LibraryID{Name: name, Table: table},
			Exported: hasAttr(oe, "exported"),
			Scope:    scopeAttr(oe),
		}, true
	default:
		reporter.ReportError(fmt.Sprintf("unknown order entry type %q", typ), s.fileURL)
		return nil, false
	}
}

func scopeAttr(el *etree.Element) entity.DependencyScope {
	if v := attr(el, "scope"); v != "" {
		return entity.DependencyScope(v)
	}
	return entity.ScopeCompile
}

// moduleLibraryNames hands out the ids of the module libraries of one
// module. Explicit names are reserved up front so that a generated "#N"
// or a clash suffix never takes a name the file spells out later.
type moduleLibraryNames struct {
	reserved map[string]bool
	given    map[string]bool
	unnamed  int
}

func newModuleLibraryNames(rm *etree.Element) *moduleLibraryNames {
	n := &moduleLibraryNames{reserved: make(map[string]bool), given: make(map[string]bool)}
	for _, oe := range rm.SelectElements("orderEntry") {
		if attr(oe, "type") != "module-library" {
			continue
		}
		if tag := oe.SelectElement(libraryTag); tag != nil && attr(tag, "name") != "" {
			n.reserved[attr(tag, "name")] = true
		}
	}
	return n
}

func (n *moduleLibraryNames) free(name string) bool {
	return !n.reserved[name] && !n.given[name]
}

// assign returns the id for a library tag named name, and whether the id
// was generated because name is empty.
func (n *moduleLibraryNames) assign(name string) (string, bool) {
	generated := name == ""
	switch {
	case generated:
		for {
			n.unnamed++
			name = "#" + strconv.Itoa(n.unnamed)
			if n.free(name) {
				break
			}
		}
	case n.given[name]:
		base := name
		for i := 1; !n.free(name); i++ {
			name = base + uniqueIndexSuffix + strconv.Itoa(i)
		}
	}
	n.given[name] = true
	return name, generated
}

// moduleLibraryFileName is the name attribute written for a module
// library: empty for generated names and without any clash suffix.
func moduleLibraryFileName(lib *entity.Library) string {
	if lib.AutoNamed {
		return ""
	}
	if i := strings.Index(lib.Name, uniqueIndexSuffix); i >= 0 {
		return lib.Name[:i]
	}
	return lib.Name
}

func loadContentRoot(b *storage.Builder, parent storage.ID, content *etree.Element, source entity.Source) storage.ID {
	root := &entity.ContentRoot{URL: urlAttr(content, "url"), Source: source}
	for _, p := range content.SelectElements("excludePattern") {
		root.ExcludePatterns = append(root.ExcludePatterns, attr(p, "pattern"))
	}
	id := b.AddChild(parent, root)

	var order []fileurl.URL
	for _, sf := range content.SelectElements("sourceFolder") {
		url := urlAttr(sf, "url")
		order = append(order, url)
		switch typ := attr(sf, "type"); typ {
		case "":
			rootType := entity.RootTypeJavaSource
			if boolAttr(sf, "isTestSource") {
				rootType = entity.RootTypeJavaTest
			}
			sr := b.AddChild(id, &entity.SourceRoot{URL: url, RootType: rootType, Source: source})
			b.AddChild(sr, &entity.JavaSourceRootProperties{
				Generated:     boolAttr(sf, "generated"),
				PackagePrefix: attr(sf, "packagePrefix"),
				Source:        source,
			})
		case entity.RootTypeJavaResource, entity.RootTypeJavaTestResource:
			sr := b.AddChild(id, &entity.SourceRoot{URL: url, RootType: typ, Source: source})
			b.AddChild(sr, &entity.JavaResourceRootProperties{
				Generated:          boolAttr(sf, "generated"),
				RelativeOutputPath: attr(sf, "relativeOutputPath"),
				Source:             source,
			})
		default:
			sr := b.AddChild(id, &entity.SourceRoot{URL: url, RootType: typ, Source: source})
			b.AddChild(sr, &entity.CustomSourceRootProperties{PropertiesXML: elementToString(sf), Source: source})
		}
	}
	if len(order) > 1 {
		b.AddChild(id, &entity.SourceRootOrder{Order: order, Source: source})
	}

	var excludes []fileurl.URL
	for _, ex := range content.SelectElements("excludeFolder") {
		u := urlAttr(ex, "url")
		excludes = append(excludes, u)
		b.AddChild(id, &entity.ExcludeURL{URL: u, Source: source})
	}
	if len(excludes) > 1 {
		b.AddChild(id, &entity.ExcludeURLOrder{Order: excludes, Source: source})
	}
	return id
}

// SaveEntities implements FileEntitiesSerializer.
func (s *ModuleImlSerializer) SaveEntities(ids []storage.ID, r storage.Reader, writer FileContentWriter) error {
	if s.external {
		writer.SetModuleFilePath(s.fileURL, s.path.File)
	}
	var errs errorCollector
	for _, id := range ids {
		mod, ok := storage.Get[*entity.Module](r, id)
		if !ok {
			continue
		}
		if !s.external && entity.IsStoredExternally(mod.Source) {
			s.saveLocalContentRoots(r, id, mod, writer)
			continue
		}
		errs.add(s.saveModule(r, id, mod, writer))
	}
	return errs.first()
}

func (s *ModuleImlSerializer) saveLocalContentRoots(r storage.Reader, id storage.ID, mod *entity.Module, writer FileContentWriter) {
	writer.SaveComponent(s.fileURL, ModuleOptionsComponent, optionsComponent([][2]string{
		{optionExternalSystemID, entity.ExternalSystemID(mod.Source)},
	}))
	rm := newComponent()
	for _, cr := range storage.ChildrenOf[*entity.ContentRoot](r, id) {
		if s.includes(cr.Entity.Source) {
			rm.AddChild(contentRootElement(r, cr.ID, cr.Entity))
		}
	}
	writer.SaveComponent(s.fileURL, rootManagerComponent, rm)
	writer.SaveComponent(s.fileURL, facetManagerComponent, nil)
}

func (s *ModuleImlSerializer) saveModule(r storage.Reader, id storage.ID, mod *entity.Module, writer FileContentWriter) error {
	customData, _ := storage.ChildOf[*entity.ModuleCustomImlData](r, id)
	extOptions, hasExt := storage.ChildOf[*entity.ExternalSystemModuleOptions](r, id)

	var pairs [][2]string
	if !s.external {
		if hasExt {
			for i, v := range externalOptionValues(extOptions.Entity) {
				if v != "" {
					pairs = append(pairs, [2]string{externalOptionKeys[i], v})
				}
			}
		} else if ext := entity.ExternalSystemID(mod.Source); ext != "" {
			pairs = append(pairs, [2]string{optionExternalSystemID, ext})
		}
	}
	if customData.Entity != nil {
		for k, v := range customData.Entity.CustomModuleOptions {
			pairs = append(pairs, [2]string{k, v})
		}
	}
	if mod.Type != "" {
		pairs = append(pairs, [2]string{"type", mod.Type})
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })
	writer.SaveComponent(s.fileURL, ModuleOptionsComponent, optionsComponent(pairs))

	if s.external {
		var comp *etree.Element
		if hasExt {
			comp = newComponent()
			for i, v := range externalOptionValues(extOptions.Entity) {
				setAttr(comp, externalComponentAttrs[i], v)
			}
		}
		writer.SaveComponent(s.fileURL, externalSystemComponent, comp)
	}

	var errs errorCollector
	cp := ""
	if customData.Entity != nil {
		cp = customData.Entity.CustomModuleOptions[optionClasspath]
	}
	if rs, ok := s.ctx.rootsSerializer(cp); cp != "" && ok {
		errs.add(rs.SaveRoots(r, id, s.path.File, writer))
	} else {
		writer.SaveComponent(s.fileURL, rootManagerComponent, s.rootManagerElement(r, id, mod, customData.Entity))
	}

	writer.SaveComponent(s.fileURL, facetManagerComponent, s.facetsElement(r, id))

	for _, cs := range s.ctx.componentSerializers() {
		writer.SaveComponent(s.fileURL, cs.ComponentName(), cs.SaveComponent(r, id))
	}
	return errs.first()
}

func (s *ModuleImlSerializer) rootManagerElement(r storage.Reader, id storage.ID, mod *entity.Module, customData *entity.ModuleCustomImlData) *etree.Element {
	rm := newComponent()
	var customTag *etree.Element
	if customData != nil && customData.RootManagerTagCustomData != "" {
		customTag, _ = parseElement(customData.RootManagerTagCustomData)
	}

	settings, hasSettings := storage.ChildOf[*entity.JavaModuleSettings](r, id)
	if hasSettings && !s.includes(settings.Entity.Source) {
		hasSettings = false
	}

	var attrs []etree.Attr
	if hasSettings {
		if settings.Entity.InheritedCompilerOutput {
			attrs = append(attrs, etree.Attr{Key: "inherit-compiler-output", Value: "true"})
		}
		if settings.Entity.LanguageLevelID != "" {
			attrs = append(attrs, etree.Attr{Key: "LANGUAGE_LEVEL", Value: settings.Entity.LanguageLevelID})
		}
	}
	if customTag != nil {
		for _, a := range customTag.Attr {
			if a.Key != "name" {
				attrs = append(attrs, etree.Attr{Space: a.Space, Key: a.Key, Value: a.Value})
			}
		}
	}
	sortRootManagerAttrs(attrs)
	for _, a := range attrs {
		rm.CreateAttr(a.FullKey(), a.Value)
	}

	if hasSettings {
		st := settings.Entity
		if !st.InheritedCompilerOutput {
			if !st.CompilerOutput.IsEmpty() {
				rm.CreateElement("output").CreateAttr("url", st.CompilerOutput.String())
			}
			if !st.CompilerOutputForTests.IsEmpty() {
				rm.CreateElement("output-test").CreateAttr("url", st.CompilerOutputForTests.String())
			}
		}
		if st.ExcludeOutput {
			rm.CreateElement("exclude-output")
		}
	}

	for _, cr := range storage.ChildrenOf[*entity.ContentRoot](r, id) {
		if s.includes(cr.Entity.Source) {
			rm.AddChild(contentRootElement(r, cr.ID, cr.Entity))
		}
	}

	for _, dep := range mod.Dependencies {
		if oe := s.orderEntryElement(r, dep); oe != nil {
			rm.AddChild(oe)
		}
	}

	if customTag != nil {
		for _, child := range customTag.ChildElements() {
			rm.AddChild(child.Copy())
		}
	}
	return rm
}

func sortRootManagerAttrs(attrs []etree.Attr) {
	rank := func(key string) int {
		for i, k := range rootManagerAttrPriority {
			if k == key {
				return i
			}
		}
		return len(rootManagerAttrPriority)
	}
	sort.SliceStable(attrs, func(i, j int) bool { return rank(attrs[i].Key) < rank(attrs[j].Key) })
}

func (s *ModuleImlSerializer) orderEntryElement(r storage.Reader, dep entity.Dependency) *etree.Element {
	oe := etree.NewElement("orderEntry")
	switch d := dep.(type) {
	case entity.ModuleSourceDependency:
		oe.CreateAttr("type", "sourceFolder")
		oe.CreateAttr("forTests", "false")
	case entity.InheritedSdkDependency:
		oe.CreateAttr("type", "inheritedJdk")
	case entity.SdkDependency:
		oe.CreateAttr("type", "jdk")
		oe.CreateAttr("jdkName", d.Sdk.Name)
		oe.CreateAttr("jdkType", d.Sdk.Type)
	case entity.ModuleDependency:
		oe.CreateAttr("type", "module")
		oe.CreateAttr("module-name", d.Module.Name)
		setFlag(oe, "exported", d.Exported)
		writeScope(oe, d.Scope)
		setFlag(oe, "production-on-test", d.ProductionOnTest)
	case entity.LibraryDependency:
		if d.Library.Table.IsModuleLevel() {
			oe.CreateAttr("type", "module-library")
			setFlag(oe, "exported", d.Exported)
			writeScope(oe, d.Scope)
			libID, ok := r.Resolve(d.Library)
			if !ok {
				s.ctx.logger().WithField("library", d.Library.Presentable()).Warn("module library not found")
				return nil
			}
			lib, _ := storage.Get[*entity.Library](r, libID)
			oe.AddChild(libraryElement(r, libID, moduleLibraryFileName(lib), ""))
			return oe
		}
		oe.CreateAttr("type", "library")
		setFlag(oe, "exported", d.Exported)
		writeScope(oe, d.Scope)
		oe.CreateAttr("name", d.Library.Name)
		oe.CreateAttr("level", d.Library.Table.Level)
	default:
		return nil
	}
	return oe
}

func writeScope(el *etree.Element, scope entity.DependencyScope) {
	if scope != "" && scope != entity.ScopeCompile {
		el.CreateAttr("scope", string(scope))
	}
}

func contentRootElement(r storage.Reader, id storage.ID, root *entity.ContentRoot) *etree.Element {
	content := etree.NewElement("content")
	content.CreateAttr("url", root.URL.String())

	roots := storage.ChildrenOf[*entity.SourceRoot](r, id)
	position := make(map[fileurl.URL]int)
	if order, ok := storage.ChildOf[*entity.SourceRootOrder](r, id); ok {
		for i, u := range order.Entity.Order {
			if _, seen := position[u]; !seen {
				position[u] = i
			}
		}
	}
	sort.SliceStable(roots, func(i, j int) bool {
		pi, iok := position[roots[i].Entity.URL]
		pj, jok := position[roots[j].Entity.URL]
		switch {
		case iok && jok:
			return pi < pj
		case iok != jok:
			return iok
		}
		return roots[i].Entity.URL < roots[j].Entity.URL
	})
	for _, sr := range roots {
		content.AddChild(sourceFolderElement(r, sr.ID, sr.Entity))
	}

	excludes := storage.ChildrenOf[*entity.ExcludeURL](r, id)
	exPos := make(map[fileurl.URL]int)
	if order, ok := storage.ChildOf[*entity.ExcludeURLOrder](r, id); ok {
		for i, u := range order.Entity.Order {
			if _, seen := exPos[u]; !seen {
				exPos[u] = i
			}
		}
	}
	sort.SliceStable(excludes, func(i, j int) bool {
		pi, iok := exPos[excludes[i].Entity.URL]
		pj, jok := exPos[excludes[j].Entity.URL]
		switch {
		case iok && jok:
			return pi < pj
		case iok != jok:
			return iok
		}
		return excludes[i].Entity.URL < excludes[j].Entity.URL
	})
	for _, ex := range excludes {
		content.CreateElement("excludeFolder").CreateAttr("url", ex.Entity.URL.String())
	}
	for _, p := range root.ExcludePatterns {
		content.CreateElement("excludePattern").CreateAttr("pattern", p)
	}
	return content
}

func sourceFolderElement(r storage.Reader, id storage.ID, sr *entity.SourceRoot) *etree.Element {
	if custom, ok := storage.ChildOf[*entity.CustomSourceRootProperties](r, id); ok {
		if el, err := parseElement(custom.Entity.PropertiesXML); err == nil && el != nil {
			el.Tag = "sourceFolder"
			el.RemoveAttr("url")
			el.RemoveAttr("type")
			attrs := el.Attr
			el.Attr = nil
			el.CreateAttr("url", sr.URL.String())
			el.CreateAttr("type", sr.RootType)
			for _, a := range attrs {
				el.CreateAttr(a.FullKey(), a.Value)
			}
			return el
		}
	}

	sf := etree.NewElement("sourceFolder")
	sf.CreateAttr("url", sr.URL.String())
	switch sr.RootType {
	case entity.RootTypeJavaSource, entity.RootTypeJavaTest:
		sf.CreateAttr("isTestSource", boolString(sr.RootType == entity.RootTypeJavaTest))
		if props, ok := storage.ChildOf[*entity.JavaSourceRootProperties](r, id); ok {
			setAttr(sf, "packagePrefix", props.Entity.PackagePrefix)
			setBoolAttr(sf, "generated", props.Entity.Generated)
		}
	default:
		sf.CreateAttr("type", sr.RootType)
		if props, ok := storage.ChildOf[*entity.JavaResourceRootProperties](r, id); ok {
			setAttr(sf, "relativeOutputPath", props.Entity.RelativeOutputPath)
			setBoolAttr(sf, "generated", props.Entity.Generated)
		}
	}
	return sf
}

// DeleteObsoleteFile implements FileEntitiesSerializer. The components
// owned by the serializer are removed; unknown components stay.
func (s *ModuleImlSerializer) DeleteObsoleteFile(writer FileContentWriter) {
	writer.SaveComponent(s.fileURL, ModuleOptionsComponent, nil)
	writer.SaveComponent(s.fileURL, rootManagerComponent, nil)
	writer.SaveComponent(s.fileURL, facetManagerComponent, nil)
	if s.external {
		writer.SaveComponent(s.fileURL, externalSystemComponent, nil)
	}
	for _, cs := range s.ctx.componentSerializers() {
		writer.SaveComponent(s.fileURL, cs.ComponentName(), nil)
	}
}
