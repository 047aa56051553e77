package main

import (
	"sort"

	"github.com/dshills/jpsmodel/internal/workspace/entity"
	"github.com/dshills/jpsmodel/internal/workspace/storage"
)

// dump is the YAML view of a loaded project.
type dump struct {
	ProjectSdk string         `yaml:"project_sdk,omitempty"`
	Modules    []dumpModule   `yaml:"modules"`
	Unloaded   []string       `yaml:"unloaded,omitempty"`
	Libraries  []dumpLibrary  `yaml:"libraries,omitempty"`
	Artifacts  []dumpArtifact `yaml:"artifacts,omitempty"`
	Sdks       []dumpSdk      `yaml:"sdks,omitempty"`
}

type dumpModule struct {
	Name         string            `yaml:"name"`
	Type         string            `yaml:"type,omitempty"`
	File         string            `yaml:"file,omitempty"`
	ContentRoots []dumpContentRoot `yaml:"content_roots,omitempty"`
	Dependencies []string          `yaml:"dependencies,omitempty"`
	Libraries    []dumpLibrary     `yaml:"libraries,omitempty"`
	Facets       []string          `yaml:"facets,omitempty"`
}

type dumpContentRoot struct {
	URL         string   `yaml:"url"`
	SourceRoots []string `yaml:"source_roots,omitempty"`
	Excluded    []string `yaml:"excluded,omitempty"`
}

type dumpLibrary struct {
	Name  string   `yaml:"name"`
	Level string   `yaml:"level,omitempty"`
	Roots []string `yaml:"roots,omitempty"`
}

type dumpArtifact struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Output string `yaml:"output,omitempty"`
}

type dumpSdk struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Version string `yaml:"version,omitempty"`
	Home    string `yaml:"home,omitempty"`
}

func newDump(r, unloaded storage.Reader) dump {
	var d dump

	for _, ref := range storage.All[*entity.ProjectSettings](r) {
		if sdk := ref.Entity.ProjectSdk; sdk != nil {
			d.ProjectSdk = sdk.Name
		}
	}

	facets := make(map[string][]string)
	for _, ref := range storage.All[*entity.Facet](r) {
		f := ref.Entity
		facets[f.Module.Name] = append(facets[f.Module.Name], f.FacetType+":"+f.Name)
	}

	moduleLibs := make(map[string][]dumpLibrary)
	for _, ref := range storage.All[*entity.Library](r) {
		lib := ref.Entity
		dl := newDumpLibrary(lib)
		if lib.Table.IsModuleLevel() {
			dl.Level = ""
			moduleLibs[lib.Table.Module] = append(moduleLibs[lib.Table.Module], dl)
			continue
		}
		d.Libraries = append(d.Libraries, dl)
	}
	sort.Slice(d.Libraries, func(i, j int) bool {
		if d.Libraries[i].Level != d.Libraries[j].Level {
			return d.Libraries[i].Level > d.Libraries[j].Level
		}
		return d.Libraries[i].Name < d.Libraries[j].Name
	})

	for _, ref := range storage.All[*entity.Module](r) {
		m := ref.Entity
		dm := dumpModule{
			Name:      m.Name,
			Type:      m.Type,
			File:      m.Source.VirtualFileURL().Path(),
			Libraries: moduleLibs[m.Name],
			Facets:    facets[m.Name],
		}
		for _, cr := range storage.ChildrenOf[*entity.ContentRoot](r, ref.ID) {
			dcr := dumpContentRoot{URL: cr.Entity.URL.String()}
			for _, sr := range storage.ChildrenOf[*entity.SourceRoot](r, cr.ID) {
				dcr.SourceRoots = append(dcr.SourceRoots, sr.Entity.RootType+" "+sr.Entity.URL.String())
			}
			for _, ex := range storage.ChildrenOf[*entity.ExcludeURL](r, cr.ID) {
				dcr.Excluded = append(dcr.Excluded, ex.Entity.URL.String())
			}
			dm.ContentRoots = append(dm.ContentRoots, dcr)
		}
		for _, dep := range m.Dependencies {
			if s := describeDependency(dep); s != "" {
				dm.Dependencies = append(dm.Dependencies, s)
			}
		}
		d.Modules = append(d.Modules, dm)
	}
	sort.Slice(d.Modules, func(i, j int) bool { return d.Modules[i].Name < d.Modules[j].Name })

	for _, ref := range storage.All[*entity.Module](unloaded) {
		d.Unloaded = append(d.Unloaded, ref.Entity.Name)
	}
	sort.Strings(d.Unloaded)

	for _, ref := range storage.All[*entity.Artifact](r) {
		a := ref.Entity
		d.Artifacts = append(d.Artifacts, dumpArtifact{Name: a.Name, Type: a.ArtifactType, Output: a.OutputURL.String()})
	}
	sort.Slice(d.Artifacts, func(i, j int) bool { return d.Artifacts[i].Name < d.Artifacts[j].Name })

	for _, ref := range storage.All[*entity.Sdk](r) {
		s := ref.Entity
		d.Sdks = append(d.Sdks, dumpSdk{Name: s.Name, Type: s.Type, Version: s.Version, Home: s.HomePath.String()})
	}
	sort.Slice(d.Sdks, func(i, j int) bool { return d.Sdks[i].Name < d.Sdks[j].Name })

	return d
}

func newDumpLibrary(lib *entity.Library) dumpLibrary {
	dl := dumpLibrary{Name: lib.Name, Level: lib.Table.Level}
	for _, root := range lib.Roots {
		dl.Roots = append(dl.Roots, string(root.Type)+" "+root.URL.String())
	}
	return dl
}

// describeDependency renders one order entry. The module's own sources
// are implied and left out.
func describeDependency(dep entity.Dependency) string {
	switch d := dep.(type) {
	case entity.InheritedSdkDependency:
		return "sdk (inherited)"
	case entity.SdkDependency:
		return "sdk " + d.Sdk.Name
	case entity.ModuleDependency:
		return "module " + d.Module.Name + scopeSuffix(d.Scope, d.Exported)
	case entity.LibraryDependency:
		return "library " + d.Library.Name + " (" + d.Library.Table.Level + ")" + scopeSuffix(d.Scope, d.Exported)
	}
	return ""
}

func scopeSuffix(scope entity.DependencyScope, exported bool) string {
	var s string
	if scope != "" && scope != entity.ScopeCompile {
		s += " " + string(scope)
	}
	if exported {
		s += " exported"
	}
	return s
}
