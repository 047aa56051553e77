package jps

import (
	"github.com/beevik/etree"

	"github.com/dshills/jpsmodel/internal/workspace/entity"
	"github.com/dshills/jpsmodel/internal/workspace/storage"
)

const (
	facetManagerComponent = "FacetManager"
	facetTag              = "facet"
	configurationTag      = "configuration"
)

func readFacetState(tag *etree.Element) FacetState {
	st := FacetState{
		Name:             attr(tag, "name"),
		FacetType:        attr(tag, "type"),
		ExternalSystemID: attr(tag, externalSystemIDAttr),
		Configuration:    tag.SelectElement(configurationTag),
	}
	for _, sub := range tag.SelectElements(facetTag) {
		st.SubFacets = append(st.SubFacets, readFacetState(sub))
	}
	return st
}

func facetStateElement(st FacetState, writeExternalID bool) *etree.Element {
	tag := etree.NewElement(facetTag)
	tag.CreateAttr("type", st.FacetType)
	tag.CreateAttr("name", st.Name)
	if writeExternalID {
		setAttr(tag, externalSystemIDAttr, st.ExternalSystemID)
	}
	if st.Configuration != nil {
		cfg := st.Configuration.Copy()
		cfg.Tag = configurationTag
		tag.AddChild(cfg)
	}
	for _, sub := range st.SubFacets {
		tag.AddChild(facetStateElement(sub, writeExternalID))
	}
	return tag
}

func (s *ModuleImlSerializer) facetSource(moduleSource entity.Source, externalSystemID string) entity.Source {
	if externalSystemID == "" {
		return moduleSource
	}
	return entity.ImportedSource{Internal: s.source, ExternalSystemID: externalSystemID, StoredExternally: s.external}
}

func (s *ModuleImlSerializer) loadFacets(b *storage.Builder, modID storage.ID, moduleName string, comp *etree.Element, moduleSource entity.Source) error {
	var errs errorCollector
	var load func(st FacetState, underlying *entity.FacetID)
	load = func(st FacetState, underlying *entity.FacetID) {
		src := s.facetSource(moduleSource, st.ExternalSystemID)
		id := entity.FacetID{Name: st.Name, Type: st.FacetType, Module: entity.ModuleID{Name: moduleName}}
		if custom, ok := s.ctx.facetSerializer(st.FacetType); ok {
			errs.add(custom.LoadFacet(b, modID, st, underlying, src))
		} else {
			b.AddChild(modID, &entity.Facet{
				Name:             st.Name,
				Module:           id.Module,
				FacetType:        st.FacetType,
				ConfigurationXML: elementToString(st.Configuration),
				Underlying:       underlying,
				Source:           src,
			})
		}
		for _, sub := range st.SubFacets {
			parent := id
			load(sub, &parent)
		}
	}
	for _, tag := range comp.SelectElements(facetTag) {
		load(readFacetState(tag), nil)
	}
	return errs.first()
}

// facetsElement returns the FacetManager component for the module, or nil
// when it has no facets stored in this file.
func (s *ModuleImlSerializer) facetsElement(r storage.Reader, modID storage.ID) *etree.Element {
	facets := storage.ChildrenOf[*entity.Facet](r, modID)
	included := make(map[entity.FacetID]bool, len(facets))
	for _, f := range facets {
		if s.includes(f.Entity.Source) {
			included[f.Entity.ID()] = true
		}
	}

	children := make(map[entity.FacetID][]*entity.Facet)
	var roots []*entity.Facet
	for _, f := range facets {
		if !included[f.Entity.ID()] {
			continue
		}
		if u := f.Entity.Underlying; u != nil && included[*u] {
			children[*u] = append(children[*u], f.Entity)
			continue
		}
		roots = append(roots, f.Entity)
	}

	var state func(f *entity.Facet) FacetState
	state = func(f *entity.Facet) FacetState {
		st := FacetState{
			Name:             f.Name,
			FacetType:        f.FacetType,
			ExternalSystemID: entity.ExternalSystemID(f.Source),
		}
		if f.ConfigurationXML != "" {
			st.Configuration, _ = parseElement(f.ConfigurationXML)
		}
		for _, c := range children[f.ID()] {
			st.SubFacets = append(st.SubFacets, state(c))
		}
		return st
	}

	var states []FacetState
	for _, f := range roots {
		states = append(states, state(f))
	}
	for _, custom := range s.ctx.customFacetSerializers() {
		states = append(states, custom.SaveFacets(r, modID, s.includes)...)
	}
	if len(states) == 0 {
		return nil
	}

	comp := newComponent()
	for _, st := range states {
		comp.AddChild(facetStateElement(st, !s.external))
	}
	return comp
}
