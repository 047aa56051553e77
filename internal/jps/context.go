package jps

import (
	"sort"
	"sync"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"

	"github.com/dshills/jpsmodel/internal/workspace/entity"
	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
	"github.com/dshills/jpsmodel/internal/workspace/storage"
)

// ErrorReporter receives user-visible problems tied to a file. Reported
// problems never abort loading.
type ErrorReporter interface {
	ReportError(message string, file fileurl.URL)
}

// ErrorReporterFunc adapts a function to ErrorReporter.
type ErrorReporterFunc func(message string, file fileurl.URL)

// ReportError implements ErrorReporter.
func (f ErrorReporterFunc) ReportError(message string, file fileurl.URL) { f(message, file) }

// FacetState is the serialized form of one facet tag.
type FacetState struct {
	Name             string
	FacetType        string
	ExternalSystemID string
	Configuration    *etree.Element
	SubFacets        []FacetState
}

// CustomFacetRelatedEntitySerializer replaces the generic Facet entity for
// one facet type.
type CustomFacetRelatedEntitySerializer interface {
	// FacetType returns the facet type id the serializer claims.
	FacetType() string
	// LoadFacet adds the entities for state under moduleID. underlying is
	// the parent facet of a nested facet.
	LoadFacet(b *storage.Builder, moduleID storage.ID, state FacetState, underlying *entity.FacetID, source entity.Source) error
	// SaveFacets returns the states of facets owned by the serializer under
	// moduleID whose source satisfies include.
	SaveFacets(r storage.Reader, moduleID storage.ID, include func(entity.Source) bool) []FacetState
}

// CustomModuleRootsSerializer loads and saves the content roots and
// dependencies of modules whose classpath is provided by another build
// system. It is selected by the "classpath" module option.
type CustomModuleRootsSerializer interface {
	// ID returns the classpath provider id.
	ID() string
	// LoadRoots adds content roots and the dependency list of the module.
	LoadRoots(b *storage.Builder, moduleID storage.ID, source entity.Source, imlFile fileurl.URL, reader FileContentReader, reporter ErrorReporter) error
	// SaveRoots writes content roots and dependencies of the module.
	SaveRoots(r storage.Reader, moduleID storage.ID, imlFile fileurl.URL, writer FileContentWriter) error
}

// CustomModuleComponentSerializer maps one extra .iml component onto
// entities.
type CustomModuleComponentSerializer interface {
	// ComponentName returns the name of the component tag.
	ComponentName() string
	// LoadComponent adds entities for component under moduleID.
	LoadComponent(b *storage.Builder, moduleID storage.ID, component *etree.Element, source entity.Source) error
	// SaveComponent returns the component for the module, or nil to remove
	// it from the file.
	SaveComponent(r storage.Reader, moduleID storage.ID) *etree.Element
}

// SerializationContext carries the collaborators every serializer needs.
// It replaces global extension-point lookups: plugins are registered here
// explicitly.
type SerializationContext struct {
	// Logger receives diagnostics. Defaults to logrus.New().
	Logger *logrus.Logger

	// ErrorReporter receives user-visible problems. Defaults to logging.
	ErrorReporter ErrorReporter

	// ExternalStorageEnabled splits imported entities into the external
	// storage.
	ExternalStorageEnabled bool

	// UnloadedModules names modules loaded into the unloaded storage.
	UnloadedModules map[string]bool

	// SourceNames maps directory source ids to file names.
	SourceNames *FileInDirectorySourceNames

	// Project is recorded in project-level sources.
	Project entity.ProjectLocation

	mu                  sync.RWMutex
	facetSerializers    map[string]CustomFacetRelatedEntitySerializer
	rootsSerializers    map[string]CustomModuleRootsSerializer
	componentSerializer []CustomModuleComponentSerializer
}

// NewSerializationContext returns a context with defaults applied.
func NewSerializationContext(logger *logrus.Logger) *SerializationContext {
	if logger == nil {
		logger = logrus.New()
	}
	c := &SerializationContext{
		Logger:           logger,
		UnloadedModules:  make(map[string]bool),
		SourceNames:      NewFileInDirectorySourceNames(),
		facetSerializers: make(map[string]CustomFacetRelatedEntitySerializer),
		rootsSerializers: make(map[string]CustomModuleRootsSerializer),
	}
	c.ErrorReporter = ErrorReporterFunc(func(message string, file fileurl.URL) {
		logger.WithFields(logrus.Fields{"file": file.String()}).Warn(message)
	})
	return c
}

// RegisterFacetSerializer registers a custom facet serializer.
func (c *SerializationContext) RegisterFacetSerializer(s CustomFacetRelatedEntitySerializer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.facetSerializers[s.FacetType()] = s
}

// RegisterModuleRootsSerializer registers a classpath provider.
func (c *SerializationContext) RegisterModuleRootsSerializer(s CustomModuleRootsSerializer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rootsSerializers[s.ID()] = s
}

// RegisterModuleComponentSerializer registers a custom .iml component.
func (c *SerializationContext) RegisterModuleComponentSerializer(s CustomModuleComponentSerializer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.componentSerializer = append(c.componentSerializer, s)
}

func (c *SerializationContext) facetSerializer(facetType string) (CustomFacetRelatedEntitySerializer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.facetSerializers[facetType]
	return s, ok
}

func (c *SerializationContext) customFacetSerializers() []CustomFacetRelatedEntitySerializer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]CustomFacetRelatedEntitySerializer, 0, len(c.facetSerializers))
	for _, s := range c.facetSerializers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FacetType() < out[j].FacetType() })
	return out
}

func (c *SerializationContext) rootsSerializer(id string) (CustomModuleRootsSerializer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.rootsSerializers[id]
	return s, ok
}

func (c *SerializationContext) componentSerializers() []CustomModuleComponentSerializer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]CustomModuleComponentSerializer(nil), c.componentSerializer...)
}

func (c *SerializationContext) reporter() ErrorReporter {
	if c.ErrorReporter != nil {
		return c.ErrorReporter
	}
	return ErrorReporterFunc(func(string, fileurl.URL) {})
}

func (c *SerializationContext) logger() *logrus.Logger {
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
	return c.Logger
}
