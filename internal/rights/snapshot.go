package rights

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dinesh-gnapitech/insite/internal/db/models"
	"github.com/dinesh-gnapitech/insite/internal/filter"
)

// Key identifies one snapshot: a configuration version plus a sorted
// role set.
type Key struct {
	ConfigVersion int
	RoleSet       string
}

// NewKey builds a snapshot key. Role order does not matter; the set is
// sorted so equivalent role lists share one snapshot.
func NewKey(configVersion int, roles []string) Key {
	sorted := make([]string, len(roles))
	copy(sorted, roles)
	sort.Strings(sorted)

	return Key{ConfigVersion: configVersion, RoleSet: strings.Join(sorted, ",")}
}

// String renders the key for use as a single-flight group key.
func (k Key) String() string {
	return fmt.Sprintf("%d|%s", k.ConfigVersion, k.RoleSet)
}

// TypeKey identifies a feature type within a datasource.
type TypeKey struct {
	Datasource string
	Name       string
}

// GrantedRight is one right granted under an application, with the
// optional editFeatures restriction.
type GrantedRight struct {
	Name        string
	Restriction []string
}

// FieldDesc describes one field of a feature type.
type FieldDesc struct {
	Name       string
	Type       string
	Mandatory  bool
	Default    string
	Indexed    bool
	Enumerator string
	Unit       string
	Scale      float64
	Min        *float64
	Max        *float64
}

// FieldGroupDesc is one display group of fields.
type FieldGroupDesc struct {
	Name     string
	Expanded bool
	Fields   []string
}

// FeatureTypeDesc is the materialised view of one accessible feature
// type: its schema plus the user's effective filter set.
type FeatureTypeDesc struct {
	Datasource    string
	Name          string
	ExternalName  string
	KeyField      string
	GeometryField string // empty for geometry-less types
	Editable      bool
	Versioned     bool
	TrackChanges  bool
	GeomIndexed   bool
	Fields        []FieldDesc
	FieldGroups   []FieldGroupDesc
	// Filters maps the granted filter names to their compiled
	// predicates.
	Filters map[string]*filter.Predicate
	// SearchRuleIDs indexes the type's search rules by language.
	SearchRuleIDs map[string][]uint
	// QueryIDs indexes the type's queries by language.
	QueryIDs map[string][]uint
	// Unfiltered is true iff the granted filter set includes the
	// universal filter: no row-level predicate need be applied.
	Unfiltered bool
}

// Filter returns the named granted filter predicate, or nil.
func (d *FeatureTypeDesc) Filter(name string) *filter.Predicate {
	if d == nil {
		return nil
	}

	return d.Filters[name]
}

// Snapshot is the immutable rights bundle for one key. It is never
// mutated after publication; a configuration version rollover produces
// a new snapshot under a new key.
type Snapshot struct {
	// Version is the configuration version the snapshot is pinned to.
	Version int
	// Roles is the sorted role set the snapshot was built for.
	Roles []string

	applications map[string]struct{}
	layers       map[string]struct{} // by name
	overlays     map[string]struct{} // by code
	tileLayers   map[string]struct{} // by name
	datasources  map[string]struct{}
	networks     map[string]struct{}
	layerGroups  map[string][]string // group name -> accessible member layer names
	featureTypes map[TypeKey]*FeatureTypeDesc
	// editable holds, per application, the feature types the user may
	// edit there, restrictions already applied.
	editable    map[string]map[TypeKey]struct{}
	rightsByApp map[string][]GrantedRight
}

// CanAccessApplication reports whether the application is accessible.
func (s *Snapshot) CanAccessApplication(name string) bool {
	_, ok := s.applications[name]
	return ok
}

// ApplicationNames returns the accessible application names, sorted.
func (s *Snapshot) ApplicationNames() []string {
	return sortedKeys(s.applications)
}

// CanAccessLayer reports whether the named layer is accessible.
func (s *Snapshot) CanAccessLayer(name string) bool {
	_, ok := s.layers[name]
	return ok
}

// CanAccessOverlay reports whether the overlay with the given code is
// accessible.
func (s *Snapshot) CanAccessOverlay(code string) bool {
	_, ok := s.overlays[code]
	return ok
}

// CanAccessTileLayer reports whether the named tile layer is accessible.
func (s *Snapshot) CanAccessTileLayer(name string) bool {
	_, ok := s.tileLayers[name]
	return ok
}

// LayerNames returns the accessible layer names, sorted.
func (s *Snapshot) LayerNames() []string {
	return sortedKeys(s.layers)
}

// OverlayCodes returns the accessible overlay codes, sorted.
func (s *Snapshot) OverlayCodes() []string {
	return sortedKeys(s.overlays)
}

// CanAccessDatasource reports whether the named datasource is accessible.
func (s *Snapshot) CanAccessDatasource(name string) bool {
	_, ok := s.datasources[name]
	return ok
}

// DatasourceNames returns the accessible datasource names, sorted.
func (s *Snapshot) DatasourceNames() []string {
	return sortedKeys(s.datasources)
}

// NetworkNames returns the accessible network names, sorted.
func (s *Snapshot) NetworkNames() []string {
	return sortedKeys(s.networks)
}

// LayerGroups returns the layer groups with their accessible members.
func (s *Snapshot) LayerGroups() map[string][]string {
	out := make(map[string][]string, len(s.layerGroups))
	for name, members := range s.layerGroups {
		cp := make([]string, len(members))
		copy(cp, members)
		out[name] = cp
	}

	return out
}

// FeatureType returns the descriptor for (datasource, name), or nil if
// not accessible.
func (s *Snapshot) FeatureType(datasource, name string) *FeatureTypeDesc {
	return s.featureTypes[TypeKey{Datasource: datasource, Name: name}]
}

// CanAccessFeatureType reports whether (datasource, name) is accessible.
func (s *Snapshot) CanAccessFeatureType(datasource, name string) bool {
	return s.FeatureType(datasource, name) != nil
}

// FeatureTypes returns the accessible descriptors of one datasource.
// With editableOnly set, only types editable somewhere are returned.
func (s *Snapshot) FeatureTypes(datasource string, editableOnly bool) []*FeatureTypeDesc {
	var out []*FeatureTypeDesc

	for key, desc := range s.featureTypes {
		if key.Datasource != datasource {
			continue
		}

		if editableOnly && !s.editableAnywhere(key) {
			continue
		}

		out = append(out, desc)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

func (s *Snapshot) editableAnywhere(key TypeKey) bool {
	for _, types := range s.editable {
		if _, ok := types[key]; ok {
			return true
		}
	}

	return false
}

// CanEditFeatureType reports whether (datasource, name) is editable
// under the given application, honouring editFeatures restrictions.
func (s *Snapshot) CanEditFeatureType(application, datasource, name string) bool {
	types, ok := s.editable[application]
	if !ok {
		return false
	}

	_, ok = types[TypeKey{Datasource: datasource, Name: name}]

	return ok
}

// HasRight reports whether the named right is granted under the
// application. accessApplication is answered from the accessible set.
func (s *Snapshot) HasRight(right, application string) bool {
	if right == models.RightAccessApplication {
		return s.CanAccessApplication(application)
	}

	for _, g := range s.rightsByApp[application] {
		if g.Name == right {
			return true
		}
	}

	return false
}

// Rights returns the granted rights under an application.
func (s *Snapshot) Rights(application string) []GrantedRight {
	src := s.rightsByApp[application]
	out := make([]GrantedRight, len(src))
	copy(out, src)

	return out
}

// RightNames returns the granted right names under an application, sorted.
func (s *Snapshot) RightNames(application string) []string {
	seen := make(map[string]struct{})
	for _, g := range s.rightsByApp[application] {
		seen[g.Name] = struct{}{}
	}

	return sortedKeys(seen)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}
