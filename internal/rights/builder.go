package rights

import (
	"context"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dinesh-gnapitech/insite/internal/db/models"
	"github.com/dinesh-gnapitech/insite/internal/filter"
)

// Builder materialises snapshots from the configuration database.
type Builder struct {
	db *gorm.DB
}

// NewBuilder creates a snapshot builder over the given database.
func NewBuilder(db *gorm.DB) *Builder {
	return &Builder{db: db}
}

// Build materialises the snapshot for one key. The result is treated
// as immutable by every consumer.
func (b *Builder) Build(ctx context.Context, key Key) (*Snapshot, error) {
	roles := splitRoleSet(key.RoleSet)

	snap := &Snapshot{
		Version:      key.ConfigVersion,
		Roles:        roles,
		applications: make(map[string]struct{}),
		layers:       make(map[string]struct{}),
		overlays:     make(map[string]struct{}),
		tileLayers:   make(map[string]struct{}),
		datasources:  make(map[string]struct{}),
		networks:     make(map[string]struct{}),
		layerGroups:  make(map[string][]string),
		featureTypes: make(map[TypeKey]*FeatureTypeDesc),
		editable:     make(map[string]map[TypeKey]struct{}),
		rightsByApp:  make(map[string][]GrantedRight),
	}

	perms, err := b.loadPermissions(ctx, roles)
	if err != nil {
		return nil, err
	}

	for i := range perms {
		p := &perms[i]
		appName := p.Application.Name

		snap.rightsByApp[appName] = append(snap.rightsByApp[appName], GrantedRight{
			Name:        p.Right.Name,
			Restriction: p.Restriction,
		})

		if p.Right.Name == models.RightAccessApplication {
			snap.applications[appName] = struct{}{}
		}
	}

	if err := b.materialiseLayers(ctx, snap); err != nil {
		return nil, err
	}

	if err := b.materialiseNetworks(ctx, snap); err != nil {
		return nil, err
	}

	if err := b.materialiseLayerGroups(ctx, snap); err != nil {
		return nil, err
	}

	return snap, nil
}

func splitRoleSet(set string) []string {
	if set == "" {
		return nil
	}

	var roles []string

	start := 0

	for i := 0; i <= len(set); i++ {
		if i == len(set) || set[i] == ',' {
			if i > start {
				roles = append(roles, set[start:i])
			}

			start = i + 1
		}
	}

	return roles
}

func (b *Builder) loadPermissions(ctx context.Context, roles []string) ([]models.Permission, error) {
	var perms []models.Permission

	err := b.db.WithContext(ctx).
		Joins("JOIN roles ON roles.id = permissions.role_id").
		Where("roles.name IN ?", roles).
		Preload("Right").
		Preload("Application").
		Find(&perms).Error
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return perms, nil
}

// materialiseLayers walks every accessible application's layer
// bindings and fills the layer, datasource, feature-type and editable
// sets.
func (b *Builder) materialiseLayers(ctx context.Context, snap *Snapshot) error {
	for appName := range snap.applications {
		var app models.Application

		err := b.db.WithContext(ctx).
			Where("name = ?", appName).
			Preload("Layers", func(db *gorm.DB) *gorm.DB { return db.Order("application_layers.position") }).
			Preload("Layers.Layer.Datasource").
			Preload("Layers.Layer.Features", func(db *gorm.DB) *gorm.DB { return db.Order("layer_features.position") }).
			Preload("Layers.Layer.Features.FeatureType.Datasource").
			Preload("Layers.Layer.Features.FeatureType.Fields", func(db *gorm.DB) *gorm.DB { return db.Order("feature_fields.position") }).
			Preload("Layers.Layer.Features.FeatureType.FieldGroups", func(db *gorm.DB) *gorm.DB { return db.Order("field_groups.position") }).
			Preload("Layers.Layer.Features.FeatureType.Filters").
			Preload("Layers.Layer.Features.FeatureType.SearchRules").
			Preload("Layers.Layer.Features.FeatureType.Queries").
			First(&app).Error
		if err != nil {
			return err //nolint:wrapcheck
		}

		restriction, hasEdit := editGrant(snap.rightsByApp[appName])

		for i := range app.Layers {
			binding := &app.Layers[i]
			b.materialiseBinding(snap, appName, binding, hasEdit, restriction)
		}
	}

	return nil
}

// editGrant extracts the editFeatures grant for one application.
// A nil restriction with hasEdit true means an unrestricted grant.
func editGrant(granted []GrantedRight) (restriction []string, hasEdit bool) {
	for _, g := range granted {
		if g.Name != models.RightEditFeatures {
			continue
		}

		if g.Restriction == nil {
			// an unrestricted grant wins over any restricted one
			return nil, true
		}

		restriction = append(restriction, g.Restriction...)
		hasEdit = true
	}

	return restriction, hasEdit
}

func (b *Builder) materialiseBinding(
	snap *Snapshot,
	appName string,
	binding *models.ApplicationLayer,
	hasEdit bool,
	restriction []string,
) {
	layer := &binding.Layer

	snap.layers[layer.Name] = struct{}{}
	snap.datasources[layer.Datasource.Name] = struct{}{}

	if layer.Category == models.LayerCategoryOverlay {
		snap.overlays[layer.Code] = struct{}{}
	}

	if layer.Type == models.LayerTypeTile {
		snap.tileLayers[layer.Name] = struct{}{}
	}

	for i := range layer.Features {
		lf := &layer.Features[i]
		desc := b.featureTypeDesc(snap, &lf.FeatureType)

		// grant the bound filter; an empty filter name grants the
		// universal (unfiltered) view
		if lf.FilterName == "" {
			desc.Unfiltered = true
		} else if _, ok := desc.Filters[lf.FilterName]; !ok {
			b.grantFilter(desc, &lf.FeatureType, lf.FilterName)
		}

		if hasEdit && desc.Editable && !binding.ReadOnly && allowsType(restriction, desc.Name) {
			key := TypeKey{Datasource: desc.Datasource, Name: desc.Name}
			if snap.editable[appName] == nil {
				snap.editable[appName] = make(map[TypeKey]struct{})
			}

			snap.editable[appName][key] = struct{}{}
		}
	}
}

// allowsType checks an editFeatures restriction list. A nil list means
// the grant is unrestricted.
func allowsType(restriction []string, typeName string) bool {
	if restriction == nil {
		return true
	}

	for _, t := range restriction {
		if t == typeName {
			return true
		}
	}

	return false
}

// featureTypeDesc returns the snapshot's descriptor for the given
// feature type, creating and populating it on first sight.
func (b *Builder) featureTypeDesc(snap *Snapshot, ft *models.FeatureType) *FeatureTypeDesc {
	key := TypeKey{Datasource: ft.Datasource.Name, Name: ft.Name}
	if desc, ok := snap.featureTypes[key]; ok {
		return desc
	}

	desc := &FeatureTypeDesc{
		Datasource:    ft.Datasource.Name,
		Name:          ft.Name,
		ExternalName:  ft.ExternalName,
		KeyField:      ft.KeyField,
		Editable:      ft.Editable,
		Versioned:     ft.Versioned,
		TrackChanges:  ft.TrackChanges,
		GeomIndexed:   ft.GeomIndexed,
		Filters:       make(map[string]*filter.Predicate),
		SearchRuleIDs: make(map[string][]uint),
		QueryIDs:      make(map[string][]uint),
	}

	if ft.GeometryField != nil {
		desc.GeometryField = *ft.GeometryField
	}

	for _, f := range ft.Fields {
		desc.Fields = append(desc.Fields, FieldDesc{
			Name:       f.Name,
			Type:       f.Type,
			Mandatory:  f.Mandatory,
			Default:    f.Default,
			Indexed:    f.Indexed,
			Enumerator: f.Enumerator,
			Unit:       f.Unit,
			Scale:      f.Scale,
			Min:        f.Min,
			Max:        f.Max,
		})
	}

	for _, g := range ft.FieldGroups {
		desc.FieldGroups = append(desc.FieldGroups, FieldGroupDesc{
			Name:     g.Name,
			Expanded: g.Expanded,
			Fields:   g.Fields,
		})
	}

	for _, r := range ft.SearchRules {
		desc.SearchRuleIDs[r.Lang] = append(desc.SearchRuleIDs[r.Lang], r.ID)
	}

	for _, q := range ft.Queries {
		desc.QueryIDs[q.Lang] = append(desc.QueryIDs[q.Lang], q.ID)
	}

	snap.featureTypes[key] = desc

	return desc
}

// grantFilter compiles the named filter of the feature type into the
// descriptor. An unparseable expression is logged and skipped; the
// filter then simply is not granted.
func (b *Builder) grantFilter(desc *FeatureTypeDesc, ft *models.FeatureType, name string) {
	for _, f := range ft.Filters {
		if f.Name != name {
			continue
		}

		pred, err := filter.Parse(f.Expression)
		if err != nil {
			log.Error().Err(err).
				Str("feature_type", ft.Name).
				Str("filter", name).
				Msg("skipping unparseable filter expression")

			return
		}

		desc.Filters[name] = pred

		return
	}
}

// materialiseNetworks includes every network whose datasource is
// accessible.
func (b *Builder) materialiseNetworks(ctx context.Context, snap *Snapshot) error {
	var networks []models.Network

	err := b.db.WithContext(ctx).Preload("Datasource").Find(&networks).Error
	if err != nil {
		return err //nolint:wrapcheck
	}

	for _, n := range networks {
		if _, ok := snap.datasources[n.Datasource.Name]; ok {
			snap.networks[n.Name] = struct{}{}
		}
	}

	return nil
}

// materialiseLayerGroups includes every group with at least one
// accessible member, listing only the accessible members.
func (b *Builder) materialiseLayerGroups(ctx context.Context, snap *Snapshot) error {
	var groups []models.LayerGroup

	err := b.db.WithContext(ctx).Preload("Layers").Find(&groups).Error
	if err != nil {
		return err //nolint:wrapcheck
	}

	for _, g := range groups {
		var members []string

		for _, l := range g.Layers {
			if _, ok := snap.layers[l.Name]; ok {
				members = append(members, l.Name)
			}
		}

		if len(members) > 0 {
			snap.layerGroups[g.Name] = members
		}
	}

	return nil
}
