// Package blueprints loads the content model: sites, asset containers,
// collections with their blueprint fields, and named validator rule sets.
package blueprints

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/duncanmcclean/guest-entries/internal/common"
	"github.com/duncanmcclean/guest-entries/internal/server/models"
	"gopkg.in/yaml.v3"
)

// Model is the parsed content model. It is read-only after Load.
type Model struct {
	defaultSite string
	sites       map[string]models.Site
	containers  map[string]models.AssetContainer
	collections map[string]*models.Collection
	validators  map[string]map[string][]string
}

type document struct {
	DefaultSite     string                         `yaml:"default_site"`
	Sites           map[string]siteDoc             `yaml:"sites"`
	AssetContainers map[string]containerDoc        `yaml:"asset_containers"`
	Collections     map[string]collectionDoc       `yaml:"collections"`
	Validators      map[string]map[string][]string `yaml:"validators"`
}

type siteDoc struct {
	URL    string `yaml:"url"`
	Locale string `yaml:"locale"`
}

type containerDoc struct {
	Disk string `yaml:"disk"`
	Path string `yaml:"path"`
}

type collectionDoc struct {
	Dated       bool       `yaml:"dated"`
	Revisions   bool       `yaml:"revisions"`
	Structured  bool       `yaml:"structured"`
	TitleFormat string     `yaml:"title_format"`
	Route       string     `yaml:"route"`
	Sites       []string   `yaml:"sites"`
	Fields      []fieldDoc `yaml:"fields"`
}

// Load reads and parses the content model file at path.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("blueprints: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML content model. A model without sites gets a single
// "default" site rooted at "/".
func Parse(data []byte) (*Model, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("blueprints: %w: %v", common.ErrConfiguration, err)
	}

	m := &Model{
		sites:       make(map[string]models.Site, len(doc.Sites)),
		containers:  make(map[string]models.AssetContainer, len(doc.AssetContainers)),
		collections: make(map[string]*models.Collection, len(doc.Collections)),
		validators:  doc.Validators,
	}

	for handle, s := range doc.Sites {
		m.sites[handle] = models.Site{Handle: handle, URL: s.URL, Locale: s.Locale}
	}
	if len(m.sites) == 0 {
		m.sites["default"] = models.Site{Handle: "default", URL: "/", Locale: "en"}
	}

	m.defaultSite = strings.TrimSpace(doc.DefaultSite)
	if m.defaultSite == "" {
		if _, ok := m.sites["default"]; ok {
			m.defaultSite = "default"
		} else {
			m.defaultSite = m.siteHandles()[0]
		}
	}
	if _, ok := m.sites[m.defaultSite]; !ok {
		return nil, fmt.Errorf("blueprints: %w: default site %q is not declared", common.ErrConfiguration, m.defaultSite)
	}

	for handle, c := range doc.AssetContainers {
		disk := c.Disk
		if disk == "" {
			disk = "local"
		}
		m.containers[handle] = models.AssetContainer{
			Handle: handle,
			Disk:   disk,
			Path:   strings.Trim(c.Path, "/"),
		}
	}

	for handle, c := range doc.Collections {
		for _, site := range c.Sites {
			if _, ok := m.sites[site]; !ok {
				return nil, fmt.Errorf("blueprints: %w: collection %q references unknown site %q", common.ErrConfiguration, handle, site)
			}
		}
		fields := make([]models.Field, 0, len(c.Fields))
		for _, f := range c.Fields {
			fields = append(fields, models.Field(f))
		}
		m.collections[handle] = &models.Collection{
			Handle:      handle,
			Dated:       c.Dated,
			Revisions:   c.Revisions,
			Structured:  c.Structured,
			TitleFormat: c.TitleFormat,
			Route:       c.Route,
			Sites:       c.Sites,
			Fields:      fields,
		}
	}

	return m, nil
}

// Collection returns the collection declared under handle.
func (m *Model) Collection(handle string) (*models.Collection, bool) {
	c, ok := m.collections[handle]
	return c, ok
}

// Field looks up a top-level field of a collection's blueprint.
func (m *Model) Field(collection, handle string) (models.Field, bool) {
	c, ok := m.collections[collection]
	if !ok {
		return models.Field{}, false
	}
	return c.Field(handle)
}

// Container returns the asset container declared under handle.
func (m *Model) Container(handle string) (models.AssetContainer, bool) {
	c, ok := m.containers[handle]
	return c, ok
}

// Sites returns every declared site ordered by handle.
func (m *Model) Sites() []models.Site {
	out := make([]models.Site, 0, len(m.sites))
	for _, h := range m.siteHandles() {
		out = append(out, m.sites[h])
	}
	return out
}

// DefaultSite is the handle used when a request names no site.
func (m *Model) DefaultSite() string { return m.defaultSite }

// Validators returns the named rule sets: name => field => rules.
func (m *Model) Validators() map[string]map[string][]string { return m.validators }

func (m *Model) siteHandles() []string {
	out := make([]string, 0, len(m.sites))
	for h := range m.sites {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}
