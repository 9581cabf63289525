// Package sites resolves which site a submission belongs to.
package sites

import (
	"net/url"
	"strings"

	"github.com/duncanmcclean/guest-entries/internal/server/models"
)

// Registry holds the configured sites and the current-site fallback.
type Registry struct {
	sites   []models.Site
	current string
}

// NewRegistry builds a registry. current must name one of sites; when it
// does not, the first site is current.
func NewRegistry(sites []models.Site, current string) *Registry {
	r := &Registry{sites: append([]models.Site(nil), sites...), current: current}
	if _, ok := r.Get(current); !ok && len(r.sites) > 0 {
		r.current = r.sites[0].Handle
	}
	return r
}

// Get returns the site with the given handle.
func (r *Registry) Get(handle string) (models.Site, bool) {
	for _, s := range r.sites {
		if s.Handle == handle {
			return s, true
		}
	}
	return models.Site{}, false
}

// Current is the process-wide fallback site.
func (r *Registry) Current() models.Site {
	s, _ := r.Get(r.current)
	return s
}

// FindByURL returns the site whose URL is the longest prefix of rawURL.
// Absolute site URLs match scheme, host and path; relative ones match the
// path only.
func (r *Registry) FindByURL(rawURL string) (models.Site, bool) {
	if rawURL == "" {
		return models.Site{}, false
	}
	target, err := url.Parse(rawURL)
	if err != nil {
		return models.Site{}, false
	}

	var (
		best    models.Site
		bestLen = -1
	)
	for _, s := range r.sites {
		prefix, ok := matchPrefix(s.URL, target)
		if ok && len(prefix) > bestLen {
			best, bestLen = s, len(prefix)
		}
	}
	return best, bestLen >= 0
}

// Resolve picks the site for a submission: the explicit handle, then the
// request URL, then the referer, then the current site.
func (r *Registry) Resolve(explicit, requestURL, referer string) models.Site {
	if explicit != "" {
		if s, ok := r.Get(explicit); ok {
			return s
		}
	}
	if s, ok := r.FindByURL(requestURL); ok {
		return s
	}
	if s, ok := r.FindByURL(referer); ok {
		return s
	}
	return r.Current()
}

func matchPrefix(siteURL string, target *url.URL) (string, bool) {
	base, err := url.Parse(siteURL)
	if err != nil || siteURL == "" {
		return "", false
	}

	if base.Host != "" {
		if !strings.EqualFold(base.Host, target.Host) {
			return "", false
		}
		if base.Scheme != "" && target.Scheme != "" && !strings.EqualFold(base.Scheme, target.Scheme) {
			return "", false
		}
	}

	prefix := strings.TrimSuffix(base.Path, "/")
	path := target.Path
	if prefix == "" {
		return base.Host, true
	}
	if path == prefix || strings.HasPrefix(path, prefix+"/") {
		return base.Host + prefix, true
	}
	return "", false
}
