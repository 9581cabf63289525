package guestentries

import (
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	svgPolicyOnce sync.Once
	svgPolicy     *bluemonday.Policy

	// The HTML tokenizer lower-cases names; SVG is case sensitive.
	svgCaseFixer = strings.NewReplacer(
		"<clippath", "<clipPath", "</clippath>", "</clipPath>",
		"<lineargradient", "<linearGradient", "</lineargradient>", "</linearGradient>",
		"<radialgradient", "<radialGradient", "</radialgradient>", "</radialGradient>",
		" viewbox=", " viewBox=",
		" preserveaspectratio=", " preserveAspectRatio=",
		" clippathunits=", " clipPathUnits=",
		" gradientunits=", " gradientUnits=",
		" gradienttransform=", " gradientTransform=",
		" patternunits=", " patternUnits=",
		" maskunits=", " maskUnits=",
		" textlength=", " textLength=",
	)

	svgFragmentRef = regexp.MustCompile(`^#[A-Za-z][\w.-]*$`)
)

func svgSanitizer() *bluemonday.Policy {
	svgPolicyOnce.Do(func() {
		policy := bluemonday.StrictPolicy()
		policy.AllowElements(
			"svg", "g", "path", "circle", "rect", "line", "polyline", "polygon",
			"ellipse", "title", "desc", "defs", "use", "symbol", "clipPath", "mask",
			"linearGradient", "radialGradient", "stop", "text", "tspan", "pattern",
		)

		policy.AllowNoAttrs().OnElements("svg", "g", "defs", "title", "desc", "text", "tspan", "symbol")

		policy.AllowAttrs(
			"xmlns", "version", "viewBox", "width", "height", "preserveAspectRatio",
		).OnElements("svg", "symbol", "pattern")

		policy.AllowAttrs(
			"id", "class", "fill", "fill-opacity", "fill-rule", "stroke", "stroke-width",
			"stroke-linecap", "stroke-linejoin", "stroke-dasharray", "stroke-opacity",
			"opacity", "transform", "clip-path", "clip-rule", "mask",
			"aria-hidden", "role", "focusable",
		).Globally()

		policy.AllowAttrs(
			"d", "cx", "cy", "r", "x", "y", "x1", "y1", "x2", "y2", "dx", "dy",
			"points", "rx", "ry", "width", "height", "pathLength", "textLength",
		).OnElements("path", "circle", "rect", "line", "polyline", "polygon", "ellipse", "text", "tspan", "use", "mask")

		policy.AllowAttrs("offset", "stop-color", "stop-opacity").OnElements("stop")
		policy.AllowAttrs(
			"gradientUnits", "gradientTransform", "fx", "fy", "spreadMethod",
			"x1", "y1", "x2", "y2", "cx", "cy", "r",
		).OnElements("linearGradient", "radialGradient")
		policy.AllowAttrs("clipPathUnits").OnElements("clipPath")
		policy.AllowAttrs("maskUnits").OnElements("mask")
		policy.AllowAttrs("patternUnits").OnElements("pattern")
		policy.AllowAttrs("font-family", "font-size", "font-weight", "text-anchor").OnElements("text", "tspan")

		// Only in-document references; no javascript: or remote targets.
		policy.AllowAttrs("href", "xlink:href").Matching(svgFragmentRef).OnElements("use")

		svgPolicy = policy
	})
	return svgPolicy
}

// SanitizeSVG strips scripts, event handlers, foreign content and external
// references from an SVG document.
func SanitizeSVG(data []byte) []byte {
	cleaned := svgSanitizer().SanitizeBytes(data)
	return []byte(strings.TrimSpace(svgCaseFixer.Replace(string(cleaned))))
}
