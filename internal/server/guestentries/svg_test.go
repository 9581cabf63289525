package guestentries

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeSVG_RemovesExecutableContent(t *testing.T) {
	in := []byte(`<?xml version="1.0"?>
<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10" onload="alert(1)">
  <script type="text/javascript">alert('xss')</script>
  <foreignObject><iframe src="javascript:alert(2)"></iframe></foreignObject>
  <a href="javascript:alert(3)"><circle cx="5" cy="5" r="4" onclick="alert(4)"/></a>
  <use href="javascript:alert(5)"/>
  <use href="#dot"/>
  <clipPath id="c"><rect width="10" height="10"/></clipPath>
</svg>`)

	out := string(SanitizeSVG(in))

	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "alert")
	assert.NotContains(t, out, "onload")
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "foreignObject")
	assert.NotContains(t, out, "iframe")
	assert.NotContains(t, out, "javascript:")

	assert.Contains(t, out, `viewBox="0 0 10 10"`)
	assert.Contains(t, out, `<circle cx="5" cy="5" r="4"`)
	assert.Contains(t, out, `href="#dot"`)
	assert.Contains(t, out, `<clipPath id="c">`)
}

func TestSanitizeSVG_KeepsBenignMarkup(t *testing.T) {
	in := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="4" height="4"><path d="M0 0h4v4H0z" fill="red"/></svg>`)

	out := string(SanitizeSVG(in))

	assert.Contains(t, out, `<svg xmlns="http://www.w3.org/2000/svg" width="4" height="4">`)
	assert.Contains(t, out, `d="M0 0h4v4H0z"`)
	assert.Contains(t, out, `fill="red"`)
}
