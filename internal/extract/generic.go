package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// genericStrategy applies a broad selector set with lazy-load attribute
// fallbacks and heuristic exclusion of decorative UI assets. It matches every
// host and anchors the strategy table.
var genericStrategy = Strategy{
	Name:  "generic",
	Match: func(_ *url.URL) bool { return true },
	ImageSelectors: []string{
		"img",
		"picture img",
		"picture source[srcset]",
		".image img",
		".thumb img",
		".gallery img",
		".infobox-image img",
		"figure img",
		"a.image img",
		"[data-src]",
	},
	SourceOf:     genericImageSource,
	Rewrite:      stripTrackingQuery,
	SkipElement:  skipDecorative,
	SkipResolved: skipNonContentAsset,
}

// lazyAttrs is the attribute preference order for lazily loaded images.
var lazyAttrs = []string{"src", "data-src", "data-lazy-src", "data-original"}

func genericImageSource(sel *goquery.Selection) string {
	for _, attr := range lazyAttrs {
		if v, ok := sel.Attr(attr); ok && v != "" {
			return v
		}
	}
	if v, ok := sel.Attr("data-srcset"); ok && v != "" {
		return firstSrcsetCandidate(v)
	}
	if v, ok := sel.Attr("srcset"); ok && v != "" {
		return firstSrcsetCandidate(v)
	}
	if v, ok := sel.Closest("picture").Find("source").Attr("srcset"); ok && v != "" {
		return firstSrcsetCandidate(v)
	}
	return ""
}

func firstSrcsetCandidate(srcset string) string {
	fields := strings.Fields(srcset)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimSuffix(fields[0], ",")
}

// skipDecorative drops assets whose class/id/alt text signals UI chrome
// (icons, logos, avatars) rather than page content.
func skipDecorative(sel *goquery.Selection) bool {
	class, _ := sel.Attr("class")
	id, _ := sel.Attr("id")
	alt, _ := sel.Attr("alt")
	if strings.Contains(class, "icon") && !strings.Contains(class, "content") {
		return true
	}
	if strings.Contains(class, "logo") || strings.Contains(class, "avatar") {
		return true
	}
	if strings.Contains(id, "logo") || strings.Contains(alt, "logo") {
		return true
	}
	if tooSmall(sel) {
		return true
	}
	return false
}

// tooSmall gates on declared dimensions; images without dimensions pass
// because their size cannot be known without fetching them.
func tooSmall(sel *goquery.Selection) bool {
	width := attrInt(sel, "width")
	if width == 0 {
		width = attrInt(sel, "data-width")
	}
	height := attrInt(sel, "height")
	if height == 0 {
		height = attrInt(sel, "data-height")
	}
	if width == 0 || height == 0 {
		return false
	}
	return width <= minContentDimension && height <= minContentDimension
}

// semanticQueryMarkers lists query fragments that carry the actual image
// reference and therefore must survive query stripping.
var semanticQueryMarkers = []string{"imgurl=", "image_url="}

// stripTrackingQuery removes query strings that typically select a degraded
// variant, unless the query itself encodes the image location.
func stripTrackingQuery(src string, _ *url.URL) string {
	for _, marker := range semanticQueryMarkers {
		if strings.Contains(src, marker) {
			return src
		}
	}
	if i := strings.IndexByte(src, '?'); i >= 0 {
		return src[:i]
	}
	return src
}

func skipNonContentAsset(abs string) bool {
	return strings.HasPrefix(abs, "data:") || strings.HasSuffix(abs, ".svg")
}
