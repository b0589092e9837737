package extract

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// wikipediaStrategy targets content images in Wikipedia's markup. Selector
// list and rewrite rules are tuned for the MediaWiki DOM: thumbnails are
// stripped back to original-resolution assets and SVGs rendered as PNG are
// recovered as the source SVG.
var wikipediaStrategy = Strategy{
	Name: "wikipedia",
	Match: func(page *url.URL) bool {
		return strings.Contains(page.Hostname(), "wikipedia.org")
	},
	ImageSelectors: []string{
		"table.infobox img",
		"div.thumbinner img",
		"div.thumb img",
		".image img",
		".mw-file-element",
		"figure.mw-default-size img",
		"img.mw-headline-anchor",
		"a.image img",
		`img[src*="upload.wikimedia.org"]`,
		".wikitable img",
	},
	SourceOf: func(sel *goquery.Selection) string {
		if src, ok := sel.Attr("src"); ok && src != "" {
			return src
		}
		if src, ok := sel.Attr("data-src"); ok && src != "" {
			return src
		}
		if href, ok := sel.ParentFiltered("a").Attr("href"); ok {
			return href
		}
		return ""
	},
	Rewrite:     rewriteWikipediaURL,
	SkipElement: skipSmallOutsideInfobox,
	SkipResolved: func(abs string) bool {
		return strings.Contains(abs, "Special:") || strings.Contains(abs, "w/index.php")
	},
}

// minContentDimension is the pixel threshold below which images are treated
// as icons rather than content, unless they sit inside an infobox panel.
const minContentDimension = 100

// Missing or unparsable dimensions count as zero, so dimension-less images
// outside the infobox are skipped too.
func skipSmallOutsideInfobox(sel *goquery.Selection) bool {
	width := attrInt(sel, "width")
	height := attrInt(sel, "height")
	inInfobox := sel.Closest("table.infobox").Length() > 0
	return !inInfobox && width < minContentDimension && height < minContentDimension
}

func attrInt(sel *goquery.Selection, name string) int {
	v, ok := sel.Attr(name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}

func rewriteWikipediaURL(src string, _ *url.URL) string {
	if strings.HasPrefix(src, "//") {
		src = "https:" + src
	}
	if strings.HasPrefix(src, "/wiki/File:") {
		src = "https://en.wikipedia.org" + src
	}
	if strings.Contains(src, "/thumb/") {
		src = stripThumbPath(src)
	}
	src = strings.Replace(src, "http://", "https://", 1)
	src = recoverSVG(src)
	if strings.Contains(src, "commons.wikimedia.org") {
		src = strings.Replace(src, "/commons/", "/upload.wikimedia.org/wikipedia/commons/", 1)
	}
	return src
}

// stripThumbPath removes the /thumb/ segment and the trailing resolution
// component so the original-resolution asset is referenced:
//
//	.../thumb/a/ab/Foo.jpg/220px-Foo.jpg -> .../a/ab/Foo.jpg
func stripThumbPath(src string) string {
	parts := strings.Split(src, "/")
	if len(parts) <= 2 {
		return src
	}
	parts = parts[:len(parts)-1]
	for i, p := range parts {
		if p == "thumb" {
			parts = append(parts[:i], parts[i+1:]...)
			break
		}
	}
	return strings.Join(parts, "/")
}

// recoverSVG converts a rasterized SVG thumbnail reference (Foo.svg.png) back
// to the source SVG asset.
func recoverSVG(src string) string {
	if !strings.HasSuffix(src, ".svg.png") {
		return src
	}
	idx := strings.LastIndex(src, "/")
	if idx < 0 {
		return src
	}
	dir, file := src[:idx], src[idx+1:]
	return dir + "/" + strings.TrimSuffix(file, ".svg.png") + ".svg"
}
