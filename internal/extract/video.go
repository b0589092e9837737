package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/scrapeworks/mediascraper/internal/media"
)

// videoSelectors covers native <video> elements, embeds from known video
// hosts, elements carrying a video data attribute, and direct watch-page
// links. Both extraction strategies share this set.
const videoSelectors = `video source, video[src], iframe[src*="youtube"], iframe[src*="vimeo"], ` +
	`iframe[src*="dailymotion"], iframe[data-src*="youtube"], [data-video-src], ` +
	`a[href*="youtube.com/watch"], a[href*="youtu.be/"]`

func (e *Engine) collectVideos(doc *goquery.Document, page *url.URL, emit func(string, media.Type)) {
	doc.Find(videoSelectors).Each(func(_ int, sel *goquery.Selection) {
		src := videoSource(sel)
		if src == "" {
			return
		}
		abs := media.ResolveURL(src, page)
		if abs == "" {
			return
		}
		emit(abs, media.TypeVideo)
	})
}

func videoSource(sel *goquery.Selection) string {
	switch goquery.NodeName(sel) {
	case "video":
		if src, ok := sel.Attr("src"); ok && src != "" {
			return src
		}
		if src, ok := sel.Find("source").First().Attr("src"); ok {
			return src
		}
		return ""
	case "iframe":
		if src, ok := sel.Attr("src"); ok && src != "" {
			return src
		}
		src, _ := sel.Attr("data-src")
		return src
	case "a":
		href, _ := sel.Attr("href")
		return youtubeEmbedURL(href)
	default:
		for _, attr := range []string{"src", "data-src", "data-video-src"} {
			if src, ok := sel.Attr(attr); ok && src != "" {
				return src
			}
		}
		return ""
	}
}

// youtubeEmbedURL rewrites a YouTube watch page link into the canonical embed
// form, extracting the video ID from either the query (watch?v=ID) or the
// path (youtu.be/ID). Links that carry no ID are dropped.
func youtubeEmbedURL(href string) string {
	switch {
	case strings.Contains(href, "youtube.com/watch"):
		u, err := url.Parse(href)
		if err != nil {
			return ""
		}
		id := u.Query().Get("v")
		if id == "" {
			return ""
		}
		return "https://www.youtube.com/embed/" + id
	case strings.Contains(href, "youtu.be/"):
		rest := href[strings.Index(href, "youtu.be/")+len("youtu.be/"):]
		id := rest
		if i := strings.IndexByte(id, '?'); i >= 0 {
			id = id[:i]
		}
		id = strings.Trim(id, "/")
		if id == "" {
			return ""
		}
		return "https://www.youtube.com/embed/" + id
	default:
		return ""
	}
}
