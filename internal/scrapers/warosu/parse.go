package warosu

import (
	"bytes"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"forarchives/internal/archive"
	"forarchives/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const postSelector = ".reply, .post-wrapper, .op"

var (
	postNumRegex    = regexp.MustCompile(`No\.\s*(\d+)`)
	threadHrefRegex = regexp.MustCompile(`/thread/(\d+)`)
)

// parsePosts extracts every post block of a search or thread page. Blocks
// without a post number are skipped. skipped counts them.
func parsePosts(body []byte, base *url.URL, board string) (posts []archive.Post, skipped int, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		return nil, 0, err
	}

	seen := map[int64]struct{}{}
	doc.Find(postSelector).Each(func(_ int, block *goquery.Selection) {
		post, ok := parseBlock(block, base, board)
		if !ok {
			skipped++
			return
		}
		if _, dup := seen[post.Num]; dup {
			return
		}
		seen[post.Num] = struct{}{}
		posts = append(posts, post)
	})
	return posts, skipped, nil
}

func postNum(block *goquery.Selection) (int64, bool) {
	candidates := block.Find("a.js")
	if candidates.Length() == 0 {
		candidates = block.Find("a")
	}
	var (
		num int64
		ok  bool
	)
	candidates.EachWithBreak(func(_ int, a *goquery.Selection) bool {
		groups := postNumRegex.FindStringSubmatch(a.Text())
		if len(groups) < 2 {
			return true
		}
		n, err := strconv.ParseInt(groups[1], 10, 64)
		if err != nil {
			return true
		}
		num, ok = n, true
		return false
	})
	return num, ok
}

func timestamp(block *goquery.Selection) int64 {
	for _, selector := range []string{".posttime", "time"} {
		title, exists := block.Find(selector).First().Attr("title")
		if !exists {
			continue
		}
		title = strings.TrimSpace(title)
		if n, err := strconv.ParseInt(title, 10, 64); err == nil {
			return n
		}
		// some pages render milliseconds
		if f, err := strconv.ParseFloat(title, 64); err == nil {
			return int64(f)
		}
	}
	return 0
}

func resolve(base *url.URL, ref string) string {
	if ref == "" || base == nil {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}

func media(block *goquery.Selection, base *url.URL) *archive.Media {
	var found *archive.Media
	block.Find(".thumb").EachWithBreak(func(_ int, thumb *goquery.Selection) bool {
		parent := thumb.Parent()
		if goquery.NodeName(parent) != "a" {
			return true
		}
		href, _ := parent.Attr("href")
		src, _ := thumb.Attr("src")
		alt, _ := thumb.Attr("alt")
		found = &archive.Media{
			Link:      resolve(base, href),
			ThumbLink: resolve(base, src),
			Filename:  alt,
		}
		return false
	})
	return found
}

func threadNum(block *goquery.Selection, fallback int64) int64 {
	num := fallback
	block.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		groups := threadHrefRegex.FindStringSubmatch(href)
		if len(groups) < 2 {
			return true
		}
		n, err := strconv.ParseInt(groups[1], 10, 64)
		if err != nil {
			return true
		}
		num = n
		return false
	})
	return num
}

func parseBlock(block *goquery.Selection, base *url.URL, board string) (archive.Post, bool) {
	num, ok := postNum(block)
	if !ok {
		return archive.Post{}, false
	}

	post := archive.Post{
		Num:       num,
		ThreadNum: threadNum(block, num),
		Timestamp: timestamp(block),
		Comment:   htmlutil.CleanText(htmlutil.SelectionText(block.Find("blockquote").First())),
		Title:     htmlutil.CleanText(block.Find(".filetitle").First().Text()),
		Name:      htmlutil.CleanText(block.Find(".postername").First().Text()),
		Media:     media(block, base),
	}
	post.OP = post.ThreadNum == post.Num
	if board != "" {
		post.Board = &archive.Board{ShortName: board, Name: board}
	}
	return post, true
}
