// Package notice fetches the campus announcement board. Listings feed both
// the scheduled change detector and the archived-notice search tool.
package notice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"saintagent/internal/logging"
)

const defaultBaseURL = "https://scatch.ssu.ac.kr"

// Post is one announcement row from the board listing.
type Post struct {
	Date       string
	Status     string
	Category   string
	Title      string
	URL        string
	Department string
	Views      string
}

// Client fetches announcement pages.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a notice client.
func NewClient() *Client {
	return NewClientWithBase(defaultBaseURL)
}

// NewClientWithBase creates a notice client against a non-default board
// host. Used by tests.
func NewClientWithBase(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
	}
}

// FetchPage returns one page of the announcement board, newest first as the
// board orders it.
func (c *Client) FetchPage(ctx context.Context, page int) ([]Post, error) {
	if page < 1 {
		page = 1
	}
	// The board path segment is Korean; escape it for the request line.
	u := fmt.Sprintf("%s/%s/page/%d", c.baseURL, url.PathEscape("공지사항"), page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build notice request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch notices: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch notices: unexpected status %d", resp.StatusCode)
	}

	posts, err := parseNoticeList(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse notice page: %w", err)
	}
	logging.Fetch("fetched notice page %d (%d posts)", page, len(posts))
	return posts, nil
}

// Latest returns the newest post in the given category, or nil if the page
// has none. An empty category matches any post.
func (c *Client) Latest(ctx context.Context, category string) (*Post, error) {
	posts, err := c.FetchPage(ctx, 1)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		if category == "" || posts[i].Category == category {
			return &posts[i], nil
		}
	}
	return nil, nil
}

// parseNoticeList extracts posts from a board listing. Each row is a li
// under ul.notice-lists, with columns in notice_col1..notice_col5 and the
// category rendered as a span.label inside the title column.
func parseNoticeList(r io.Reader) ([]Post, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	list := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "ul" && hasClass(n, "notice-lists")
	})
	if list == nil {
		return nil, nil
	}

	var posts []Post
	for li := list.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.Data != "li" || hasClass(li, "notice_head") {
			continue
		}

		p := Post{
			Date:       columnText(li, "notice_col1"),
			Status:     columnText(li, "notice_col2"),
			Department: columnText(li, "notice_col4"),
			Views:      columnText(li, "notice_col5"),
		}

		titleCol := findNode(li, func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "notice_col3")
		})
		if titleCol != nil {
			if label := findNode(titleCol, func(n *html.Node) bool {
				return n.Type == html.ElementNode && n.Data == "span" && hasClass(n, "label")
			}); label != nil {
				p.Category = collapseSpace(textOf(label))
			}
			if link := findNode(titleCol, func(n *html.Node) bool {
				return n.Type == html.ElementNode && n.Data == "a"
			}); link != nil {
				p.URL = attr(link, "href")
				title := collapseSpace(textOf(link))
				if p.Category != "" {
					title = collapseSpace(strings.Replace(title, p.Category, "", 1))
				}
				p.Title = title
			}
		}

		if p.Title != "" {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, match); found != nil {
			return found
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func columnText(li *html.Node, class string) string {
	col := findNode(li, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "div" && hasClass(n, class)
	})
	if col == nil {
		return ""
	}
	return collapseSpace(textOf(col))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
