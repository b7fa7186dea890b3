package chomikuj

import (
	"io"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/net/html"
)

// File is one row of search results.
type File struct {
	ID       int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Name     string `json:"name" yaml:"name"`
	Link     string `json:"link" yaml:"link"`
	Path     string `json:"path" yaml:"path"`
	Owner    string `json:"owner" yaml:"owner"`
	Size     int64  `json:"size" yaml:"size"`
	SizeText string `json:"size_text,omitempty" yaml:"size_text,omitempty"`
	Date     string `json:"date,omitempty" yaml:"date,omitempty"`
}

// file links end in ",<id>.<ext>" or ",<id>"
var fileIDPattern = regexp.MustCompile(`,(\d+)(?:\.[^/,]*)?$`)

// ParseFiles reads the search results page into its file rows.
//
// A page without any rows gives an empty slice. A row that lacks its name
// or link fails the whole page. Links are resolved against baseURL.
func ParseFiles(in io.Reader, baseURL string) ([]File, error) {
	doc, err := html.Parse(in)
	if err != nil {
		return nil, &Error{Kind: KindWeirdResponse, Err: err}
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, &Error{Kind: KindWeirdResponse, Err: err}
	}

	rows := findAll(doc, func(n *html.Node) bool {
		return hasClass(n, "fileItemContainer")
	})
	files := make([]File, 0, len(rows))
	for _, row := range rows {
		file, ok := fileFromRow(row, base)
		if !ok {
			return nil, newError(KindWeirdResponse)
		}
		files = append(files, file)
	}
	return files, nil
}

func fileFromRow(row *html.Node, base *url.URL) (File, bool) {
	var file File

	a := findFirst(row, func(n *html.Node) bool {
		return n.Data == "a" && (hasClass(n, "downloadAction") || hasClass(n, "expanderHeader"))
	})
	if a == nil {
		if h3 := findFirst(row, isElement("h3")); h3 != nil {
			a = findFirst(h3, isElement("a"))
		}
	}
	if a == nil {
		return file, false
	}

	href, _ := attr(a, "href")
	href = strings.TrimSpace(href)
	if href == "" {
		return file, false
	}
	link, err := base.Parse(href)
	if err != nil {
		return file, false
	}
	file.Link = link.String()
	file.Path = link.Path

	file.Name = text(a)
	if title, ok := attr(a, "title"); ok && strings.TrimSpace(title) != "" && file.Name == "" {
		file.Name = strings.TrimSpace(title)
	}
	if file.Name == "" {
		return file, false
	}

	if rel, ok := attr(row, "rel"); ok {
		file.ID, _ = strconv.ParseInt(rel, 10, 64)
	}
	if file.ID == 0 {
		if m := fileIDPattern.FindStringSubmatch(path.Base(file.Path)); m != nil {
			file.ID, _ = strconv.ParseInt(m[1], 10, 64)
		}
	}

	if segments := strings.Split(strings.Trim(file.Path, "/"), "/"); len(segments) > 1 {
		file.Owner = segments[0]
	}

	if ul := findFirst(row, isElement("ul")); ul != nil {
		if li := findFirst(ul, isElement("li")); li != nil {
			file.SizeText = text(li)
			file.Size = parseSize(file.SizeText)
		}
	}
	if date := findFirst(row, func(n *html.Node) bool { return hasClass(n, "date") }); date != nil {
		file.Date = text(date)
	}
	return file, true
}

// parseSize turns labels like "12,5 MB" into bytes, or 0 if it can't.
func parseSize(label string) int64 {
	label = strings.Replace(strings.TrimSpace(label), ",", ".", 1)
	if label == "" {
		return 0
	}
	n, err := humanize.ParseBytes(label)
	if err != nil {
		return 0
	}
	return int64(n)
}
