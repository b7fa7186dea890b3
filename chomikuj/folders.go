package chomikuj

import (
	"bytes"
	"encoding/json"
	"io"
	"io/ioutil"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Folder is a folder of some user's account.
//
// Folders is only filled by the caller, e.g. by listing each child in turn.
type Folder struct {
	ID      int64     `json:"id" yaml:"id"`
	Name    string    `json:"name" yaml:"name"`
	Path    string    `json:"path" yaml:"path"`
	Folders []*Folder `json:"folders" yaml:"folders"`
}

// NewFolder makes a Folder with no children.
func NewFolder(id int64, name, path string) *Folder {
	return &Folder{
		ID:      id,
		Name:    name,
		Path:    path,
		Folders: []*Folder{},
	}
}

// AddFolder appends child to the children of f.
func (f *Folder) AddFolder(child *Folder) *Folder {
	f.Folders = append(f.Folders, child)
	return f
}

// folderEnvelope is the JSON wrapper the tree endpoint sometimes puts
// around the HTML.
type folderEnvelope struct {
	Html string `json:"Html"`
	Data struct {
		Html string `json:"Html"`
	} `json:"Data"`
}

// ParseFolders reads a folder tree fragment into its folders.
//
// The fragment is a nested list where every folder is an anchor inside an
// <li>, carrying the folder id in rel (or in an id of the form Ta_<id>).
// Only the outermost items are returned; deeper ones hang off their
// parent's Folders. The fragment may arrive bare or wrapped in a JSON
// object under Html or Data.Html.
func ParseFolders(in io.Reader) ([]*Folder, error) {
	body, err := ioutil.ReadAll(in)
	if err != nil {
		return nil, &Error{Kind: KindWeirdResponse, Err: err}
	}
	fragment := unwrapFolderHTML(body)
	if len(bytes.TrimSpace(fragment)) == 0 {
		return nil, newError(KindWeirdResponse)
	}

	doc, err := html.Parse(bytes.NewReader(fragment))
	if err != nil {
		return nil, &Error{Kind: KindWeirdResponse, Err: err}
	}

	var folders []*Folder
	collectFolders(doc, nil, &folders, make(map[int64]struct{}))
	if len(folders) == 0 {
		return nil, newError(KindWeirdResponse)
	}
	return folders, nil
}

// collectFolders turns every <li> below n into a folder. Items of a nested
// list become children of the item around them, the rest land in top.
func collectFolders(n *html.Node, parent *Folder, top *[]*Folder, seen map[int64]struct{}) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "li" {
			collectFolders(c, parent, top, seen)
			continue
		}

		owner := parent
		if folder, ok := itemFolder(c); ok {
			if _, dup := seen[folder.ID]; !dup {
				seen[folder.ID] = struct{}{}
				if parent == nil {
					*top = append(*top, folder)
				} else {
					parent.AddFolder(folder)
				}
				owner = folder
			}
		}
		collectFolders(c, owner, top, seen)
	}
}

// itemFolder reads the folder out of the first anchor of li.
func itemFolder(li *html.Node) (*Folder, bool) {
	a := findFirst(li, isElement("a"))
	if a == nil {
		return nil, false
	}
	return folderFromAnchor(a)
}

func unwrapFolderHTML(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return body
	}
	var env folderEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return body
	}
	if env.Data.Html != "" {
		return []byte(env.Data.Html)
	}
	return []byte(env.Html)
}

func folderFromAnchor(a *html.Node) (*Folder, bool) {
	id, ok := folderID(a)
	if !ok {
		return nil, false
	}
	name, _ := attr(a, "title")
	name = strings.TrimSpace(name)
	if name == "" {
		name = text(a)
	}
	if name == "" {
		return nil, false
	}
	path, _ := attr(a, "href")
	return NewFolder(id, name, path), true
}

func folderID(a *html.Node) (int64, bool) {
	if rel, ok := attr(a, "rel"); ok {
		if id, err := strconv.ParseInt(strings.TrimSpace(rel), 10, 64); err == nil {
			return id, true
		}
	}
	if idAttr, ok := attr(a, "id"); ok && strings.HasPrefix(idAttr, "Ta_") {
		if id, err := strconv.ParseInt(strings.TrimPrefix(idAttr, "Ta_"), 10, 64); err == nil {
			return id, true
		}
	}
	return 0, false
}
