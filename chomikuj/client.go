// Package chomikuj talks to the site-internal endpoints of chomikuj.pl.
//
// The site has no public API. Every call here imitates what its own web
// pages do and reads whatever comes back, be it JSON or an HTML fragment.
//
// A Client is not safe for concurrent use.
package chomikuj

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jdollar/chomik/internal/files"
	"github.com/sirupsen/logrus"
)

// DefaultBaseURL is the origin every endpoint is resolved against.
const DefaultBaseURL = "https://chomikuj.pl"

type endpoint struct {
	name string
	path string
	mode Mode
}

var (
	endpointLogin        = endpoint{"login", "/action/Login/TopBarLogin", ModeJSONIsSuccess}
	endpointLogout       = endpoint{"logout", "/action/Login/LogOut", ModeStatus200}
	endpointCreateFolder = endpoint{"create_folder", "/action/FolderOptions/NewFolderAction", ModeJSONDataStatusZero}
	endpointRemoveFolder = endpoint{"remove_folder", "/action/FolderOptions/DeleteFolderAction", ModeJSONDataStatusZero}
	endpointUploadURL    = endpoint{"upload_file", "/action/Upload/GetUrl", ModeJSONURL}
	endpointMoveFile     = endpoint{"move_file", "/action/FileDetails/MoveFileAction", ModeJSONDataStatusOK}
	endpointCopyFile     = endpoint{"copy_file", "/action/FileDetails/CopyFileAction", ModeJSONDataStatusOK}
	endpointRenameFile   = endpoint{"rename_file", "/action/FileDetails/EditNameAndDescAction", ModeJSONDataStatusOK}
	endpointFolderTree   = endpoint{"get_folder_children", "/action/tree/GetFolderChildrenHtml", ModeStatus200}
	endpointSearch       = endpoint{"search", "/action/SearchFiles/Results", ModeStatus200}
)

const tokenField = "__RequestVerificationToken"

var tokenPattern = regexp.MustCompile(`__RequestVerificationToken(?:.*?)value="(.*?)"`)

// Client is a session with the site.
type Client struct {
	httpClient Doer
	ticks      TickSource
	baseURL    string
	username   string
	log        logrus.FieldLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets what sends the requests. It should keep cookies
// between requests and must not follow redirects.
func WithHTTPClient(client Doer) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTickSource replaces the default TickCache.
func WithTickSource(ticks TickSource) Option {
	return func(c *Client) {
		c.ticks = ticks
	}
}

// WithBaseURL points the client at another origin.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets where request logs go.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New makes a Client that is not logged in.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = NewHTTPClient(0)
	}
	if c.ticks == nil {
		c.ticks = NewTickCache(c.httpClient, c.baseURL)
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	return c
}

// Username returns who is logged in, or "" if nobody is.
func (c *Client) Username() string {
	return c.username
}

// Login logs in as username.
func (c *Client) Login(ctx context.Context, username, password string) error {
	_, err := c.call(ctx, endpointLogin, url.Values{
		"Login":    {username},
		"Password": {password},
	})
	if err != nil {
		return err
	}
	c.username = username
	c.log.WithField("username", username).Debug("logged in")
	return nil
}

// Logout ends the session. The username is kept if the site refuses.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.call(ctx, endpointLogout, nil); err != nil {
		return err
	}
	c.username = ""
	return nil
}

// CreateFolder creates a folder called name under parentID (0 for the
// root). A non-nil password protects the folder.
func (c *Client) CreateFolder(ctx context.Context, name string, parentID int64, adult bool, password *string) error {
	token, err := c.Token(ctx)
	if err != nil {
		return err
	}
	form := url.Values{
		tokenField:             {token},
		"ChomikName":           {c.username},
		"FolderName":           {name},
		"FolderId":             {formatID(parentID)},
		"AdultContent":         {strconv.FormatBool(adult)},
		"NewFolderSetPassword": {strconv.FormatBool(password != nil)},
	}
	// the site wants no Password field at all for open folders
	if password != nil {
		form.Set("Password", *password)
	}
	_, err = c.call(ctx, endpointCreateFolder, form)
	return err
}

// RemoveFolder deletes the folder folderID.
func (c *Client) RemoveFolder(ctx context.Context, folderID int64) error {
	token, err := c.Token(ctx)
	if err != nil {
		return err
	}
	_, err = c.call(ctx, endpointRemoveFolder, url.Values{
		tokenField:   {token},
		"ChomikName": {c.username},
		"FolderId":   {formatID(folderID)},
	})
	return err
}

// UploadURL asks for a one-time URL that accepts a file for folderID.
func (c *Client) UploadURL(ctx context.Context, folderID int64) (string, error) {
	body, err := c.call(ctx, endpointUploadURL, url.Values{
		"accountname": {c.username},
		"folderid":    {formatID(folderID)},
	})
	if err != nil {
		return "", err
	}
	var result struct {
		URL *string `json:"Url"`
	}
	if err := json.Unmarshal(body, &result); err != nil || result.URL == nil {
		return "", &Error{Kind: KindUploadURL, Err: err}
	}
	return *result.URL, nil
}

// UploadFile sends the local file at path into folderID.
//
// Missing, unreadable and empty files are refused before anything is
// sent.
func (c *Client) UploadFile(ctx context.Context, folderID int64, path string) error {
	upload, err := files.Inspect(path)
	switch err {
	case nil:
	case files.ErrEmpty:
		return newError(KindFileIsEmpty)
	default:
		return &Error{Kind: KindWrongFilePath, Err: err}
	}

	uploadURL, err := c.UploadURL(ctx, folderID)
	if err != nil {
		return err
	}

	in, err := os.Open(upload.Path)
	if err != nil {
		return &Error{Kind: KindWrongFilePath, Err: err}
	}
	defer in.Close()

	body, contentType := multipartFile(in, "files", upload.Name, upload.ContentType)
	defer body.Close()
	req, err := newRequest(ctx, http.MethodPost, uploadURL, body, true)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	c.log.WithFields(logrus.Fields{
		"file":   upload.Name,
		"size":   humanize.IBytes(uint64(upload.Size)),
		"folder": folderID,
	}).Debug("uploading")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer closeBody(resp)
	if !Classify(resp, ModeStatus200) {
		return &Error{Kind: KindRequestFailed, Status: resp.StatusCode}
	}
	return nil
}

// Folders lists the first level subfolders of folderID (0 for the root)
// in the account of username.
//
// Ticks go stale now and then, so a refused listing is tried once more
// with freshly fetched ticks.
func (c *Client) Folders(ctx context.Context, username string, folderID int64) ([]*Folder, error) {
	ticks, err := c.ticks.Ticks(ctx, username, false)
	if err != nil {
		return nil, err
	}
	resp, err := c.listFolders(ctx, username, folderID, ticks)
	if err != nil {
		return nil, err
	}

	if !Classify(resp, endpointFolderTree.mode) {
		closeBody(resp)
		c.log.WithFields(logrus.Fields{
			"username": username,
			"status":   resp.StatusCode,
		}).Warn("folder listing refused, refreshing ticks")

		ticks, err = c.ticks.Ticks(ctx, username, true)
		if err != nil {
			return nil, err
		}
		resp, err = c.listFolders(ctx, username, folderID, ticks)
		if err != nil {
			return nil, err
		}
	}
	defer closeBody(resp)

	if !Classify(resp, endpointFolderTree.mode) {
		return nil, &Error{Kind: KindRequestFailed, Status: resp.StatusCode}
	}
	return ParseFolders(resp.Body)
}

func (c *Client) listFolders(ctx context.Context, username string, folderID int64, ticks string) (*http.Response, error) {
	req, err := newFormRequest(ctx, c.url(endpointFolderTree), url.Values{
		"chomikName": {username},
		"folderId":   {formatID(folderID)},
		"ticks":      {ticks},
	})
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// MoveFile moves fileID from sourceFolderID to destinationFolderID.
func (c *Client) MoveFile(ctx context.Context, fileID, sourceFolderID, destinationFolderID int64) error {
	_, err := c.call(ctx, endpointMoveFile, c.transferForm(fileID, sourceFolderID, destinationFolderID))
	return err
}

// CopyFile copies fileID from sourceFolderID to destinationFolderID.
func (c *Client) CopyFile(ctx context.Context, fileID, sourceFolderID, destinationFolderID int64) error {
	_, err := c.call(ctx, endpointCopyFile, c.transferForm(fileID, sourceFolderID, destinationFolderID))
	return err
}

func (c *Client) transferForm(fileID, sourceFolderID, destinationFolderID int64) url.Values {
	return url.Values{
		"ChomikName": {c.username},
		"FileId":     {formatID(fileID)},
		// the site refuses the call without the source folder
		"FolderId": {formatID(sourceFolderID)},
		"FolderTo": {formatID(destinationFolderID)},
	}
}

// RenameFile changes the name and description of fileID.
func (c *Client) RenameFile(ctx context.Context, fileID int64, name, description string) error {
	_, err := c.call(ctx, endpointRenameFile, url.Values{
		"FileId":      {formatID(fileID)},
		"Name":        {name},
		"Description": {description},
	})
	return err
}

// FindFiles searches the whole site for phrase and returns the given
// results page, starting from 1.
//
// optional is passed on as is (e.g. FileType, SizeFrom, SizeTo,
// Extension, ShowAdultContent, SearchOnAccount, TargetAccountName) but
// can't replace FileName, IsGallery or Page.
func (c *Client) FindFiles(ctx context.Context, phrase string, optional url.Values, page int) ([]File, error) {
	form := url.Values{}
	for key, values := range optional {
		form[key] = append([]string(nil), values...)
	}
	form.Set("FileName", phrase)
	form.Set("IsGallery", "0")
	form.Set("Page", strconv.Itoa(page))

	req, err := newFormRequest(ctx, c.url(endpointSearch), form)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)
	if !Classify(resp, endpointSearch.mode) {
		return nil, &Error{Kind: KindRequestFailed, Status: resp.StatusCode}
	}
	return ParseFiles(resp.Body, c.baseURL)
}

// Token scrapes the anti-forgery token off the profile page of the
// logged in user. Folder changes are refused without it.
func (c *Client) Token(ctx context.Context) (string, error) {
	req, err := newRequest(ctx, http.MethodGet, c.baseURL+"/"+c.username, nil, false)
	if err != nil {
		return "", err
	}
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: KindTokenNotFound, Err: err}
	}
	matches := tokenPattern.FindSubmatch(body)
	if len(matches) < 2 || len(matches[1]) == 0 {
		return "", newError(KindTokenNotFound)
	}
	return string(matches[1]), nil
}

// call posts form to ep and checks the response the way ep needs. The
// body is returned on success; the response is always closed.
func (c *Client) call(ctx context.Context, ep endpoint, form url.Values) ([]byte, error) {
	req, err := newFormRequest(ctx, c.url(ep), form)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	if !Classify(resp, ep.mode) {
		c.log.WithFields(logrus.Fields{
			"endpoint": ep.name,
			"mode":     ep.mode,
			"status":   resp.StatusCode,
		}).Debug("response rejected")
		return nil, &Error{Kind: KindRequestFailed, Status: resp.StatusCode}
	}
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindWeirdResponse, Err: err}
	}
	return body, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := send(c.httpClient, req)
	if err != nil {
		c.log.WithError(err).WithField("url", req.URL.String()).Debug("request failed")
		return nil, err
	}
	c.log.WithFields(logrus.Fields{
		"method": req.Method,
		"url":    req.URL.String(),
		"status": resp.StatusCode,
	}).Debug("request")
	return resp, nil
}

func (c *Client) url(ep endpoint) string {
	return c.baseURL + ep.path
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
