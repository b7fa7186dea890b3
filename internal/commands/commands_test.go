package commands

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jdollar/chomik/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// fakeSite answers the endpoints the commands use and remembers what it
// was asked.
type fakeSite struct {
	mu        sync.Mutex
	calls     []string
	forms     map[string]map[string]string
	uploads   map[string][]byte
	loginOK   bool
	serverURL string
}

func newFakeSite(t *testing.T) *fakeSite {
	site := &fakeSite{
		forms:   make(map[string]map[string]string),
		uploads: make(map[string][]byte),
		loginOK: true,
	}
	ts := httptest.NewServer(http.HandlerFunc(site.serve))
	t.Cleanup(ts.Close)
	site.serverURL = ts.URL
	return site
}

func (s *fakeSite) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, r.Method+" "+r.URL.Path)

	if r.URL.Path == "/upload" {
		file, header, err := r.FormFile("files")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, _ := ioutil.ReadAll(file)
		s.uploads[header.Filename] = data
		return
	}

	if r.Method == http.MethodPost {
		_ = r.ParseForm()
		form := make(map[string]string)
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		s.forms[r.URL.Path] = form
	}

	switch r.URL.Path {
	case "/action/Login/TopBarLogin":
		if !s.loginOK {
			_, _ = w.Write([]byte(`{"IsSuccess":false}`))
			return
		}
		_, _ = w.Write([]byte(`{"IsSuccess":true}`))
	case "/action/Login/LogOut":
	case "/someone":
		_, _ = w.Write([]byte(`<html><input type="hidden" name="TreeTicks" value="42">` +
			`<input name="__RequestVerificationToken" type="hidden" value="tok" /></html>`))
	case "/action/tree/GetFolderChildrenHtml":
		_, _ = w.Write([]byte(`<ul><li><a href="/someone/Music" rel="12" title="Music">Music</a></li></ul>`))
	case "/action/SearchFiles/Results":
		_, _ = w.Write([]byte(`<div class="fileItemContainer"><h3><a href="/someone/song,7.mp3">song.mp3</a></h3>` +
			`<ul><li><span>2 MB</span></li></ul></div>`))
	case "/action/FolderOptions/NewFolderAction", "/action/FolderOptions/DeleteFolderAction":
		_, _ = w.Write([]byte(`{"Data":{"Status":0}}`))
	case "/action/FileDetails/MoveFileAction", "/action/FileDetails/CopyFileAction", "/action/FileDetails/EditNameAndDescAction":
		_, _ = w.Write([]byte(`{"Data":{"Status":"OK"}}`))
	case "/action/Upload/GetUrl":
		_, _ = w.Write([]byte(`{"Url":"` + s.serverURL + `/upload"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *fakeSite) conf() config.Configuration {
	return config.Configuration{
		BaseURL:  s.serverURL,
		Username: "someone",
		Password: "secret",
		Backup: config.BackupConfiguration{
			Limit: 2,
		},
	}
}

func run(conf config.Configuration, args ...string) (string, error) {
	var out bytes.Buffer
	app := &cli.App{
		Name:      "chomik",
		Writer:    &out,
		ErrWriter: ioutil.Discard,
		Commands:  All(conf),
	}
	err := app.Run(append([]string{"chomik"}, args...))
	return out.String(), err
}

func TestMain(m *testing.M) {
	logrus.SetOutput(ioutil.Discard)
	os.Exit(m.Run())
}

func TestList(t *testing.T) {
	site := newFakeSite(t)

	out, err := run(site.conf(), "ls", "5")

	require.NoError(t, err)
	assert.Contains(t, out, "12")
	assert.Contains(t, out, "Music")
	assert.Equal(t, []string{"GET /someone", "POST /action/tree/GetFolderChildrenHtml"}, site.calls)
	assert.Equal(t, "5", site.forms["/action/tree/GetFolderChildrenHtml"]["folderId"])
}

func TestListNeedsUser(t *testing.T) {
	site := newFakeSite(t)
	conf := site.conf()
	conf.Username = ""

	_, err := run(conf, "ls")
	assert.Error(t, err)
	assert.Empty(t, site.calls)
}

func TestSearch(t *testing.T) {
	site := newFakeSite(t)

	out, err := run(site.conf(), "search", "--page", "3", "--ext", "mp3", "--user", "other", "some", "song")

	require.NoError(t, err)
	assert.Contains(t, out, "song.mp3")
	assert.Contains(t, out, "2.0 MB")
	form := site.forms["/action/SearchFiles/Results"]
	assert.Equal(t, "some song", form["FileName"])
	assert.Equal(t, "3", form["Page"])
	assert.Equal(t, "mp3", form["Extension"])
	assert.Equal(t, "other", form["TargetAccountName"])
	assert.Equal(t, "1", form["SearchOnAccount"])
}

func TestMkdir(t *testing.T) {
	site := newFakeSite(t)

	_, err := run(site.conf(), "mkdir", "--parent", "12", "--password", "pw", "New", "Folder")

	require.NoError(t, err)
	assert.Equal(t, []string{
		"POST /action/Login/TopBarLogin",
		"GET /someone",
		"POST /action/FolderOptions/NewFolderAction",
		"POST /action/Login/LogOut",
	}, site.calls)
	form := site.forms["/action/FolderOptions/NewFolderAction"]
	assert.Equal(t, "New Folder", form["FolderName"])
	assert.Equal(t, "12", form["FolderId"])
	assert.Equal(t, "tok", form["__RequestVerificationToken"])
	assert.Equal(t, "pw", form["Password"])
	assert.Equal(t, "true", form["NewFolderSetPassword"])
	assert.Equal(t, "false", form["AdultContent"])
}

func TestRmdir(t *testing.T) {
	site := newFakeSite(t)
	_, err := run(site.conf(), "rmdir", "99")
	require.NoError(t, err)
	assert.Equal(t, "99", site.forms["/action/FolderOptions/DeleteFolderAction"]["FolderId"])

	_, err = run(site.conf(), "rmdir", "nope")
	assert.Error(t, err)
}

func TestMoveCopyRename(t *testing.T) {
	site := newFakeSite(t)

	_, err := run(site.conf(), "mv", "1", "2", "3")
	require.NoError(t, err)
	_, err = run(site.conf(), "cp", "4", "5", "6")
	require.NoError(t, err)
	_, err = run(site.conf(), "rename", "-d", "about", "7", "new", "name.txt")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"ChomikName": "someone", "FileId": "1", "FolderId": "2", "FolderTo": "3"},
		site.forms["/action/FileDetails/MoveFileAction"])
	assert.Equal(t, map[string]string{"ChomikName": "someone", "FileId": "4", "FolderId": "5", "FolderTo": "6"},
		site.forms["/action/FileDetails/CopyFileAction"])
	assert.Equal(t, map[string]string{"FileId": "7", "Name": "new name.txt", "Description": "about"},
		site.forms["/action/FileDetails/EditNameAndDescAction"])

	_, err = run(site.conf(), "mv", "1", "2")
	assert.Error(t, err)
}

func TestUpload(t *testing.T) {
	site := newFakeSite(t)
	path := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, ioutil.WriteFile(path, []byte("hello"), 0644))

	_, err := run(site.conf(), "upload", "-f", "8", path)

	require.NoError(t, err)
	assert.Equal(t, "hello", string(site.uploads["hello.txt"]))
	assert.Equal(t, "8", site.forms["/action/Upload/GetUrl"]["folderid"])
	assert.Equal(t, "POST /action/Login/LogOut", site.calls[len(site.calls)-1])
}

func TestUploadEmptyFileStillLogsOut(t *testing.T) {
	site := newFakeSite(t)
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, ioutil.WriteFile(path, nil, 0644))

	_, err := run(site.conf(), "upload", path)

	assert.Error(t, err)
	assert.Equal(t, []string{"POST /action/Login/TopBarLogin", "POST /action/Login/LogOut"}, site.calls)
}

func TestSessionNeedsCredentials(t *testing.T) {
	site := newFakeSite(t)
	conf := site.conf()
	conf.Password = ""

	_, err := run(conf, "rmdir", "1")

	assert.EqualError(t, err, "Missing password")
	assert.Empty(t, site.calls)
}

func TestLoginRefused(t *testing.T) {
	site := newFakeSite(t)
	site.loginOK = false

	_, err := run(site.conf(), "rmdir", "1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging in as someone")
	assert.Equal(t, []string{"POST /action/Login/TopBarLogin"}, site.calls)
}

func TestBackup(t *testing.T) {
	site := newFakeSite(t)
	src := t.TempDir()
	out := t.TempDir()
	require.NoError(t, ioutil.WriteFile(filepath.Join(src, "world.dat"), []byte("blocks"), 0644))
	for _, old := range []string{"0001.tar.gz", "0002.tar.gz"} {
		require.NoError(t, ioutil.WriteFile(filepath.Join(out, old), []byte("old"), 0644))
	}

	_, err := run(site.conf(), "backup", "-o", out, "-f", "3", filepath.Join(src, "*.dat"))

	require.NoError(t, err)
	assert.Equal(t, "3", site.forms["/action/Upload/GetUrl"]["folderid"])

	// the limit of 2 keeps the newest old archive and the new one
	left, err := filepath.Glob(filepath.Join(out, "*.tar.gz"))
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, filepath.Join(out, "0002.tar.gz"), left[0])

	uploaded := site.uploads[filepath.Base(left[1])]
	require.NotEmpty(t, uploaded)
	gr, err := gzip.NewReader(bytes.NewReader(uploaded))
	require.NoError(t, err)
	header, err := tar.NewReader(gr).Next()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(header.Name, "world.dat"))
}

func TestBackupNeedsOutputDirectory(t *testing.T) {
	site := newFakeSite(t)
	_, err := run(site.conf(), "backup", "whatever")
	assert.EqualError(t, err, "Missing backup output_directory")
}
