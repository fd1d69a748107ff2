// Package registrytest runs an in-process wapm registry for tests.
//
// The server answers the getPackage GraphQL query and serves gzip-compressed
// tar archives for every published release, so the registry client and the
// installer can be exercised without network access.
package registrytest

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wasmerio/wapm-cli-sub000/pkg/packagekey"
)

// Server is a fake registry.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	releases map[string]map[string][]byte // name → version → archive
	failures map[string]int               // name → remaining 500s

	queries   atomic.Int64
	downloads atomic.Int64
	lastAuth  atomic.Value
}

// NewServer starts a fake registry. Call Close when done.
func NewServer() *Server {
	s := &Server{
		releases: make(map[string]map[string][]byte),
		failures: make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/graphql", s.handleGraphQL)
	r.Get("/archives/{namespace}/{name}/{version}", s.handleArchive)
	s.Server = httptest.NewServer(r)
	return s
}

// GraphQLURL returns the endpoint to configure the registry client with.
func (s *Server) GraphQLURL() string { return s.URL + "/graphql" }

// Publish adds a release whose archive holds files.
func (s *Server) Publish(name, version string, files map[string]string) {
	archive, err := BuildArchive(files)
	if err != nil {
		panic(err)
	}
	s.PublishArchive(name, version, archive)
}

// PublishArchive adds a release served as the given raw bytes.
func (s *Server) PublishArchive(name, version string, archive []byte) {
	name = packagekey.NormalizeName(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.releases[name] == nil {
		s.releases[name] = make(map[string][]byte)
	}
	s.releases[name][version] = archive
}

// FailNext makes the next n queries for name answer 500.
func (s *Server) FailNext(name string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[packagekey.NormalizeName(name)] = n
}

// ArchiveURL returns the download URL of a release.
func (s *Server) ArchiveURL(name, version string) string {
	ns, pkg := packagekey.SplitName(packagekey.NormalizeName(name))
	return fmt.Sprintf("%s/archives/%s/%s/%s", s.URL, url.PathEscape(ns), url.PathEscape(pkg), url.PathEscape(version))
}

// Queries returns the number of GraphQL requests served.
func (s *Server) Queries() int { return int(s.queries.Load()) }

// Downloads returns the number of archive requests served.
func (s *Server) Downloads() int { return int(s.downloads.Load()) }

// LastAuthorization returns the Authorization header of the latest query.
func (s *Server) LastAuthorization() string {
	v, _ := s.lastAuth.Load().(string)
	return v
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlVersion struct {
	Version      string `json:"version"`
	Distribution struct {
		DownloadURL string `json:"downloadUrl"`
	} `json:"distribution"`
}

type gqlPackage struct {
	Name     string       `json:"name"`
	Versions []gqlVersion `json:"versions"`
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	s.queries.Add(1)
	s.lastAuth.Store(r.Header.Get("Authorization"))

	var req gqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, map[string]any{"errors": []map[string]string{{"message": err.Error()}}})
		return
	}
	raw, _ := req.Variables["name"].(string)
	name := packagekey.NormalizeName(raw)

	s.mu.Lock()
	if s.failures[name] > 0 {
		s.failures[name]--
		s.mu.Unlock()
		http.Error(w, "registry overloaded", http.StatusInternalServerError)
		return
	}
	versions := make([]string, 0, len(s.releases[name]))
	for v := range s.releases[name] {
		versions = append(versions, v)
	}
	s.mu.Unlock()

	if len(versions) == 0 {
		writeJSON(w, map[string]any{"data": map[string]any{"getPackage": nil}})
		return
	}
	sort.Strings(versions)

	// Echo the name as the client sent it; bare names stay bare.
	pkg := gqlPackage{Name: raw}
	for _, v := range versions {
		gv := gqlVersion{Version: v}
		gv.Distribution.DownloadURL = s.ArchiveURL(name, v)
		pkg.Versions = append(pkg.Versions, gv)
	}
	writeJSON(w, map[string]any{"data": map[string]any{"getPackage": pkg}})
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	s.downloads.Add(1)
	name := chi.URLParam(r, "namespace") + "/" + chi.URLParam(r, "name")
	version := chi.URLParam(r, "version")

	s.mu.Lock()
	archive, ok := s.releases[name][version]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/gzip")
	_, _ = w.Write(archive)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// BuildArchive returns a gzip-compressed tar holding files, written in name
// order. Directories are created implicitly by their files' paths.
func BuildArchive(files map[string]string) ([]byte, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, name := range names {
		content := files[name]
		hdr := &tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PackageFiles returns archive contents for a package with one wasi module
// and one command, both named after the package.
func PackageFiles(name, version string) map[string]string {
	_, short := packagekey.SplitName(name)
	manifest := fmt.Sprintf(`[package]
name = %q
version = %q

[[module]]
name = %q
source = "%s.wasm"
abi = "wasi"

[[command]]
name = %q
module = %q
`, packagekey.NormalizeName(name), version, short, short, short, short)
	return map[string]string{
		"wapm.toml":     manifest,
		short + ".wasm": "\x00asm\x01\x00\x00\x00" + version,
	}
}
