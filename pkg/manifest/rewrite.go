package manifest

import (
	"bytes"
	"maps"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wasmerio/wapm-cli-sub000/pkg/errors"
	"github.com/wasmerio/wapm-cli-sub000/pkg/packagekey"
)

var (
	dependenciesHeader = regexp.MustCompile(`^\s*\[\s*dependencies\s*\]\s*(#.*)?$`)
	bareKey            = regexp.MustCompile(`^[A-Za-z0-9_-]+`)
)

// UpdateDependencies rewrites the [dependencies] table of the manifest in
// data. Entries in set are written as name = version, replacing any entry
// whose name normalizes to the same package; names in remove are deleted.
//
// Only the lines of the [dependencies] table are edited, so comments and
// ordering elsewhere survive. A replaced entry takes the place of the old
// one; new entries go after the last entry of the table, which is appended
// to the file if missing. Manifests whose dependencies cannot be edited line
// by line (inline or dotted tables) are re-encoded as a whole instead.
func UpdateDependencies(data []byte, set map[string]string, remove []string) ([]byte, error) {
	doc := map[string]any{}
	if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "decode %s", FileName)
	}
	current, _ := doc["dependencies"].(map[string]any)
	want := applyDependencyChanges(maps.Clone(current), set, remove)

	if out, ok := editDependencies(data, set, remove, current != nil); ok && sameDocument(out, doc, want) {
		return out, nil
	}

	doc = maps.Clone(doc)
	doc["dependencies"] = want
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode %s", FileName)
	}
	return buf.Bytes(), nil
}

// applyDependencyChanges returns deps with remove and set applied.
func applyDependencyChanges(deps map[string]any, set map[string]string, remove []string) map[string]any {
	if deps == nil {
		deps = map[string]any{}
	}
	drop := func(normalized string) {
		for name := range maps.Clone(deps) {
			if packagekey.NormalizeName(name) == normalized {
				delete(deps, name)
			}
		}
	}
	for _, name := range remove {
		drop(packagekey.NormalizeName(name))
	}
	for name, version := range set {
		drop(packagekey.NormalizeName(name))
		deps[displayName(name)] = version
	}
	return deps
}

// editDependencies applies the changes to the text of the [dependencies]
// table. It reports false when the table is not a plain header followed by
// one key per line.
func editDependencies(data []byte, set map[string]string, remove []string, declared bool) ([]byte, bool) {
	text := string(data)
	newline := "\n"
	if strings.Contains(text, "\r\n") {
		newline = "\r\n"
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	removed := make(map[string]bool, len(remove))
	for _, name := range remove {
		removed[packagekey.NormalizeName(name)] = true
	}
	pending := make(map[string]string, len(set)) // normalized name → entry line
	for name, version := range set {
		pending[packagekey.NormalizeName(name)] = dependencyLine(name, version, newline)
	}

	header := slices.IndexFunc(lines, func(l string) bool {
		return dependenciesHeader.MatchString(strings.TrimRight(l, "\r\n"))
	})
	if header < 0 {
		if declared {
			return nil, false
		}
		var b strings.Builder
		b.WriteString(text)
		if len(text) > 0 {
			if !strings.HasSuffix(text, "\n") {
				b.WriteString(newline)
			}
			b.WriteString(newline)
		}
		b.WriteString("[dependencies]" + newline)
		for _, n := range sortedEntries(pending) {
			b.WriteString(pending[n])
		}
		return []byte(b.String()), true
	}

	out := slices.Clone(lines[:header+1])
	insertAt := len(out)
	i := header + 1
	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, "[") {
			break
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			out = append(out, lines[i])
			continue
		}
		key, ok := lineKey(trimmed)
		if !ok {
			return nil, false
		}
		normalized := packagekey.NormalizeName(key)
		switch entry, replace := pending[normalized]; {
		case removed[normalized] && !replace:
		case replace:
			delete(pending, normalized)
			out = append(out, entry)
			insertAt = len(out)
		default:
			if !strings.HasSuffix(lines[i], "\n") {
				lines[i] += newline
			}
			out = append(out, lines[i])
			insertAt = len(out)
		}
	}

	var added []string
	for _, n := range sortedEntries(pending) {
		added = append(added, pending[n])
	}
	out = slices.Insert(out, insertAt, added...)
	out = append(out, lines[i:]...)
	return []byte(strings.Join(out, "")), true
}

// lineKey extracts the key of a "key = value" line. Dotted keys are not
// supported.
func lineKey(line string) (string, bool) {
	var key, rest string
	switch line[0] {
	case '"':
		end := 1
		for end < len(line) && line[end] != '"' {
			if line[end] == '\\' {
				end++
			}
			end++
		}
		if end >= len(line) {
			return "", false
		}
		k, err := strconv.Unquote(line[:end+1])
		if err != nil {
			return "", false
		}
		key, rest = k, line[end+1:]
	case '\'':
		end := strings.IndexByte(line[1:], '\'')
		if end < 0 {
			return "", false
		}
		key, rest = line[1:end+1], line[end+2:]
	default:
		key = bareKey.FindString(line)
		rest = line[len(key):]
	}
	if key == "" || !strings.HasPrefix(strings.TrimSpace(rest), "=") {
		return "", false
	}
	return key, true
}

func dependencyLine(name, version, newline string) string {
	key := displayName(name)
	if bareKey.FindString(key) != key {
		key = strconv.Quote(key)
	}
	return key + " = " + strconv.Quote(version) + newline
}

// sortedEntries orders pending entries by the name they are written under.
func sortedEntries(pending map[string]string) []string {
	names := slices.Collect(maps.Keys(pending))
	slices.SortFunc(names, func(a, b string) int { return strings.Compare(displayName(a), displayName(b)) })
	return names
}

// sameDocument reports whether out decodes to orig with its dependencies
// replaced by want.
func sameDocument(out []byte, orig map[string]any, want map[string]any) bool {
	got := map[string]any{}
	if _, err := toml.NewDecoder(bytes.NewReader(out)).Decode(&got); err != nil {
		return false
	}
	gotDeps, _ := got["dependencies"].(map[string]any)
	if !reflect.DeepEqual(gotDeps, want) {
		return false
	}
	got = maps.Clone(got)
	orig = maps.Clone(orig)
	delete(got, "dependencies")
	delete(orig, "dependencies")
	return reflect.DeepEqual(got, orig)
}

// displayName writes global-namespace packages in their short form.
func displayName(name string) string {
	if ns, pkg := packagekey.SplitName(name); ns == packagekey.GlobalNamespace {
		return pkg
	}
	return name
}
