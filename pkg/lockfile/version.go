package lockfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CurrentVersion is the schema generation written by [Generate].
const CurrentVersion = 4

const headerPrefix = "# Lockfile v"

// Header is prepended to every generated lockfile.
var Header = header(CurrentVersion)

func header(version int) string {
	return fmt.Sprintf("%s%d\n"+
		"# This file is automatically generated by Wapm.\n"+
		"# It is not intended for manual editing. The schema of this file may change.\n",
		headerPrefix, version)
}

var (
	// ErrMissingHeader is returned when the first line is not a lockfile tag.
	ErrMissingHeader = errors.New("missing lockfile version header")

	// ErrUnknownVersion matches every [UnknownVersionError].
	ErrUnknownVersion = errors.New("unknown lockfile version")
)

// UnknownVersionError reports a version tag outside the supported generations.
type UnknownVersionError struct {
	Tag string
}

func (e *UnknownVersionError) Error() string {
	return fmt.Sprintf("%s %q", ErrUnknownVersion, e.Tag)
}

func (e *UnknownVersionError) Unwrap() error { return ErrUnknownVersion }

// DetectVersion reads the schema generation from the first line of data.
func DetectVersion(data []byte) (int, error) {
	line, _, _ := bufio.NewReader(bytes.NewReader(data)).ReadLine()
	tag := strings.TrimSpace(string(line))

	rest, ok := strings.CutPrefix(tag, headerPrefix)
	if !ok {
		return 0, ErrMissingHeader
	}
	v, err := strconv.Atoi(rest)
	if err != nil || v < 1 || v > CurrentVersion {
		return 0, &UnknownVersionError{Tag: tag}
	}
	return v, nil
}
