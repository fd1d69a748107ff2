package install

import (
	"fmt"

	"github.com/wasmerio/wapm-cli-sub000/pkg/packagekey"
)

// Stage names the installation step that failed.
type Stage string

const (
	StageCreateDir Stage = "create-dir"
	StageDownload  Stage = "download"
	StageExtract   Stage = "extract"
	StageManifest  Stage = "manifest"
)

// Error is an installation failure attributed to a package and a stage.
type Error struct {
	Key   packagekey.Key
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Key, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
