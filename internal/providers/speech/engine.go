// Package speech provides the "iflytek" handler: offline dictation driven
// through a streaming port, plus the one-shot actions that prepare the engine.
package speech

import (
	"fmt"
	"path/filepath"

	"github.com/GriffinCanCode/nativebridge/internal/stream"
)

// AbilityID selects the dictation ability of the recognition engine.
const AbilityID = "ee62fa27c"

// Custom text resources loaded next to the engine's model files.
const (
	CustomNotReplace = "PPROC_NOT_REP"
	CustomReplace    = "PPROC_REPLACE"

	notReplaceFile = "num_not_change_list"
	replaceFile    = "replace_list"
)

// Credentials authenticate the engine on this device.
type Credentials struct {
	AppID     string
	APIKey    string
	APISecret string
	WorkDir   string
	Ability   string
}

// CustomText is one post-processing resource file.
type CustomText struct {
	Key   string
	Path  string
	Index int
}

// CustomTexts lists the resources kept in workDir.
func CustomTexts(workDir string) []CustomText {
	return []CustomText{
		{Key: CustomNotReplace, Path: filepath.Join(workDir, notReplaceFile), Index: 0},
		{Key: CustomReplace, Path: filepath.Join(workDir, replaceFile), Index: 0},
	}
}

// Params are the engine start parameters.
type Params map[string]any

// StartParams returns the fixed dictation parameters.
func StartParams() Params {
	return Params{
		"lmLoad":          true,
		"vadLoad":         false,
		"puncLoad":        true,
		"numLoad":         true,
		"postprocOn":      true,
		"lmOn":            true,
		"vadOn":           false,
		"vadLinkOn":       false,
		"vadSpeechEnd":    80,
		"vadResponsetime": 1000,
		"dialectType":     0,
	}
}

// Handle identifies one recognition session inside the engine.
type Handle int

// Response is one keyed output of the engine. Values are GBK text.
type Response struct {
	Key    string
	Value  []byte
	Status stream.Status
}

// Listener receives the engine's asynchronous output.
type Listener interface {
	OnResult(h Handle, out []Response)
	OnEvent(h Handle, event int, data []Response)
	OnError(h Handle, code int, msg string)
}

// Engine is the recognition engine. Integer results follow the vendor
// convention: 0 is success, anything else an error code.
type Engine interface {
	Init(creds Credentials) error
	SetListener(l Listener)
	LoadData(texts []CustomText) int
	UnloadData(key string, index int) int
	Start(params Params) (Handle, int)
	Write(h Handle, c stream.Chunk) int
	Read(h Handle) int
	End(h Handle) int
}

// TerminalEvent reports whether event ends the recognition session.
func TerminalEvent(event int) bool {
	switch event {
	case 0, 2, 3:
		return true
	}
	return false
}

// CodeError is an engine failure in a named stage.
type CodeError struct {
	Stage string
	Code  int
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("error in %s, code: %d", e.Stage, e.Code)
}
