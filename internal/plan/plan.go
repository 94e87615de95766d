// Package plan turns raw conversion arguments into a validated Plan.
//
// Arguments arrive as an ordered token list:
//
//	[mode, path, formatFlag, formatValue]
//
// where mode is ModeSingleFileToken or ModeFolderToken, formatFlag is
// FormatFlag and formatValue an extension such as ".wav".
package plan

import (
	"github.com/keanucz/audioconv/internal/converr"
)

// Tokens recognised by Build.
const (
	ModeSingleFileToken = "-single_file"
	ModeFolderToken     = "-folder"
	FormatFlag          = "-format"
)

// Mode selects between converting one file and a whole folder.
type Mode int

const (
	SingleFile Mode = iota
	Folder
)

func (m Mode) String() string {
	switch m {
	case SingleFile:
		return "single file"
	case Folder:
		return "folder"
	default:
		return "unknown"
	}
}

// Plan is a validated description of one conversion run.
type Plan struct {
	Mode         Mode
	InputPath    string
	OutputFormat string
}

// FormatChecker reports whether an output extension is accepted.
type FormatChecker interface {
	IsSupported(ext string) bool
}

// Build parses tokens into a Plan. defaultFormat is used when no format pair
// is given. An unrecognised or empty mode token selects SingleFile.
func Build(tokens []string, defaultFormat string, formats FormatChecker) (Plan, error) {
	p := Plan{Mode: modeFromToken(tokenAt(tokens, 0))}

	p.InputPath = tokenAt(tokens, 1)
	if p.InputPath == "" {
		return Plan{}, converr.Argumentf("no path specified")
	}

	if len(tokens) <= 2 {
		if !formats.IsSupported(defaultFormat) {
			return Plan{}, converr.Argumentf("format not supported: %s", defaultFormat)
		}
		p.OutputFormat = defaultFormat
		return p, nil
	}

	// A flag without its value, or trailing junk, is never ignored.
	flag, value := tokenAt(tokens, 2), tokenAt(tokens, 3)
	if flag == "" || value == "" || len(tokens) > 4 {
		return Plan{}, converr.Argumentf("invalid format operation")
	}
	if flag != FormatFlag || !formats.IsSupported(value) {
		return Plan{}, converr.Argumentf("format not supported: %s", value)
	}
	p.OutputFormat = value
	return p, nil
}

func modeFromToken(tok string) Mode {
	if tok == ModeFolderToken {
		return Folder
	}
	return SingleFile
}

func tokenAt(tokens []string, i int) string {
	if i < len(tokens) {
		return tokens[i]
	}
	return ""
}

// Tokens renders p back into the argument form Build accepts.
func (p Plan) Tokens() []string {
	mode := ModeSingleFileToken
	if p.Mode == Folder {
		mode = ModeFolderToken
	}
	return []string{mode, p.InputPath, FormatFlag, p.OutputFormat}
}
