// Package reader provides record decoders and the declared-format check that runs before a source is fetched.
package reader

import (
	"fmt"
	"sort"
	"strings"

	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/exception"
)

const moduleName = "reader"

// formatAliases maps a file extension to the decoder format that handles it.
var formatAliases = map[string]string{
	"csv": FormatCSV,
	"txt": FormatCSV,
}

// DecoderRegistry resolves a declared format to a RecordDecoder.
type DecoderRegistry struct {
	decoders map[string]port.RecordDecoder
}

// NewDecoderRegistry creates a registry holding the given decoders, keyed by their Format.
func NewDecoderRegistry(decoders ...port.RecordDecoder) *DecoderRegistry {
	r := &DecoderRegistry{decoders: make(map[string]port.RecordDecoder, len(decoders))}
	for _, d := range decoders {
		r.decoders[strings.ToLower(d.Format())] = d
	}
	return r
}

// CheckFormat returns the decoder for the locator's declared format.
// It only looks at the key, so it can run before anything is fetched.
func (r *DecoderRegistry) CheckFormat(locator model.SourceLocator) (port.RecordDecoder, error) {
	ext := locator.Extension()
	format, ok := formatAliases[ext]
	if !ok {
		format = ext
	}
	d, ok := r.decoders[format]
	if !ok {
		return nil, exception.NewUnsupportedFormatError(moduleName,
			fmt.Sprintf("declared format %q of %s is not supported (supported: %s)", ext, locator.String(), strings.Join(r.Formats(), ", ")), nil)
	}
	return d, nil
}

// Formats lists the registered formats in sorted order.
func (r *DecoderRegistry) Formats() []string {
	out := make([]string, 0, len(r.decoders))
	for f := range r.decoders {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
