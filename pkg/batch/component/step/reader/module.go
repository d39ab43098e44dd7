package reader

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
)

// Module provides the CSV decoder and a registry exposing it.
var Module = fx.Options(
	fx.Provide(NewCSVDecoder),
	fx.Provide(func(csv *CSVDecoder) *DecoderRegistry {
		return NewDecoderRegistry([]port.RecordDecoder{csv}...)
	}),
)
