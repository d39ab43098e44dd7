package item

import (
	"go.uber.org/fx"

	component "github.com/tigerroll/recipient-import/pkg/batch/component/item"
	reader "github.com/tigerroll/recipient-import/pkg/batch/component/step/reader"
	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
	config "github.com/tigerroll/recipient-import/pkg/batch/core/config"
)

// StepParams collects the collaborators of a ContinuationStep from the container.
type StepParams struct {
	fx.In
	Config       config.ImportConfig
	Formats      *reader.DecoderRegistry
	Fetcher      port.SourceFetcher
	Normalizer   *component.RecordNormalizer
	Filter       *component.ValidationFilter
	Writer       port.BatchWriter
	Redispatcher port.Redispatcher
	Sink         port.ReportSink
	Listeners    []port.ExecutionListener `group:"execution_listeners"`
}

// NewContinuationStepFromParams builds the ContinuationStep used by the launcher.
func NewContinuationStepFromParams(p StepParams) *ContinuationStep {
	return NewContinuationStep(
		NewStepConfig(p.Config),
		p.Formats,
		p.Fetcher,
		p.Normalizer,
		p.Filter,
		p.Writer,
		p.Redispatcher,
		p.Sink,
		p.Listeners...,
	)
}

// Module provides the ContinuationStep.
var Module = fx.Options(
	fx.Provide(NewContinuationStepFromParams),
)
