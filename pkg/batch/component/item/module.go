package item

import "go.uber.org/fx"

// Module provides the record normalizer and the validation filter.
var Module = fx.Options(
	fx.Provide(NewRecordNormalizer),
	fx.Provide(NewValidationFilter),
)
