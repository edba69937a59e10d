package stages

import "github.com/xrayctl/xrayd/internal/pipeline"

// NewDefaultRegistry returns the ten canonical stages in their slot order,
// ready to be handed to pipeline.New. Callers may drop or reorder entries
// before constructing the Pipeline; New re-sorts by slot regardless.
func NewDefaultRegistry() []pipeline.Stage {
	return []pipeline.Stage{
		DarkSubtract{},
		FlatCorrect{},
		BadPixelReplace{},
		BandingCorrect{},
		DeadLineFill{},
		PincushionRemap{},
		MustacheRemap{},
		Enhance{},
		Crop{},
		BackgroundSeparate{},
	}
}
