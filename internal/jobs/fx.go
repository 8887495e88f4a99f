package jobs

import "go.uber.org/fx"

var Module = fx.Module("jobs",
	fx.Provide(
		asJob(NewBIRAggregateJob),
		asJob(NewDSRUpdateJob),
		asJob(NewSessionPruneJob),
		NewRunner,
	),
)

func asJob(constructor any) any {
	return fx.Annotate(constructor, fx.As(new(Job)), fx.ResultTags(`group:"jobs"`))
}
