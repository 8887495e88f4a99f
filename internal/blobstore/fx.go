package blobstore

import "go.uber.org/fx"

var Module = fx.Module("blobstore",
	fx.Provide(NewFileStore),
)
