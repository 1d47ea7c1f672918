package api

import (
	"github.com/JaimeStill/accord/pkg/module"
)

func registerRoutes(m *module.Module, domain *Domain, runtime *Runtime) {
	m.Register(
		domain.Providers.Handler().Routes(),
		domain.Templates.Handler().Routes(),
		domain.Blocks.Handler().Routes(),
		domain.Archive.Handler().Routes(),
		domain.Generation.Handler().Routes(),
		newStorageHandler(runtime.Storage, runtime.Logger).routes(),
	)
}
