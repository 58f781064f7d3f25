package resflow

type EngineOption func(engine *Engine)

func WithEngineTxManager(txManager TxManager) EngineOption {
	return func(engine *Engine) {
		engine.txManager = txManager
	}
}

func WithEngineStore(store Store) EngineOption {
	return func(engine *Engine) {
		engine.store = store
	}
}

func WithEnginePluginManager(pluginManager *PluginManager) EngineOption {
	return func(e *Engine) {
		e.pluginManager = pluginManager
	}
}

func WithEngineCatalog(catalog *Catalog) EngineOption {
	return func(e *Engine) {
		e.catalog = catalog
	}
}

// WithEnginePermissionChecker sets the capability source for active roles and
// user lock overrides. Without one only steps with no active roles are editable.
func WithEnginePermissionChecker(checker PermissionChecker) EngineOption {
	return func(e *Engine) {
		e.permissions = checker
	}
}
