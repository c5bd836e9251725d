package keybinds

// NewDefaultRegistry creates a registry with all default keybindings
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	registerGlobalBindings(r)
	registerRunBindings(r)
	registerHelpBindings(r)

	return r
}

// registerGlobalBindings sets up bindings available in all views
func registerGlobalBindings(r *Registry) {
	r.Register(ContextGlobal, "ctrl+c", ActionQuitForce)
}

// registerRunBindings sets up the single-letter run controls
func registerRunBindings(r *Registry) {
	r.Register(ContextRun, "c", ActionClear)
	r.Register(ContextRun, "d", ActionDebugDump)
	r.Register(ContextRun, "p", ActionPause)
	r.Register(ContextRun, "r", ActionResume)
	r.Register(ContextRun, "q", ActionQuit)
	r.Register(ContextRun, "s", ActionRestart)
	r.Register(ContextRun, "?", ActionToggleHelp)
}

// registerHelpBindings sets up the help overlay
func registerHelpBindings(r *Registry) {
	r.RegisterMultiple(ContextHelp, []string{"esc", "?", "q"}, ActionCloseHelp)
}
