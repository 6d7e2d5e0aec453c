// Package preload generates the route prefetch runtime injected into a web
// application bundle.
//
// The package has two parts:
//
//   - Normalize turns user options (routes given as shorthand strings or
//     explicit records, plus optional settings) into an immutable Config.
//   - Generator expands every route into a Directive and renders the runtime
//     module and the HTML injection fragment from that Config.
//
// Both are pure in-memory transforms. A Generator never mutates its Config,
// so one instance can serve concurrent hook calls.
//
// # Usage
//
//	cfg, err := preload.Normalize(preload.Options{
//	    Routes: []preload.RouteSpec{
//	        preload.Shorthand("/demo/13-calendar"),
//	        preload.Explicit("/settings").WithPriority(1).WithReason("critical"),
//	    },
//	    ShowStatus: preload.Bool(false),
//	}, preload.ModeProduction)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	gen := preload.NewGenerator(cfg)
//	js := gen.RenderRuntimeModule()
//	html := gen.TransformHTML(indexHTML)
//
// # Component Inference
//
// Routes without an explicit component are mapped under the "@/views" alias:
//
//	/demo/13-calendar  ->  @/views/demo/13-calendar/index.vue
//
// # Host Hooks
//
// Plugin exposes the hook surface a build tool drives: ConfigResolved,
// ResolveID/Load for the "virtual:preloader" module, TransformIndexHTML and
// HandleHotUpdate.
package preload
