// Package build writes the preload production artifacts and publishes them
// to object storage.
//
// # Usage
//
//	builder := build.New(cfg, build.Options{})
//	result, err := builder.Build(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Built in %s\n", result.Duration)
//
// # Output Structure
//
//	dist/
//	├── index.html              # build.html with the injection spliced in
//	└── preload/
//	    ├── runtime.a1b2c3d4.js # runtime module
//	    ├── inject.html         # HTML fragment (omitted when empty)
//	    └── manifest.json       # artifact manifest
//
// # Manifest
//
// The manifest maps logical artifact names to their output files:
//
//	{
//	  "mode": "production",
//	  "directives": 3,
//	  "artifacts": {
//	    "runtime.js": {"path": "preload/runtime.a1b2c3d4.js", "immutable": true, ...},
//	    "inject.html": {"path": "preload/inject.html", ...}
//	  }
//	}
package build
