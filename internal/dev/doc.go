// Package dev provides the preload development server.
//
// The server sits in front of the application server:
//
//   - /@preload/runtime.js and /@id/virtual:preloader serve the runtime module
//   - /_preload/reload is the hot reload WebSocket
//   - /_preload/metrics exposes Prometheus metrics
//   - every other request is proxied to dev.upstream, and HTML responses get
//     the preload injection and the reload client spliced in
//
// A polling Watcher follows the config file, the .env file and, with
// auto-detection on, the views directory. A change resolves the
// configuration again and reloads connected browsers. A configuration that
// fails to load or validate is reported in the browser overlay and the
// previous one stays live.
//
// # Usage
//
//	srv, err := dev.NewServer(dev.ServerOptions{Config: cfg})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Hot Reload Protocol
//
// Messages are JSON-encoded Events:
//
//	{"type": "config", "generation": 3, "mode": "development",
//	 "routes": ["/a", "/b"], "changed": ["preload.json"]}      // New configuration, clears the overlay and reloads
//	{"type": "reload", "changed": ["public/app.css"]}          // Other watched file, reloads
//	{"type": "error", "error": "..."}                          // Shows error overlay
//
// A pending error is replayed to clients that connect later, so the
// overlay survives a page reload until the configuration is fixed.
package dev
