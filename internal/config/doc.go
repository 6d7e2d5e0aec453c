// Package config loads the preload project file.
//
// The configuration lives in preload.json (or preload.yaml / preload.yml)
// at the project root. The "preload" section holds the plugin options that
// are handed to the normalizer. The remaining sections configure the
// command line tool.
//
// # Configuration File Structure
//
//	{
//	  "preload": {
//	    "routes": ["/dashboard", {"path": "/settings", "priority": 1}],
//	    "delay": 1500,
//	    "showStatus": true,
//	    "statusPosition": "bottom-right",
//	    "autoDetect": {"minSize": "20 kB", "exclude": ["/admin/**"]}
//	  },
//	  "mode": "development",
//	  "views": "src/views",
//	  "dev": {
//	    "port": 5173,
//	    "host": "localhost",
//	    "upstream": "http://localhost:3000"
//	  },
//	  "build": {
//	    "output": "dist",
//	    "html": "index.html"
//	  },
//	  "publish": {
//	    "bucket": "my-assets",
//	    "prefix": "preload/"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.LoadFromWorkingDir()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mode, err := cfg.ResolveMode("", preload.ModeDevelopment)
//	opts, err := cfg.PreloadOptions()
package config
