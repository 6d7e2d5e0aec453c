// Package errors provides structured, actionable errors for the preload CLI
// and its build and dev tooling.
//
// Each error has a code (e.g. "E101") registered with a category, a short
// message, a longer explanation and a documentation URL. Callers add detail,
// a fix suggestion and, for config files, the source location.
//
// # Categories
//
//   - config: loading, parsing or validating preload.json / preload.yaml
//   - build: writing artifacts or rewriting the HTML entry
//   - publish: uploading artifacts to object storage
//   - dev: running the development server
//   - cli: command usage
//
// # Usage
//
//	err := errors.New("E101").
//	    WithLocation("preload.json", 4, 17).
//	    WithSuggestion("Check that preload.json is valid JSON")
//
//	fmt.Print(err.Format())
//	// Output:
//	// ERROR E101: Invalid config file
//	//
//	//   preload.json:4:17
//	//
//	//      3 │   "routes": ["/a"],
//	//   →  4 │   "delay": "soon",
//	//        │                 ^
//	//      5 │   "showStatus": true
//	//
//	//   Hint: Check that preload.json is valid JSON
//	//
//	//   Learn more: https://vango.dev/preload/errors/E101
package errors
