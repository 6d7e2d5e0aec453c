// Package templates renders starter configuration files for 'preload init'.
//
// # Available Templates
//
//   - json: preload.json
//   - yaml: preload.yaml
//
// # Usage
//
//	tmpl, err := templates.Get("yaml")
//	if err != nil {
//	    return err
//	}
//	path, err := tmpl.Create(projectDir, templates.Config{
//	    Routes: []string{"/dashboard", "/settings"},
//	}, false)
//
// # Template Variables
//
//	{{.Routes}}      - Starter route paths
//	{{.Views}}       - Views directory
//	{{.Upstream}}    - Application dev server URL
//	{{.HTML}}        - HTML entry for 'preload build'
//	{{.AutoDetect}}  - Whether to add an autoDetect block
package templates
