package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

const docBase = "https://vango.dev/preload/errors/"

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Config (E100-E109)
	"E100": {
		Category: CategoryConfig,
		Message:  "Config file not found",
		Detail:   "No preload.json, preload.yaml or preload.yml was found.",
		DocURL:   docBase + "E100",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Invalid config file",
		Detail:   "The config file could not be read or parsed.",
		DocURL:   docBase + "E101",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid config value",
		Detail:   "A config value is missing or outside its allowed set.",
		DocURL:   docBase + "E102",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Config write failed",
		Detail:   "The config file could not be written.",
		DocURL:   docBase + "E103",
	},

	// Build (E110-E119)
	"E110": {
		Category: CategoryBuild,
		Message:  "Build output failed",
		Detail:   "An artifact could not be written to the output directory.",
		DocURL:   docBase + "E110",
	},
	"E111": {
		Category: CategoryBuild,
		Message:  "HTML entry unavailable",
		Detail:   "The HTML entry document to inject into could not be read.",
		DocURL:   docBase + "E111",
	},

	// Publish (E120-E129)
	"E120": {
		Category: CategoryPublish,
		Message:  "Publish failed",
		Detail:   "Uploading build artifacts to object storage failed.",
		DocURL:   docBase + "E120",
	},
	"E121": {
		Category: CategoryPublish,
		Message:  "Nothing to publish",
		Detail:   "The build manifest lists no artifacts. Run 'preload build' first.",
		DocURL:   docBase + "E121",
	},

	// Dev server (E130-E139)
	"E130": {
		Category: CategoryDev,
		Message:  "Dev server failed",
		Detail:   "The development server could not start or stopped unexpectedly.",
		DocURL:   docBase + "E130",
	},
	"E131": {
		Category: CategoryDev,
		Message:  "Invalid upstream",
		Detail:   "dev.upstream must be an absolute http(s) URL.",
		DocURL:   docBase + "E131",
	},

	// Route discovery (E140-E149)
	"E140": {
		Category: CategoryConfig,
		Message:  "Route auto-detection failed",
		Detail:   "The views directory could not be scanned for route components.",
		DocURL:   docBase + "E140",
	},

	// CLI (E150-E159)
	"E150": {
		Category: CategoryCLI,
		Message:  "Invalid flag",
		Detail:   "A command-line flag has an unsupported value.",
		DocURL:   docBase + "E150",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
