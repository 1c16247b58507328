// Package providers registers all known provider families.
// Import this package to make every family available via provider.New():
//
//	import _ "github.com/randalmurphal/studykit/providers"
package providers

import (
	_ "github.com/randalmurphal/studykit/mistral"
	_ "github.com/randalmurphal/studykit/ollama"
)
