package mistral

import "github.com/randalmurphal/studykit/provider"

// Name is the provider family name used in the registry and the
// model-configuration table.
const Name = "mistral"

func init() {
	provider.Register(Name, func(cfg provider.Config) (provider.Client, error) {
		return New(cfg)
	})
}
