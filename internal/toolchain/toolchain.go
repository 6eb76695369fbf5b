// Package toolchain probes PATH for the executables the helper invocation
// depends on.
package toolchain

import (
	"sort"

	"github.com/kirikodevv/grabctx/internal/pkgenv"
)

type Capability struct {
	Required  bool   `json:"required"`
	Binary    string `json:"binary"`
	Path      string `json:"path,omitempty"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

var toolBinaries = map[string][]string{
	"node": {"node", "nodejs"},
	"npm":  {"npm"},
	"yarn": {"yarn", "yarnpkg"},
}

// Tools lists the probed tool names in stable order.
func Tools() []string {
	names := make([]string, 0, len(toolBinaries))
	for name := range toolBinaries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RequiredTools marks node plus the manager's own executable as required.
// Without a resolved manager only node is required.
func RequiredTools(manager pkgenv.Manager) map[string]bool {
	required := make(map[string]bool, len(toolBinaries))
	for name := range toolBinaries {
		required[name] = false
	}
	required["node"] = true
	if manager != pkgenv.ManagerNone {
		required[string(manager)] = true
	}
	return required
}

func ProbeWithLookPath(required map[string]bool, lookPath func(file string) (string, error)) map[string]Capability {
	capabilities := make(map[string]Capability, len(toolBinaries))
	for tool, binaries := range toolBinaries {
		capability := Capability{Required: required[tool]}
		if len(binaries) > 0 {
			capability.Binary = binaries[0]
		}

		for _, binary := range binaries {
			if path, err := lookPath(binary); err == nil {
				capability.Available = true
				capability.Binary = binary
				capability.Path = path
				break
			}
		}
		if !capability.Available {
			capability.Reason = "not_found_on_path"
		}
		capabilities[tool] = capability
	}
	return capabilities
}

// Missing returns the required tools that were not found, sorted.
func Missing(capabilities map[string]Capability) []string {
	var missing []string
	for tool, capability := range capabilities {
		if capability.Required && !capability.Available {
			missing = append(missing, tool)
		}
	}
	sort.Strings(missing)
	return missing
}
