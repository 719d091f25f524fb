package model

import (
	"fmt"
	"strings"
)

// Capability names a remote API behavior whose availability depends on the
// cluster version.
type Capability string

// Gated capabilities.
const (
	CapIndexTemplates     Capability = "index templates"
	CapComponentTemplates Capability = "component templates"
	CapSQL                Capability = "sql"
	CapDataStreams        Capability = "data streams"
	CapFreezeIndex        Capability = "index freeze"
)

// assumption selects the behavior used when no version has been detected.
type assumption int

const (
	// assumeModern favors the newest known API.
	assumeModern assumption = iota
	// assumeLegacy favors the older, wider API for capabilities that were
	// removed in later versions.
	assumeLegacy
)

type capabilityRule struct {
	introduced Version
	removedIn  *Version
	path       string
	legacyPath string // used below introduced; empty means unsupported there
	unknown    assumption
}

var capabilityRules = map[Capability]capabilityRule{
	CapIndexTemplates: {
		introduced: Version{Major: 7, Minor: 8},
		path:       "/_index_template",
		legacyPath: "/_template",
		unknown:    assumeModern,
	},
	CapComponentTemplates: {
		introduced: Version{Major: 7, Minor: 8},
		path:       "/_component_template",
		unknown:    assumeModern,
	},
	CapSQL: {
		introduced: Version{Major: 7, Minor: 0},
		path:       "/_sql",
		unknown:    assumeModern,
	},
	CapDataStreams: {
		introduced: Version{Major: 7, Minor: 9},
		path:       "/_data_stream",
		unknown:    assumeModern,
	},
	CapFreezeIndex: {
		removedIn: &Version{Major: 8, Minor: 0},
		path:      "/{index}/_freeze",
		unknown:   assumeLegacy,
	},
}

// UnsupportedError reports a capability the connected cluster cannot serve.
// Exactly one of MinVersion or RemovedIn is set.
type UnsupportedError struct {
	Capability Capability
	Actual     Version
	MinVersion *Version
	RemovedIn  *Version
}

func (e *UnsupportedError) Error() string {
	if e.RemovedIn != nil {
		return fmt.Sprintf("%s was removed in Elasticsearch %d.%d (cluster is %s)",
			e.Capability, e.RemovedIn.Major, e.RemovedIn.Minor, e.Actual)
	}
	return fmt.Sprintf("%s requires Elasticsearch %d.%d or higher (cluster is %s)",
		e.Capability, e.MinVersion.Major, e.MinVersion.Minor, e.Actual)
}

// ResolveCapability returns the API path to use for c given the detected
// version, or an *UnsupportedError. A nil version means detection was skipped;
// each capability then applies its own optimistic assumption. Path
// placeholders of the form {name} are filled from params.
func ResolveCapability(c Capability, v *Version, params map[string]string) (string, error) {
	rule, ok := capabilityRules[c]
	if !ok {
		return "", fmt.Errorf("unknown capability %q", c)
	}

	path, err := rule.resolve(c, v)
	if err != nil {
		return "", err
	}

	for name, value := range params {
		path = strings.ReplaceAll(path, "{"+name+"}", value)
	}
	return path, nil
}

func (r capabilityRule) resolve(c Capability, v *Version) (string, error) {
	if v == nil {
		if r.unknown == assumeLegacy && r.legacyPath != "" {
			return r.legacyPath, nil
		}
		return r.path, nil
	}

	if !v.AtLeast(r.introduced) {
		if r.legacyPath != "" {
			return r.legacyPath, nil
		}
		floor := r.introduced
		return "", &UnsupportedError{Capability: c, Actual: *v, MinVersion: &floor}
	}

	if r.removedIn != nil && v.AtLeast(*r.removedIn) {
		removed := *r.removedIn
		return "", &UnsupportedError{Capability: c, Actual: *v, RemovedIn: &removed}
	}

	return r.path, nil
}
