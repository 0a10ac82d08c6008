package substrate

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var ErrUnknownChain = errors.New("unknown chain")

// Profile describes a supported relay chain
type Profile struct {
	Name         string
	Endpoint     string
	LedgerSchema LedgerSchema
}

var profiles = map[string]Profile{
	"polkadot": {
		Name:         "polkadot",
		Endpoint:     tryRuntimeEndpoint("polkadot"),
		LedgerSchema: LedgerSchemaV2,
	},
	"kusama": {
		Name:         "kusama",
		Endpoint:     tryRuntimeEndpoint("kusama"),
		LedgerSchema: LedgerSchemaV2,
	},
}

func tryRuntimeEndpoint(chain string) string {
	return fmt.Sprintf("wss://%s-try-runtime-node.parity-chains.parity.io:443", chain)
}

// LookupProfile returns the profile registered for chain
func LookupProfile(chain string) (Profile, error) {
	p, ok := profiles[strings.ToLower(chain)]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownChain, chain, strings.Join(KnownChains(), ", "))
	}
	return p, nil
}

// KnownChains lists registered chain names in order
func KnownChains() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
