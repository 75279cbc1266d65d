package access

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Capability is one named permission flag.
type Capability uint8

const (
	CapViewBasicDashboard Capability = iota
	CapViewGameData
	CapManageGames
	CapViewProducts
	CapViewBrandCampaigns
	CapManageBrand
	CapPayForProducts
	CapAdmin

	capabilityCount
)

var capabilityNames = [capabilityCount]string{
	CapViewBasicDashboard: "can_view_basic_dashboard",
	CapViewGameData:       "can_view_game_data",
	CapManageGames:        "can_manage_games",
	CapViewProducts:       "can_view_products",
	CapViewBrandCampaigns: "can_view_brand_campaigns",
	CapManageBrand:        "can_manage_brand",
	CapPayForProducts:     "can_pay_for_products",
	CapAdmin:              "can_admin",
}

func (c Capability) String() string {
	if c < capabilityCount {
		return capabilityNames[c]
	}
	return fmt.Sprintf("capability(%d)", uint8(c))
}

// Capabilities returns every capability in declaration order.
func Capabilities() []Capability {
	out := make([]Capability, 0, capabilityCount)
	for c := Capability(0); c < capabilityCount; c++ {
		out = append(out, c)
	}
	return out
}

func ParseCapability(name string) (Capability, error) {
	for c := Capability(0); c < capabilityCount; c++ {
		if capabilityNames[c] == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown capability %q", name)
}

// Set is a resolved permission set. The zero value grants nothing.
type Set uint16

func NewSet(caps ...Capability) Set {
	var s Set
	for _, c := range caps {
		s = s.With(c)
	}
	return s
}

// FullSet grants every capability.
func FullSet() Set {
	return Set(1<<capabilityCount - 1)
}

func (s Set) Has(c Capability) bool {
	return c < capabilityCount && s&(1<<c) != 0
}

func (s Set) With(c Capability) Set {
	if c >= capabilityCount {
		return s
	}
	return s | 1<<c
}

func (s Set) Without(c Capability) Set {
	return s &^ (1 << c)
}

// Map expands the set into one boolean per capability name.
func (s Set) Map() map[string]bool {
	out := make(map[string]bool, capabilityCount)
	for c := Capability(0); c < capabilityCount; c++ {
		out[capabilityNames[c]] = s.Has(c)
	}
	return out
}

// Names lists the granted capabilities, sorted.
func (s Set) Names() []string {
	var out []string
	for c := Capability(0); c < capabilityCount; c++ {
		if s.Has(c) {
			out = append(out, capabilityNames[c])
		}
	}
	sort.Strings(out)
	return out
}

func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}
