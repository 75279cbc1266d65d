package access

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/models"
)

// Matrix maps each account type to its permission set.
type Matrix map[models.AccountType]Set

// Overrides is the raw content of a roles override file: account type key to
// a partial capability map.
type Overrides map[string]map[string]bool

func DefaultMatrix() Matrix {
	return Matrix{
		models.AccountTypePending: NewSet(
			CapViewBasicDashboard,
		),
		models.AccountTypePartner: NewSet(
			CapViewBasicDashboard,
			CapViewGameData,
			CapManageGames,
		),
		models.AccountTypeBusiness: NewSet(
			CapViewBasicDashboard,
			CapViewProducts,
			CapPayForProducts,
		),
		models.AccountTypeBrandSpecialist: NewSet(
			CapViewBasicDashboard,
			CapViewBrandCampaigns,
		),
		models.AccountTypeBrandPartner: NewSet(
			CapViewBasicDashboard,
			CapViewProducts,
			CapViewBrandCampaigns,
			CapManageBrand,
			CapPayForProducts,
		),
		models.AccountTypeBrand: NewSet(
			CapViewBasicDashboard,
			CapViewProducts,
			CapViewBrandCampaigns,
			CapManageBrand,
			CapPayForProducts,
		),
		models.AccountTypeAdministrator: FullSet(),
	}
}

// Merge applies overrides shallowly over base: keys present in an override
// replace the default, absent keys keep it. Unknown account types or
// capability names are rejected.
func Merge(base Matrix, overrides Overrides) (Matrix, error) {
	merged := make(Matrix, len(base))
	for t, set := range base {
		merged[t] = set
	}

	for typeKey, flags := range overrides {
		accountType, err := models.ParseAccountType(typeKey)
		if err != nil {
			return nil, fmt.Errorf("roles override: %q: %w", typeKey, err)
		}
		set := merged[accountType]
		for name, granted := range flags {
			c, err := ParseCapability(name)
			if err != nil {
				return nil, fmt.Errorf("roles override: %s: %w", typeKey, err)
			}
			if granted {
				set = set.With(c)
			} else {
				set = set.Without(c)
			}
		}
		merged[accountType] = set
	}

	return merged, nil
}

// LoadMatrix builds the permission matrix from the defaults and the override
// file at path. A missing or unparseable file yields the defaults; a file
// that parses but names unknown types or capabilities is an error.
func LoadMatrix(path string, log zerolog.Logger) (Matrix, Overrides, error) {
	if path == "" {
		return DefaultMatrix(), nil, nil
	}

	overrides, err := readOverrides(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Info().Str("path", path).Msg("roles override not found, using default permissions")
		} else {
			log.Warn().Err(err).Str("path", path).Msg("roles override unreadable, using default permissions")
		}
		return DefaultMatrix(), nil, nil
	}

	matrix, err := Merge(DefaultMatrix(), overrides)
	if err != nil {
		return nil, nil, err
	}

	log.Info().Str("path", path).Int("types", len(overrides)).Msg("roles override loaded")
	return matrix, overrides, nil
}

func readOverrides(path string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Entries whose value is not an object are ignored and keep defaults.
	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	}

	overrides := make(Overrides, len(raw))
	for typeKey, value := range raw {
		flags, ok := value.(map[string]any)
		if !ok {
			continue
		}
		parsed := make(map[string]bool, len(flags))
		for name, v := range flags {
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("%s.%s: expected boolean, got %T", typeKey, name, v)
			}
			parsed[name] = b
		}
		overrides[typeKey] = parsed
	}
	return overrides, nil
}
