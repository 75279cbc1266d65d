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

// Allowlist is the set of emails trusted as administrators regardless of
// stored account type. It is loaded once and never mutated.
type Allowlist struct {
	emails map[string]struct{}
	source string
}

func NewAllowlist(emails ...string) *Allowlist {
	a := &Allowlist{emails: make(map[string]struct{}, len(emails))}
	for _, e := range emails {
		if e = models.NormalizeEmail(e); e != "" {
			a.emails[e] = struct{}{}
		}
	}
	return a
}

// LoadAllowlist reads the first existing file among candidates. Both
// {"admins": [...]} and a bare list are accepted. No file, or an unreadable
// one, yields an empty allowlist.
func LoadAllowlist(candidates []string, log zerolog.Logger) *Allowlist {
	for _, path := range candidates {
		if path == "" {
			continue
		}
		emails, err := readAllowlist(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("admin allowlist unreadable, admin list empty")
			return NewAllowlist()
		}

		a := NewAllowlist(emails...)
		a.source = path
		log.Info().Str("path", path).Int("admins", a.Len()).Msg("admin allowlist loaded")
		return a
	}

	log.Info().Strs("candidates", candidates).Msg("no admin allowlist found, admin list empty")
	return NewAllowlist()
}

func readAllowlist(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(jsonc.ToJSON(data), &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("parse allowlist: %w", err)
	}

	var list []any
	switch v := raw.(type) {
	case map[string]any:
		list, _ = v["admins"].([]any)
	case []any:
		list = v
	}

	emails := make([]string, 0, len(list))
	for _, item := range list {
		s := strings.TrimSpace(fmt.Sprint(item))
		if s != "" {
			emails = append(emails, s)
		}
	}
	return emails, nil
}

func (a *Allowlist) Contains(email string) bool {
	if a == nil {
		return false
	}
	_, ok := a.emails[models.NormalizeEmail(email)]
	return ok
}

func (a *Allowlist) Len() int {
	if a == nil {
		return 0
	}
	return len(a.emails)
}

// Source is the file the allowlist was read from, empty if none.
func (a *Allowlist) Source() string {
	if a == nil {
		return ""
	}
	return a.source
}
