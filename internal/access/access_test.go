package access

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestDefaultMatrixCoversEveryAccountType(t *testing.T) {
	m := DefaultMatrix()
	for _, accountType := range models.AccountTypes() {
		set, ok := m[accountType]
		if !ok {
			t.Fatalf("no default row for %s", accountType)
		}
		if !set.Has(CapViewBasicDashboard) {
			t.Errorf("%s cannot view the basic dashboard", accountType)
		}
		if set.Has(CapAdmin) != accountType.IsAdministrator() {
			t.Errorf("%s: can_admin = %v", accountType, set.Has(CapAdmin))
		}
	}
	if m[models.AccountTypeAdministrator] != FullSet() {
		t.Error("administrator row is not the full set")
	}
	pending := m[models.AccountTypePending]
	if pending != NewSet(CapViewBasicDashboard) {
		t.Errorf("pending row = %v", pending.Names())
	}
}

func TestSetMapListsEveryCapability(t *testing.T) {
	got := NewSet(CapManageGames).Map()
	if len(got) != len(Capabilities()) {
		t.Fatalf("map has %d entries, want %d", len(got), len(Capabilities()))
	}
	if !got["can_manage_games"] || got["can_admin"] {
		t.Errorf("unexpected map %v", got)
	}

	raw, err := json.Marshal(NewSet(CapAdmin))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]bool
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded["can_admin"] || decoded["can_view_game_data"] {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestMergeIsShallowPerType(t *testing.T) {
	merged, err := Merge(DefaultMatrix(), Overrides{
		"PartnerAccount": {"can_view_products": true, "can_manage_games": false},
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	partner := merged[models.AccountTypePartner]
	if !partner.Has(CapViewProducts) {
		t.Error("override did not grant can_view_products")
	}
	if partner.Has(CapManageGames) {
		t.Error("override did not revoke can_manage_games")
	}
	if !partner.Has(CapViewGameData) {
		t.Error("absent key lost its default")
	}
	if merged[models.AccountTypeBusiness] != DefaultMatrix()[models.AccountTypeBusiness] {
		t.Error("unrelated type changed")
	}
}

func TestMergeRejectsUnknownKeys(t *testing.T) {
	if _, err := Merge(DefaultMatrix(), Overrides{"GhostAccount": {"can_admin": true}}); err == nil {
		t.Error("expected error for unknown account type")
	}
	if _, err := Merge(DefaultMatrix(), Overrides{"PartnerAccount": {"can_fly": true}}); err == nil {
		t.Error("expected error for unknown capability")
	}
}

func TestLoadMatrix(t *testing.T) {
	log := zerolog.Nop()
	dir := t.TempDir()

	t.Run("missing file yields defaults", func(t *testing.T) {
		m, overrides, err := LoadMatrix(filepath.Join(dir, "nope.json"), log)
		if err != nil {
			t.Fatalf("LoadMatrix: %v", err)
		}
		if overrides != nil {
			t.Error("expected no overrides")
		}
		if m[models.AccountTypePartner] != DefaultMatrix()[models.AccountTypePartner] {
			t.Error("expected default partner row")
		}
	})

	t.Run("malformed file yields defaults", func(t *testing.T) {
		path := writeFile(t, dir, "broken.json", `{"PartnerAccount": {`)
		m, _, err := LoadMatrix(path, log)
		if err != nil {
			t.Fatalf("LoadMatrix: %v", err)
		}
		if m[models.AccountTypePartner] != DefaultMatrix()[models.AccountTypePartner] {
			t.Error("expected default partner row")
		}
	})

	t.Run("json with comments", func(t *testing.T) {
		path := writeFile(t, dir, "roles.json", `{
			// partners may browse products
			"PartnerAccount": {"can_view_products": true},
			"BusinessAccount": "ignored",
		}`)
		m, overrides, err := LoadMatrix(path, log)
		if err != nil {
			t.Fatalf("LoadMatrix: %v", err)
		}
		if !m[models.AccountTypePartner].Has(CapViewProducts) {
			t.Error("override not applied")
		}
		if _, ok := overrides["BusinessAccount"]; ok {
			t.Error("non-object entry should be ignored")
		}
	})

	t.Run("yaml", func(t *testing.T) {
		path := writeFile(t, dir, "roles.yaml", "BrandAccount:\n  can_pay_for_products: false\n")
		m, _, err := LoadMatrix(path, log)
		if err != nil {
			t.Fatalf("LoadMatrix: %v", err)
		}
		if m[models.AccountTypeBrand].Has(CapPayForProducts) {
			t.Error("yaml override not applied")
		}
	})

	t.Run("unknown capability is fatal", func(t *testing.T) {
		path := writeFile(t, dir, "typo.json", `{"PartnerAccount": {"can_manage_game": true}}`)
		if _, _, err := LoadMatrix(path, log); err == nil {
			t.Error("expected error for misspelled capability")
		}
	})
}

func TestLoadAllowlist(t *testing.T) {
	log := zerolog.Nop()
	dir := t.TempDir()

	preferred := filepath.Join(dir, "config-admins.json")
	fallback := writeFile(t, dir, "admins.json", `["Fallback@Example.com"]`)

	a := LoadAllowlist([]string{preferred, fallback}, log)
	if a.Source() != fallback {
		t.Fatalf("source = %q, want fallback", a.Source())
	}
	if !a.Contains("fallback@example.com") {
		t.Error("fallback email not loaded")
	}

	writeFile(t, dir, "config-admins.json", `{"admins": [" Boss@Example.com ", ""]}`)
	a = LoadAllowlist([]string{preferred, fallback}, log)
	if a.Source() != preferred {
		t.Fatalf("source = %q, want preferred", a.Source())
	}
	if !a.Contains("BOSS@example.com") || a.Contains("fallback@example.com") {
		t.Error("first found file must win")
	}
	if a.Len() != 1 {
		t.Errorf("Len = %d, want 1", a.Len())
	}

	empty := LoadAllowlist([]string{filepath.Join(dir, "missing.json")}, log)
	if empty.Len() != 0 || empty.Source() != "" {
		t.Error("expected empty allowlist")
	}
}

func TestResolverAllowlistTakesPrecedence(t *testing.T) {
	r := NewResolver(DefaultMatrix(), nil, NewAllowlist("root@x.com"))

	for _, accountType := range models.AccountTypes() {
		if got := r.Resolve(accountType, "ROOT@x.com"); got != FullSet() {
			t.Errorf("allowlisted %s resolved to %v", accountType, got.Names())
		}
	}

	if r.Allowed(models.AccountTypePending, "someone@x.com", CapAdmin) {
		t.Error("pending account granted admin")
	}
	if r.Resolve(models.AccountType("Nonsense"), "someone@x.com") != 0 {
		t.Error("unknown type should resolve to the empty set")
	}

	if !r.IsProtected(models.AccountTypePending, "root@x.com") {
		t.Error("allowlisted account not protected")
	}
	if !r.IsProtected(models.AccountTypeAdministrator, "other@x.com") {
		t.Error("administrator account not protected")
	}
	if r.IsProtected(models.AccountTypeBrand, "other@x.com") {
		t.Error("brand account should not be protected")
	}
}

func TestResolverAllowlistBeatsRestrictiveOverride(t *testing.T) {
	merged, err := Merge(DefaultMatrix(), Overrides{
		string(models.AccountTypeAdministrator): {"can_admin": false},
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	r := NewResolver(merged, nil, NewAllowlist("root@x.com"))
	if !r.Allowed(models.AccountTypeAdministrator, "root@x.com", CapAdmin) {
		t.Error("allowlist must win over overrides")
	}
	if r.Allowed(models.AccountTypeAdministrator, "other@x.com", CapAdmin) {
		t.Error("override should apply to non-allowlisted administrators")
	}
}
