package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRegister_Defaults(t *testing.T) {
	sites, accounts := withTestSchemas(t)

	if sites.Table != "sites" || sites.SheetName != "Sites" {
		t.Errorf("table/sheet = %q/%q", sites.Table, sites.SheetName)
	}
	f, _ := sites.Field("lanIp")
	if f.DBColumn != "lan_ip" {
		t.Errorf("DBColumn = %q, want lan_ip", f.DBColumn)
	}
	if _, ok := sites.Aliases()["tax"]; ok {
		t.Error("computed field should have no aliases")
	}
	if all := All(); len(all) != 2 || all[0] != accounts {
		t.Errorf("All() not sorted by entity: %v", all)
	}
}

func TestRegister_Panics(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ImportSchema)
		want   string
	}{
		{name: "duplicate", mutate: func(*ImportSchema) {}, want: "already registered"},
		{name: "unknown identity", mutate: func(s *ImportSchema) { s.Entity = "x"; s.Identity = "nope" }, want: "identity"},
		{name: "unknown match field", mutate: func(s *ImportSchema) { s.Entity = "x"; s.Match = []MatchStrategy{{"nope"}} }, want: "match strategy"},
		{name: "unknown export field", mutate: func(s *ImportSchema) { s.Entity = "x"; s.Export = []ExportColumn{{Field: "nope"}} }, want: "export column"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withTestSchemas(t)
			s := siteSchema()
			tt.mutate(&s)

			defer func() {
				r := recover()
				if r == nil {
					t.Fatal("Register did not panic")
				}
				if msg, _ := r.(string); !strings.Contains(msg, tt.want) {
					t.Errorf("panic %q, want it to mention %q", r, tt.want)
				}
			}()
			Register(s)
		})
	}
}

func TestAddAliases(t *testing.T) {
	withTestSchemas(t)

	if err := AddAliases("sites", "tag", "Site Code", "Tag"); err != nil {
		t.Fatal(err)
	}
	sites, _ := Get("sites")
	f, _ := sites.Field("tag")
	if strings.Join(f.Aliases, "|") != "Tag|Site Tag|Site Code" {
		t.Errorf("aliases = %q", f.Aliases)
	}

	if err := AddAliases("sites", "tax", "Tax Amount"); err == nil {
		t.Error("expected error for computed field")
	}
	if err := AddAliases("sites", "nope", "x"); err == nil {
		t.Error("expected error for unknown field")
	}
	if err := AddAliases("nope", "tag", "x"); err == nil {
		t.Error("expected error for unknown entity")
	}
}

func TestLoadAliasFile(t *testing.T) {
	withTestSchemas(t)

	path := filepath.Join(t.TempDir(), "aliases.yaml")
	doc := "sites:\n  tag: [\"RT No.\", \"Ref\"]\naccounts:\n  phone: [\"Mobile\"]\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	n, err := LoadAliasFile(path)
	if err != nil {
		t.Fatalf("LoadAliasFile: %v", err)
	}
	if n != 3 {
		t.Errorf("loaded %d aliases, want 3", n)
	}

	sites, _ := Get("sites")
	b := BindHeaders([]string{"rt no."}, sites.Aliases())
	if col, ok := b.Column("tag"); !ok || col != 0 {
		t.Errorf("override alias did not bind: %d, %v", col, ok)
	}

	if n, err := LoadAliasFile(""); n != 0 || err != nil {
		t.Errorf("empty path = %d, %v", n, err)
	}
	if _, err := ParseAliasOverrides([]byte("sites: [")); err == nil {
		t.Error("expected parse error")
	}
	bad := AliasOverrides{"sites": {"nope": {"x"}}}
	if err := bad.Apply(); err == nil {
		t.Error("expected apply error for unknown field")
	}
}
