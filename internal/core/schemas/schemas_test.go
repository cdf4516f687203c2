package schemas

import (
	"testing"
	"time"

	"github.com/JonMunkholm/ispcrm/internal/core"
	"github.com/shopspring/decimal"
)

func mustSchema(t *testing.T, entity string) *core.ImportSchema {
	t.Helper()
	s, err := core.Lookup(entity)
	if err != nil {
		t.Fatalf("Lookup(%q): %v", entity, err)
	}
	return s
}

func TestRegisteredSchemas(t *testing.T) {
	tests := []struct {
		entity   string
		scoped   bool
		param    string
		identity string
	}{
		{entity: LoadShare, scoped: true, param: "clusterId", identity: "rtNumber"},
		{entity: OtherClientSite, scoped: true, param: "groupId", identity: "site"},
		{entity: Customer, scoped: false, identity: "contactNumber"},
	}

	for _, tt := range tests {
		t.Run(tt.entity, func(t *testing.T) {
			s := mustSchema(t, tt.entity)
			if s.Scoped() != tt.scoped {
				t.Fatalf("Scoped() = %v, want %v", s.Scoped(), tt.scoped)
			}
			if tt.scoped && s.Scope.Param != tt.param {
				t.Errorf("Scope.Param = %q, want %q", s.Scope.Param, tt.param)
			}
			if s.Identity != tt.identity {
				t.Errorf("Identity = %q, want %q", s.Identity, tt.identity)
			}
		})
	}
}

// Every exported header must bind back to its own field, or an exported
// file could not be re-imported.
func TestExportHeadersResolve(t *testing.T) {
	for _, s := range core.All() {
		t.Run(s.Entity, func(t *testing.T) {
			headers := make([]string, len(s.Export))
			for i, c := range s.Export {
				headers[i] = c.Header
			}
			b := core.BindHeaders(headers, s.Aliases())

			for i, c := range s.Export {
				f, _ := s.Field(c.Field)
				col, ok := b.Column(c.Field)
				if f.Computed {
					if ok {
						t.Errorf("computed field %s bound to column %d", c.Field, col)
					}
					continue
				}
				if !ok || col != i {
					t.Errorf("header %q: field %s bound to %d (%v), want %d", c.Header, c.Field, col, ok, i)
				}
			}
		})
	}
}

func TestOtherClientHeaderVariants(t *testing.T) {
	s := mustSchema(t, OtherClientSite)

	tests := []struct {
		name   string
		header string
		field  string
	}{
		{name: "typo with line break", header: "Installtion\nDate", field: "installationDate"},
		{name: "corrected spelling", header: "Installation Date", field: "installationDate"},
		{name: "upper with double space", header: "INSTALLATION  DATE", field: "installationDate"},
		{name: "indented dispatch", header: "DISPATCH \n   DATE", field: "dispatchDate"},
		{name: "leading space isp", header: " ISP 2", field: "isp2"},
		{name: "multi-line bill header", header: "PREVIOUS\nINTERNET BILL\nRECEIVED", field: "prevBillReceived"},
		{name: "lower case sim", header: "sim no", field: "simNo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := core.BindHeaders([]string{"junk", tt.header}, s.Aliases())
			col, ok := b.Column(tt.field)
			if !ok || col != 1 {
				t.Errorf("header %q: %s bound to %d (%v), want 1", tt.header, tt.field, col, ok)
			}
		})
	}
}

func TestLoadShareNormalize(t *testing.T) {
	s := mustSchema(t, LoadShare)

	rec := s.Normalize(map[string]any{
		"rtNumber":            "  RT-100 ",
		"invoice":             float64(1023),
		"state":               "mh",
		"internetCharges":     "1,000",
		"installationCharges": 200.0,
		"gstPercent":          "18",
		"activationDate":      float64(45678),
		"validity":            "30",
	})

	if rec["rtNumber"] != "RT-100" {
		t.Errorf("rtNumber = %q", rec["rtNumber"])
	}
	if rec["invoice"] != "INV-1023" {
		t.Errorf("invoice = %q, want INV-1023", rec["invoice"])
	}
	if rec["state"] != "Maharashtra" {
		t.Errorf("state = %q, want Maharashtra", rec["state"])
	}
	if rec["address"] != "-" {
		t.Errorf("address = %q, want -", rec["address"])
	}
	if rec["status"] != "Active" {
		t.Errorf("status = %q, want Active", rec["status"])
	}
	if rec["validity"] != int64(30) {
		t.Errorf("validity = %#v, want 30", rec["validity"])
	}
	if got := rec["gstAmount"].(decimal.Decimal); !got.Equal(decimal.NewFromInt(180)) {
		t.Errorf("gstAmount = %s, want 180", got)
	}
	if got := rec["totalPayable"].(decimal.Decimal); !got.Equal(decimal.NewFromInt(1380)) {
		t.Errorf("totalPayable = %s, want 1380", got)
	}
	want := time.Date(2025, time.January, 21, 0, 0, 0, 0, time.UTC)
	if got, _ := rec["activationDate"].(time.Time); !got.Equal(want) {
		t.Errorf("activationDate = %v, want %v", rec["activationDate"], want)
	}
	if rec["expiryDate"] != nil {
		t.Errorf("expiryDate = %v, want nil", rec["expiryDate"])
	}
}

func TestNormalizeInvoice(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "1023", want: "INV-1023"},
		{input: " 77 ", want: "INV-77"},
		{input: "12.5", want: "INV-12.5"},
		{input: "INV-9", want: "INV-9"},
		{input: "  A/22  ", want: "A/22"},
		{input: "NaN", want: "NaN"},
	}
	for _, tt := range tests {
		if got := NormalizeInvoice(tt.input); got != tt.want {
			t.Errorf("NormalizeInvoice(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeInState(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "KA", want: "Karnataka"},
		{input: " tn ", want: "Tamil Nadu"},
		{input: "west bengal", want: "West Bengal"},
		{input: "Karnataka", want: "Karnataka"},
		{input: "Atlantis", want: "Atlantis"},
	}
	for _, tt := range tests {
		if got := NormalizeInState(tt.input); got != tt.want {
			t.Errorf("NormalizeInState(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestExportFileNames(t *testing.T) {
	now := time.Date(2025, time.March, 15, 9, 30, 0, 0, time.UTC)
	jan := time.January

	tests := []struct {
		name   string
		entity string
		req    core.ExportRequest
		want   string
	}{
		{name: "loadshare all", entity: LoadShare, req: core.ExportRequest{Scope: "c1"}, want: "LoadShare_All_2025-03-15.xlsx"},
		{name: "loadshare month", entity: LoadShare, req: core.ExportRequest{Scope: "c1", Month: &jan}, want: "LoadShare_Jan_2025-03-15.xlsx"},
		{name: "other clients", entity: OtherClientSite, req: core.ExportRequest{Scope: "g7"}, want: "OtherClientSites_g7_1742031000000.xlsx"},
		{name: "customers", entity: Customer, want: "Customers_All_2025-03-15.xlsx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustSchema(t, tt.entity)
			if got := s.FileName(tt.req, now); got != tt.want {
				t.Errorf("FileName() = %q, want %q", got, tt.want)
			}
		})
	}
}
