package schemas

import (
	"fmt"
	"time"

	"github.com/JonMunkholm/ispcrm/internal/core"
)

func init() {
	registerLoadShare()
}

func registerLoadShare() {
	core.Register(core.ImportSchema{
		Entity:    LoadShare,
		Label:     "Load Share",
		Table:     "load_shares",
		SheetName: "LoadShare",
		Scope: &core.Scope{
			Param:  "clusterId",
			Column: "cluster_id",
			Parent: "clusters",
		},
		Fields: []core.FieldSpec{
			{Name: "rtNumber", Type: core.FieldText, Aliases: []string{"RT number", "RT No", "RT"}, Trim: true, Rules: "max=64"},
			{Name: "nameOfLocation", Type: core.FieldText, Aliases: []string{"Name of Location", "Location"}},
			{Name: "address", Type: core.FieldText, Aliases: []string{"Address"}, Default: "-"},
			{Name: "state", Type: core.FieldText, Aliases: []string{"State"}, Normalizer: NormalizeInState},
			{Name: "circuitId", Type: core.FieldText, Aliases: []string{"Circuit ID"}, Trim: true},
			{Name: "isp", Type: core.FieldText, Aliases: []string{"ISP"}},
			{Name: "invoice", Type: core.FieldText, Aliases: []string{"Invoice #", "Invoice"}, Normalizer: NormalizeInvoice},
			{Name: "speed", Type: core.FieldText, Aliases: []string{"Speed"}},
			{Name: "status", Type: core.FieldText, Aliases: []string{"Status"}, Default: "Active"},
			{Name: "validity", Type: core.FieldInt, Aliases: []string{"Validity"}, Rules: "gte=0"},
			{Name: "paidBy", Type: core.FieldText, Aliases: []string{"Paid by"}},
			{Name: "activationDate", Type: core.FieldDate, Aliases: []string{"Activation Date"}},
			{Name: "expiryDate", Type: core.FieldDate, Aliases: []string{"Expiry Date"}},
			{Name: "installationCharges", Type: core.FieldDecimal, Aliases: []string{"Installation Charges"}},
			{Name: "internetCharges", Type: core.FieldDecimal, Aliases: []string{"Internet charges"}},
			{Name: "gstPercent", Type: core.FieldDecimal, Aliases: []string{"GST", "GST %"}},
			{Name: "gstAmount", Type: core.FieldDecimal, Computed: true},
			{Name: "totalPayable", Type: core.FieldDecimal, Computed: true},
			{Name: "month", Type: core.FieldText, Aliases: []string{"Month"}},
			{Name: "requestedBy", Type: core.FieldText, Aliases: []string{"Requested By"}},
			{Name: "approvedFrom", Type: core.FieldText, Aliases: []string{"Approved from"}},
			{Name: "wifiOrNumber", Type: core.FieldText, Aliases: []string{"Wifi / Number"}},
			{Name: "hubSpocName", Type: core.FieldText, Aliases: []string{"Hub SPOC name"}},
			{Name: "hubSpocNumber", Type: core.FieldText, Aliases: []string{"Hub SPOC number"}},
		},
		Identity: "rtNumber",
		Match:    []core.MatchStrategy{{"rtNumber"}},
		Derived: &core.DerivedRule{
			Base:      "internetCharges",
			Secondary: "installationCharges",
			Percent:   "gstPercent",
			Amount:    "gstAmount",
			Total:     "totalPayable",
		},
		Export: []core.ExportColumn{
			{Field: "rtNumber", Header: "RT number", Width: 15},
			{Field: "nameOfLocation", Header: "Name of Location", Width: 30},
			{Field: "address", Header: "Address", Width: 40},
			{Field: "state", Header: "State", Width: 15},
			{Field: "circuitId", Header: "Circuit ID", Width: 20},
			{Field: "isp", Header: "ISP", Width: 15},
			{Field: "invoice", Header: "Invoice #", Width: 15},
			{Field: "speed", Header: "Speed", Width: 12},
			{Field: "status", Header: "Status", Width: 12},
			{Field: "validity", Header: "Validity", Width: 10},
			{Field: "paidBy", Header: "Paid by", Width: 15},
			{Field: "activationDate", Header: "Activation Date", Width: 15},
			{Field: "expiryDate", Header: "Expiry Date", Width: 15},
			{Field: "installationCharges", Header: "Installation Charges", Width: 18},
			{Field: "internetCharges", Header: "Internet charges", Width: 16},
			{Field: "gstPercent", Header: "GST", Width: 8},
			{Field: "gstAmount", Header: "GST Amount", Width: 12},
			{Field: "totalPayable", Header: "Total Payable", Width: 14},
			{Field: "month", Header: "Month", Width: 10},
			{Field: "requestedBy", Header: "Requested By", Width: 18},
			{Field: "approvedFrom", Header: "Approved from", Width: 18},
			{Field: "wifiOrNumber", Header: "Wifi / Number", Width: 18},
			{Field: "hubSpocName", Header: "Hub SPOC name", Width: 20},
			{Field: "hubSpocNumber", Header: "Hub SPOC number", Width: 18},
		},
		MonthField: "activationDate",
		Expiry: &core.ExpiryRule{
			DateField:   "expiryDate",
			StatusField: "status",
			Status:      "Expired",
		},
		FileName: loadShareFileName,
	})
}

// loadShareFileName is LoadShare_<Mon|All>_<yyyy-mm-dd>.xlsx.
func loadShareFileName(req core.ExportRequest, now time.Time) string {
	period := "All"
	if req.Month != nil {
		period = req.Month.String()[:3]
	}
	return fmt.Sprintf("LoadShare_%s_%s.xlsx", period, now.Format("2006-01-02"))
}
