package schemas

import (
	"fmt"
	"time"

	"github.com/JonMunkholm/ispcrm/internal/core"
)

func init() {
	registerOtherClientSite()
}

// Site sheets come from several client templates whose headers carry stray
// line breaks and typos, so most fields list both spellings.
func registerOtherClientSite() {
	core.Register(core.ImportSchema{
		Entity:    OtherClientSite,
		Label:     "Other Client Sites",
		Table:     "other_client_sites",
		SheetName: "OtherClientSites",
		Scope: &core.Scope{
			Param:  "groupId",
			Column: "group_id",
			Parent: "client_groups",
		},
		Fields: []core.FieldSpec{
			{Name: "site", Type: core.FieldText, Aliases: []string{"SITE", "Site Name"}, Trim: true, Rules: "max=128"},
			{Name: "publicIp1", Type: core.FieldText, Aliases: []string{"PUBLIC IP1", "PUBLIC IP 1"}, Trim: true, Rules: "omitempty,ip"},
			{Name: "publicIp2", Type: core.FieldText, Aliases: []string{"PUBLIC IP2", "PUBLIC IP 2"}, Trim: true, Rules: "omitempty,ip"},
			{Name: "isp1", Type: core.FieldText, Aliases: []string{"ISP 1", "ISP1"}},
			{Name: "isp2", Type: core.FieldText, Aliases: []string{" ISP 2", "ISP 2", "ISP2"}},
			{Name: "lanIp", Type: core.FieldText, Aliases: []string{"LAN-IP", "LAN IP"}, Trim: true},
			{Name: "remarks", Type: core.FieldText, Aliases: []string{"REMARKS"}},
			{Name: "macId", Type: core.FieldText, Aliases: []string{"MAC ID"}, Trim: true},
			{Name: "landlineWifiId", Type: core.FieldText, Aliases: []string{"LANDLINE & WIFI ID\n", "LANDLINE & WIFI ID"}},
			{Name: "speedMbps", Type: core.FieldText, Aliases: []string{"Speed mbps"}},
			{Name: "internetInstallation", Type: core.FieldText, Aliases: []string{"INTERNET\n INSTALLATION", "INTERNET INSTALLATION"}},
			{Name: "prevBillReceived", Type: core.FieldText, Aliases: []string{"PREVIOUS\nINTERNET BILL\nRECEIVED", "PREVIOUS INTERNET BILL RECEIVED"}},
			{Name: "dispatchDate", Type: core.FieldDate, Aliases: []string{"DISPATCH \n   DATE", "DISPATCH DATE"}},
			{Name: "reachedDayDate", Type: core.FieldDate, Aliases: []string{"Reached \n   DAY", "Reached DAY"}},
			{Name: "installationDate", Type: core.FieldDate, Aliases: []string{"Installtion\nDate", "Installtion Date", "Installation Date"}},
			{Name: "aValue", Type: core.FieldText, Aliases: []string{"A"}},
			{Name: "contactNo", Type: core.FieldText, Aliases: []string{"Spoke \n contact\n  No.", "Spoke contact No."}, Trim: true},
			{Name: "dvrConnected", Type: core.FieldText, Aliases: []string{"DVR Connected"}},
			{Name: "simNo", Type: core.FieldText, Aliases: []string{"SIM NO", "SIM NUMBER"}, Trim: true},
			{Name: "deviceName", Type: core.FieldText, Aliases: []string{"Device Name"}},
			{Name: "deviceLicense", Type: core.FieldText, Aliases: []string{"Device License"}},
		},
		Identity: "site",
		Match: []core.MatchStrategy{
			{"simNo"},
			{"site"},
			{"site", "lanIp"},
		},
		Export: []core.ExportColumn{
			{Field: "site", Header: "SITE", Width: 25},
			{Field: "publicIp1", Header: "PUBLIC IP1", Width: 16},
			{Field: "publicIp2", Header: "PUBLIC IP2", Width: 16},
			{Field: "isp1", Header: "ISP 1", Width: 15},
			{Field: "isp2", Header: "ISP 2", Width: 15},
			{Field: "lanIp", Header: "LAN-IP", Width: 16},
			{Field: "remarks", Header: "REMARKS", Width: 30},
			{Field: "macId", Header: "MAC ID", Width: 20},
			{Field: "landlineWifiId", Header: "LANDLINE & WIFI ID", Width: 20},
			{Field: "speedMbps", Header: "Speed mbps", Width: 12},
			{Field: "internetInstallation", Header: "INTERNET INSTALLATION", Width: 20},
			{Field: "prevBillReceived", Header: "PREVIOUS INTERNET BILL RECEIVED", Width: 20},
			{Field: "dispatchDate", Header: "DISPATCH DATE", Width: 15},
			{Field: "reachedDayDate", Header: "Reached DAY", Width: 15},
			{Field: "installationDate", Header: "Installtion Date", Width: 15},
			{Field: "aValue", Header: "A", Width: 8},
			{Field: "contactNo", Header: "Spoke contact No.", Width: 16},
			{Field: "dvrConnected", Header: "DVR Connected", Width: 14},
			{Field: "simNo", Header: "SIM NO", Width: 20},
			{Field: "deviceName", Header: "Device Name", Width: 20},
			{Field: "deviceLicense", Header: "Device License", Width: 20},
		},
		FileName: otherClientFileName,
	})
}

// otherClientFileName is OtherClientSites_<groupId>_<unix-ms>.xlsx.
func otherClientFileName(req core.ExportRequest, now time.Time) string {
	return fmt.Sprintf("OtherClientSites_%s_%d.xlsx", req.Scope, now.UnixMilli())
}
