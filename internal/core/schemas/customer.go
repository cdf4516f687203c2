package schemas

import (
	"fmt"
	"time"

	"github.com/JonMunkholm/ispcrm/internal/core"
)

func init() {
	registerCustomer()
}

func registerCustomer() {
	core.Register(core.ImportSchema{
		Entity:    Customer,
		Label:     "Customers",
		Table:     "customers",
		SheetName: "Customers",
		Fields: []core.FieldSpec{
			{Name: "customerCode", Type: core.FieldText, Aliases: []string{"Customer Code", "Code"}, Trim: true},
			{Name: "fullName", Type: core.FieldText, Aliases: []string{"Full Name", "Name"}, Trim: true, Rules: "max=200"},
			{Name: "contactNumber", Type: core.FieldText, Aliases: []string{"Contact Number", "Phone", "Mobile"}, Trim: true, Rules: "max=20"},
			{Name: "email", Type: core.FieldText, Aliases: []string{"Email", "E-mail"}, Trim: true, Rules: "omitempty,email"},
			{Name: "address", Type: core.FieldText, Aliases: []string{"Address"}},
			{Name: "servicesType", Type: core.FieldText, Aliases: []string{"Services Type", "Service Type"}},
			{Name: "paymentMode", Type: core.FieldText, Aliases: []string{"Payment Mode"}},
			{Name: "connectionStatus", Type: core.FieldText, Aliases: []string{"Connection Status", "Status"}, Default: "Active"},
			{Name: "installDate", Type: core.FieldDate, Aliases: []string{"Install Date", "Installation Date"}},
		},
		Identity: "contactNumber",
		Match: []core.MatchStrategy{
			{"customerCode"},
			{"contactNumber"},
		},
		Code: &core.CodeRule{Field: "customerCode", Format: "CUST-%04d"},
		Export: []core.ExportColumn{
			{Field: "customerCode", Header: "Customer Code", Width: 20},
			{Field: "fullName", Header: "Full Name", Width: 25},
			{Field: "contactNumber", Header: "Contact Number", Width: 15},
			{Field: "email", Header: "Email", Width: 30},
			{Field: "address", Header: "Address", Width: 40},
			{Field: "servicesType", Header: "Services Type", Width: 20},
			{Field: "paymentMode", Header: "Payment Mode", Width: 15},
			{Field: "connectionStatus", Header: "Connection Status", Width: 15},
			{Field: "installDate", Header: "Install Date", Width: 15},
		},
		FileName: customerFileName,
	})
}

// customerFileName is Customers_All_<yyyy-mm-dd>.xlsx.
func customerFileName(_ core.ExportRequest, now time.Time) string {
	return fmt.Sprintf("Customers_All_%s.xlsx", now.Format("2006-01-02"))
}
