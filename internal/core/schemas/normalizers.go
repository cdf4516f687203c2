package schemas

import (
	"math"
	"strconv"
	"strings"
)

// InStates maps Indian state and union territory codes to their names.
var InStates = map[string]string{
	"AN": "Andaman and Nicobar Islands",
	"AP": "Andhra Pradesh",
	"AR": "Arunachal Pradesh",
	"AS": "Assam",
	"BR": "Bihar",
	"CH": "Chandigarh",
	"CG": "Chhattisgarh",
	"DN": "Dadra and Nagar Haveli and Daman and Diu",
	"DL": "Delhi",
	"GA": "Goa",
	"GJ": "Gujarat",
	"HR": "Haryana",
	"HP": "Himachal Pradesh",
	"JK": "Jammu and Kashmir",
	"JH": "Jharkhand",
	"KA": "Karnataka",
	"KL": "Kerala",
	"LA": "Ladakh",
	"LD": "Lakshadweep",
	"MP": "Madhya Pradesh",
	"MH": "Maharashtra",
	"MN": "Manipur",
	"ML": "Meghalaya",
	"MZ": "Mizoram",
	"NL": "Nagaland",
	"OD": "Odisha",
	"PY": "Puducherry",
	"PB": "Punjab",
	"RJ": "Rajasthan",
	"SK": "Sikkim",
	"TN": "Tamil Nadu",
	"TS": "Telangana",
	"TR": "Tripura",
	"UP": "Uttar Pradesh",
	"UK": "Uttarakhand",
	"WB": "West Bengal",
}

// NormalizeInState converts a state code or a differently cased state name
// to the canonical name.
// If the input is not recognized, returns it trimmed.
func NormalizeInState(s string) string {
	s = strings.TrimSpace(s)

	if name, ok := InStates[strings.ToUpper(s)]; ok {
		return name
	}

	for _, name := range InStates {
		if strings.EqualFold(s, name) {
			return name
		}
	}

	return s
}

// NormalizeInvoice prefixes bare invoice numbers: 1023 becomes "INV-1023".
// Anything else is kept, trimmed.
func NormalizeInvoice(s string) string {
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return s
	}
	return "INV-" + strconv.FormatFloat(f, 'f', -1, 64)
}
