package table

import "strings"

const (
	ColumnNoteDate  = "Day of Case Note"
	ColumnCaseNotes = "Case Notes"
)

// Schema describes one program sheet.
type Schema struct {
	Program            string
	Sheet              string
	EntityColumn       string
	ReferralDateColumn string
	DateColumns        []string
	ProfileColumns     []string
	ReferralColumns    []string
	ReferralTypes      []string
}

var GRIT = Schema{
	Program:            "GRIT",
	Sheet:              "GRIT",
	EntityColumn:       "Youth Name",
	ReferralDateColumn: "Date",
	DateColumns:        []string{"Date", ColumnNoteDate},
	ProfileColumns:     []string{"Youth Name", "Date", "Referring Agent", "Agency", "DOB/Age"},
	ReferralColumns: []string{
		"Youth Name", "Date", "Referring Agent", "Agency", "DOB/Age",
		ColumnNoteDate, ColumnCaseNotes,
	},
}

var IPE = Schema{
	Program:            "IPE",
	Sheet:              "IPE",
	EntityColumn:       "Name of Client",
	ReferralDateColumn: "Date Received",
	DateColumns:        []string{"Date Received", ColumnNoteDate},
	ProfileColumns: []string{
		"Name of Client", "Type", "Referral Agent", "Date Received", "Service End Date",
		"Consent Signed for GRIT/NVFS", "Case Manager", "Progress Reports Sent to Referring Agent/CM",
	},
	ReferralColumns: []string{
		"Name of Client", "Type", "Date Received", "Referral Agent",
		"Consent Signed for GRIT/NVFS", "Case Manager",
		"Progress Reports Sent to Referring Agent/CM", ColumnNoteDate, ColumnCaseNotes,
	},
	ReferralTypes: []string{"Second referral", "Referral to IPE and VPIP", "VPIP"},
}

// Programs lists every program in display order.
var Programs = []Schema{GRIT, IPE}

// SchemaFor looks a program up by name, ignoring case.
func SchemaFor(program string) (Schema, bool) {
	for _, s := range Programs {
		if strings.EqualFold(s.Program, program) {
			return s, true
		}
	}
	return Schema{}, false
}

func (s Schema) IsDateColumn(col string) bool {
	for _, c := range s.DateColumns {
		if c == col {
			return true
		}
	}
	return false
}

func (s Schema) AllowsReferralType(t string) bool {
	if len(s.ReferralTypes) == 0 {
		return true
	}
	for _, allowed := range s.ReferralTypes {
		if allowed == t {
			return true
		}
	}
	return false
}
