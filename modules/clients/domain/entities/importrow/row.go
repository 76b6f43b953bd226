// Package importrow maps the positional client import layout to typed rows.
package importrow

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iota-uz/clientdesk/modules/clients/domain/entities/client"
	"github.com/iota-uz/clientdesk/pkg/constants"
	"github.com/iota-uz/clientdesk/pkg/csvio"
)

const (
	ColWorkspaceName = iota
	ColClientName
	ColTaxID
	ColRegistrationNumber
	ColContactName
	ColContactEmail
	ColContactPhone
	ColAddress
	ColCity
	ColNotes
	ColBankLogin
	ColBankPassword
	ColTaxPortalLogin
	ColTaxPortalPassword
	ColPayrollLogin
	ColPayrollPassword
	ColExternalID
	ColDriveFolder

	ColumnCount
)

var header = [ColumnCount]string{
	"Workspace",
	"Client name",
	"Tax ID",
	"Registration number",
	"Contact name",
	"Contact email",
	"Contact phone",
	"Address",
	"City",
	"Notes",
	"Bank login",
	"Bank password",
	"Tax portal login",
	"Tax portal password",
	"Payroll login",
	"Payroll password",
	"External ID",
	"Drive folder",
}

// Header returns the column labels in positional order.
func Header() []string {
	out := make([]string, ColumnCount)
	copy(out, header[:])
	return out
}

type Row struct {
	Line int `json:"line"`

	WorkspaceName      string `json:"workspace_name" validate:"max=200"`
	ClientName         string `json:"client_name" validate:"required,max=200"`
	TaxID              string `json:"tax_id,omitempty" validate:"max=64"`
	RegistrationNumber string `json:"registration_number,omitempty" validate:"max=64"`
	ContactName        string `json:"contact_name,omitempty"`
	ContactEmail       string `json:"contact_email,omitempty" validate:"omitempty,email"`
	ContactPhone       string `json:"contact_phone,omitempty"`
	Address            string `json:"address,omitempty"`
	City               string `json:"city,omitempty"`
	Notes              string `json:"notes,omitempty"`
	BankLogin          string `json:"bank_login,omitempty"`
	BankPassword       string `json:"-"`
	TaxPortalLogin     string `json:"tax_portal_login,omitempty"`
	TaxPortalPassword  string `json:"-"`
	PayrollLogin       string `json:"payroll_login,omitempty"`
	PayrollPassword    string `json:"-"`
	ExternalID         string `json:"external_id,omitempty"`
	DriveFolder        string `json:"drive_folder,omitempty"`
}

// FromRecord maps columns 0..17 of rec, trimming each value. Missing
// trailing columns are left empty.
func FromRecord(rec csvio.Record) Row {
	return Row{
		Line:               rec.Line,
		WorkspaceName:      rec.Field(ColWorkspaceName),
		ClientName:         rec.Field(ColClientName),
		TaxID:              rec.Field(ColTaxID),
		RegistrationNumber: rec.Field(ColRegistrationNumber),
		ContactName:        rec.Field(ColContactName),
		ContactEmail:       rec.Field(ColContactEmail),
		ContactPhone:       rec.Field(ColContactPhone),
		Address:            rec.Field(ColAddress),
		City:               rec.Field(ColCity),
		Notes:              rec.Field(ColNotes),
		BankLogin:          rec.Field(ColBankLogin),
		BankPassword:       rec.Field(ColBankPassword),
		TaxPortalLogin:     rec.Field(ColTaxPortalLogin),
		TaxPortalPassword:  rec.Field(ColTaxPortalPassword),
		PayrollLogin:       rec.Field(ColPayrollLogin),
		PayrollPassword:    rec.Field(ColPayrollPassword),
		ExternalID:         rec.Field(ColExternalID),
		DriveFolder:        rec.Field(ColDriveFolder),
	}
}

// Record renders the row in positional order.
func (r Row) Record() []string {
	return []string{
		r.WorkspaceName,
		r.ClientName,
		r.TaxID,
		r.RegistrationNumber,
		r.ContactName,
		r.ContactEmail,
		r.ContactPhone,
		r.Address,
		r.City,
		r.Notes,
		r.BankLogin,
		r.BankPassword,
		r.TaxPortalLogin,
		r.TaxPortalPassword,
		r.PayrollLogin,
		r.PayrollPassword,
		r.ExternalID,
		r.DriveFolder,
	}
}

// Parse reads an import file. The first non-blank line is a header and is
// ignored; rows without a client name are dropped.
func Parse(r io.Reader) ([]Row, error) {
	records, err := csvio.ReadRecords(r)
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []Row{}, nil
	}
	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := FromRecord(rec)
		if row.ClientName == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Serialize renders rows with the header as an import-compatible payload.
func Serialize(rows []Row) []byte {
	records := make([][]string, len(rows))
	for i, row := range rows {
		records[i] = row.Record()
	}
	return csvio.Serialize(Header(), records)
}

// Ok validates the row and returns field errors keyed by json name.
func (r *Row) Ok() (map[string]string, bool) {
	err := constants.Validate.Struct(r)
	if err == nil {
		return map[string]string{}, true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"row": err.Error()}, false
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[jsonName(fe.StructField())] = fmt.Sprintf("failed %q validation", fe.Tag())
	}
	return out, false
}

func jsonName(field string) string {
	f, ok := reflect.TypeOf(Row{}).FieldByName(field)
	if !ok {
		return field
	}
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return field
	}
	return name
}

// Details converts the row into client details. driveFolderID is the
// already extracted folder id.
func (r Row) Details(driveFolderID string) client.Details {
	return client.Details{
		Name:               r.ClientName,
		TaxID:              r.TaxID,
		RegistrationNumber: r.RegistrationNumber,
		Contact: client.Contact{
			Name:  r.ContactName,
			Email: r.ContactEmail,
			Phone: r.ContactPhone,
		},
		Address:       r.Address,
		City:          r.City,
		Notes:         r.Notes,
		ExternalID:    r.ExternalID,
		DriveFolderID: driveFolderID,
		Credentials: client.Credentials{
			Bank:      client.Login{Login: r.BankLogin, Password: r.BankPassword},
			TaxPortal: client.Login{Login: r.TaxPortalLogin, Password: r.TaxPortalPassword},
			Payroll:   client.Login{Login: r.PayrollLogin, Password: r.PayrollPassword},
		},
	}
}

// FromClient renders a stored client in import layout.
func FromClient(c client.Listed) Row {
	d := c.Details()
	return Row{
		WorkspaceName:      c.WorkspaceName,
		ClientName:         d.Name,
		TaxID:              d.TaxID,
		RegistrationNumber: d.RegistrationNumber,
		ContactName:        d.Contact.Name,
		ContactEmail:       d.Contact.Email,
		ContactPhone:       d.Contact.Phone,
		Address:            d.Address,
		City:               d.City,
		Notes:              d.Notes,
		BankLogin:          d.Credentials.Bank.Login,
		BankPassword:       d.Credentials.Bank.Password,
		TaxPortalLogin:     d.Credentials.TaxPortal.Login,
		TaxPortalPassword:  d.Credentials.TaxPortal.Password,
		PayrollLogin:       d.Credentials.Payroll.Login,
		PayrollPassword:    d.Credentials.Payroll.Password,
		ExternalID:         d.ExternalID,
		DriveFolder:        d.DriveFolderID,
	}
}
