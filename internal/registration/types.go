package registration

// Account is the summary view of one accepted record.
type Account struct {
	FullName      string `json:"fullName"`
	PhoneNumber   string `json:"phoneNumber"`
	SocialID      string `json:"socialId"`
	AccountNumber string `json:"accountNumber"`
}

// FailedRow describes a rejected data row.
type FailedRow struct {
	LineNumber int      `json:"lineNumber"` // file line where the record starts; header is line 1
	Reason     string   `json:"reason"`
	Data       []string `json:"data"`
}

// Summary is the aggregate result of a batch.
//
// NewAccounts holds structured objects rather than individually encoded
// strings.
type Summary struct {
	TotalRowsUpload int         `json:"totalRowsUpload"`
	TotalSuccess    int         `json:"totalSuccess"`
	TotalError      int         `json:"totalError"`
	NewAccounts     []Account   `json:"newAccounts"`
	FailedRows      []FailedRow `json:"failedRows,omitempty"`
}

// ExportHeader is the first row written by Batch.Export.
var ExportHeader = []string{"Full name", "Phone number", "Social ID", "Account number"}

// FailedExportHeader is the first row written by Batch.ExportFailed, followed
// by the original row cells.
var FailedExportHeader = []string{"Line", "Reason"}

// RowSource yields raw rows in file order and io.EOF when exhausted.
// *csv.Reader satisfies it.
type RowSource interface {
	Read() ([]string, error)
}

// RowSink accepts exported rows.
type RowSink interface {
	Write(record []string) error
}
