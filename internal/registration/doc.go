// Package registration provides the account-registration pipeline.
//
// A [Batch] reads raw rows from a [RowSource], validates each one against
// static field rules and the uniqueness sets accumulated so far, and turns
// every accepted row into a [UserRecord] with a lazily generated account
// number. The batch is independent of any transport: the CLI, the HTTP
// service and tests all drive it the same way.
//
// # Row layout
//
// Every source starts with a header row which is skipped. Data rows are read
// positionally:
//
//	first name, middle name, last name, phone number, social id
//
// # Validation
//
//   - First and last name: non-empty after trimming, not entirely numeric.
//   - Phone number: exactly 10 digits, not already known.
//   - Social id: exactly 9 digits, not already known.
//   - Middle name: never validated.
//
// Rejected rows only bump a counter and are recorded in [Summary.FailedRows];
// they never surface as errors.
//
// # Account numbers
//
// Account numbers have the form "IB" + ddmmyy + an 8-digit random suffix in
// [10000000, 99999999]. No collision check is performed against numbers
// already issued.
package registration
