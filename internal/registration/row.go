package registration

// Positions of the fields in a raw row.
const (
	FirstNameIndex = iota
	MiddleNameIndex
	LastNameIndex
	PhoneNumberIndex
	SocialIDIndex
)

// RawRow is one data row as yielded by a record source.
// Missing trailing cells read as empty strings.
type RawRow []string

func (r RawRow) cell(i int) string {
	if i < len(r) {
		return r[i]
	}
	return ""
}

func (r RawRow) FirstName() string   { return r.cell(FirstNameIndex) }
func (r RawRow) MiddleName() string  { return r.cell(MiddleNameIndex) }
func (r RawRow) LastName() string    { return r.cell(LastNameIndex) }
func (r RawRow) PhoneNumber() string { return r.cell(PhoneNumberIndex) }
func (r RawRow) SocialID() string    { return r.cell(SocialIDIndex) }

// KnownSet is a uniqueness set of previously seen identifiers.
type KnownSet map[string]struct{}

// NewKnownSet builds a set from the given values.
func NewKnownSet(values ...string) KnownSet {
	s := make(KnownSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Has reports whether v is in the set. A nil set contains nothing.
func (s KnownSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Add inserts v into the set.
func (s KnownSet) Add(v string) {
	s[v] = struct{}{}
}

// Seed holds identifiers issued before the batch starts, e.g. by prior runs.
type Seed struct {
	PhoneNumbers []string
	SocialIDs    []string
}
