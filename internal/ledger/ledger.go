// =============================================================================
// Concourse - Ledger
// =============================================================================
//
// The ledger is the full record of one project: who takes part and which
// bills were recorded. It is plain data. The only behaviour it carries is
// the bookkeeping the data-entry side needs (add, edit and remove bills and
// participants) plus validation of the invariants every calculation relies
// on:
//
//   - every participant named inside a bill is a member of the ledger
//   - payments are non-negative
//   - the shares of one bill sum to 1 within the share tolerance
//
// =============================================================================

package ledger

import (
	"sort"
	"strings"

	"github.com/ginjaninja78/concourse/internal/money"
	"github.com/shopspring/decimal"
)

// DefaultPrecision is the number of minor-unit digits used when a ledger
// does not say otherwise.
const DefaultPrecision int32 = 2

// Participant identifies a member of the ledger.
type Participant string

// Record is what one participant paid towards a bill and the fraction of
// the bill they are responsible for.
type Record struct {
	Payment money.Amount
	Share   decimal.Decimal
}

// Bill is one recorded expense.
type Bill struct {
	ID      string
	Records map[Participant]Record
}

// NewBill creates an empty bill.
func NewBill(id string) *Bill {
	return &Bill{ID: id, Records: make(map[Participant]Record)}
}

// Set records the payment and share of p, replacing any earlier record.
func (b *Bill) Set(p Participant, payment money.Amount, share decimal.Decimal) *Bill {
	if b.Records == nil {
		b.Records = make(map[Participant]Record)
	}
	b.Records[p] = Record{Payment: payment, Share: share}
	return b
}

// Total is the sum of all payments made towards the bill.
func (b *Bill) Total() money.Amount {
	var total money.Amount
	for _, r := range b.Records {
		total += r.Payment
	}
	return total
}

// ShareSum is the sum of all recorded shares.
func (b *Bill) ShareSum() decimal.Decimal {
	sum := decimal.Zero
	for _, r := range b.Records {
		sum = sum.Add(r.Share)
	}
	return sum
}

// Participants returns the participants recorded on the bill, sorted.
func (b *Bill) Participants() []Participant {
	out := make([]Participant, 0, len(b.Records))
	for p := range b.Records {
		out = append(out, p)
	}
	sortParticipants(out)
	return out
}

// Clone returns a deep copy of the bill.
func (b *Bill) Clone() *Bill {
	c := NewBill(b.ID)
	for p, r := range b.Records {
		c.Records[p] = r
	}
	return c
}

// EqualShares returns n shares of 1/n whose sum is exactly one. The
// rounding remainder is carried by the last share.
func EqualShares(n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}

	shares := make([]decimal.Decimal, n)
	one := decimal.NewFromInt(1)
	part := one.DivRound(decimal.NewFromInt(int64(n)), 12)

	for i := 0; i < n-1; i++ {
		shares[i] = part
	}
	shares[n-1] = one.Sub(part.Mul(decimal.NewFromInt(int64(n - 1))))

	return shares
}

// NewEqualBill builds a bill whose cost is split evenly across participants.
// Payments missing from the map count as zero.
func NewEqualBill(id string, participants []Participant, payments map[Participant]money.Amount) *Bill {
	b := NewBill(id)
	shares := EqualShares(len(participants))
	for i, p := range participants {
		b.Set(p, payments[p], shares[i])
	}
	return b
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger holds the participants and bills of one project.
//
// Participants keeps insertion order for display; set semantics are enforced
// by the mutation methods and checked by Validate.
type Ledger struct {
	Name         string
	Precision    int32
	Participants []Participant
	Bills        map[string]*Bill
}

// New creates a ledger with the given participants.
func New(name string, precision int32, participants ...Participant) (*Ledger, error) {
	l := &Ledger{
		Name:      name,
		Precision: precision,
		Bills:     make(map[string]*Bill),
	}

	for _, p := range participants {
		if err := l.AddParticipant(p); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// HasParticipant reports whether p is a member of the ledger.
func (l *Ledger) HasParticipant(p Participant) bool {
	for _, existing := range l.Participants {
		if existing == p {
			return true
		}
	}
	return false
}

// AddParticipant adds p to the ledger.
func (l *Ledger) AddParticipant(p Participant) error {
	if strings.TrimSpace(string(p)) == "" {
		return &InvalidParticipantError{Participant: p}
	}
	if l.HasParticipant(p) {
		return &DuplicateParticipantError{Participant: p}
	}

	l.Participants = append(l.Participants, p)
	return nil
}

// RemoveParticipant removes p. It fails while any bill still references p.
func (l *Ledger) RemoveParticipant(p Participant) error {
	if !l.HasParticipant(p) {
		return &UnknownParticipantError{Participant: p}
	}

	for _, id := range l.BillIDs() {
		if _, ok := l.Bills[id].Records[p]; ok {
			return &ParticipantInUseError{Participant: p, BillID: id}
		}
	}

	kept := l.Participants[:0]
	for _, existing := range l.Participants {
		if existing != p {
			kept = append(kept, existing)
		}
	}
	l.Participants = kept

	return nil
}

// AddBill adds a new bill. The bill id must not be taken.
func (l *Ledger) AddBill(b *Bill) error {
	if strings.TrimSpace(b.ID) == "" {
		return &InvalidBillError{BillID: b.ID}
	}
	if _, exists := l.Bills[b.ID]; exists {
		return &DuplicateBillError{BillID: b.ID}
	}

	l.PutBill(b)
	return nil
}

// PutBill adds b or replaces the bill with the same id.
func (l *Ledger) PutBill(b *Bill) {
	if l.Bills == nil {
		l.Bills = make(map[string]*Bill)
	}
	l.Bills[b.ID] = b
}

// RemoveBill deletes the bill with the given id.
func (l *Ledger) RemoveBill(id string) error {
	if _, exists := l.Bills[id]; !exists {
		return &UnknownBillError{BillID: id}
	}
	delete(l.Bills, id)
	return nil
}

// Bill returns the bill with the given id.
func (l *Ledger) Bill(id string) (*Bill, bool) {
	b, ok := l.Bills[id]
	return b, ok
}

// BillIDs returns all bill ids, sorted.
func (l *Ledger) BillIDs() []string {
	ids := make([]string, 0, len(l.Bills))
	for id := range l.Bills {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	c := &Ledger{
		Name:         l.Name,
		Precision:    l.Precision,
		Participants: append([]Participant(nil), l.Participants...),
		Bills:        make(map[string]*Bill, len(l.Bills)),
	}
	for id, b := range l.Bills {
		c.Bills[id] = b.Clone()
	}
	return c
}

// SortParticipants sorts ps by identifier in place.
func SortParticipants(ps []Participant) {
	sortParticipants(ps)
}

func sortParticipants(ps []Participant) {
	sort.Slice(ps, func(i, j int) bool { return ps[i] < ps[j] })
}
