// =============================================================================
// Concourse - Project State
// =============================================================================
//
// A project is saved as one JSON or YAML document:
//
//   name: ski-trip
//   precision: 2
//   participants: [alice, bob, carol]
//   bills:
//     dinner:
//       alice: {payment: "90.00", share: "0.333333333333"}
//       bob:   {payment: "0.00",  share: "0.333333333333"}
//       carol: {payment: "0.00",  share: "0.333333333334"}
//
// Amounts and shares are decimal strings so no value passes through a
// float. Load only checks structure (numbers parse, ids are present);
// ledger rules are left to ledger.Validate so every problem can be
// reported at once.
//
// =============================================================================

package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/concourse/internal/ledger"
	"github.com/ginjaninja78/concourse/internal/money"
	"github.com/ginjaninja78/concourse/pkg/utils"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a state file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// File is the on-disk shape of a project.
type File struct {
	Name         string                           `json:"name" yaml:"name"`
	Precision    *int32                           `json:"precision,omitempty" yaml:"precision,omitempty"`
	Participants []string                         `json:"participants" yaml:"participants"`
	Bills        map[string]map[string]RecordFile `json:"bills" yaml:"bills"`
}

// RecordFile is one participant's entry on a bill.
type RecordFile struct {
	Payment string `json:"payment" yaml:"payment"`
	Share   string `json:"share" yaml:"share"`
}

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported project file %q: expected .json, .yaml or .yml", filepath.Base(path))
	}
}

// =============================================================================
// LOAD
// =============================================================================

// Load reads a project file. A missing name defaults to the file base name.
func Load(path string) (*ledger.Ledger, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}

	l, err := Unmarshal(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	if l.Name == "" {
		l.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return l, nil
}

// Unmarshal decodes a project document.
func Unmarshal(data []byte, format Format) (*ledger.Ledger, error) {
	var f File

	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	return f.Ledger()
}

// Ledger converts the file into a ledger. Duplicate participants are kept
// as listed so that validation can report them.
func (f *File) Ledger() (*ledger.Ledger, error) {
	precision := ledger.DefaultPrecision
	if f.Precision != nil {
		precision = *f.Precision
	}
	if precision < 0 || precision > 8 {
		return nil, fmt.Errorf("precision %d out of range [0, 8]", precision)
	}

	l := &ledger.Ledger{
		Name:      f.Name,
		Precision: precision,
		Bills:     make(map[string]*ledger.Bill, len(f.Bills)),
	}
	for _, p := range f.Participants {
		l.Participants = append(l.Participants, ledger.Participant(p))
	}

	for id, records := range f.Bills {
		if strings.TrimSpace(id) == "" {
			return nil, &ledger.InvalidBillError{BillID: id}
		}

		bill := ledger.NewBill(id)
		for p, r := range records {
			payment, err := parsePayment(r.Payment, precision)
			if err != nil {
				return nil, fmt.Errorf("bill %q, participant %q: %w", id, p, err)
			}
			share, err := decimal.NewFromString(strings.TrimSpace(r.Share))
			if err != nil {
				return nil, fmt.Errorf("bill %q, participant %q: invalid share %q", id, p, r.Share)
			}
			bill.Set(ledger.Participant(p), payment, share)
		}
		l.Bills[id] = bill
	}

	return l, nil
}

func parsePayment(s string, precision int32) (money.Amount, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return money.Parse(s, precision)
}

// =============================================================================
// SAVE
// =============================================================================

// Save writes the ledger to path, replacing the file atomically.
func Save(path string, l *ledger.Ledger) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	data, err := Marshal(l, format)
	if err != nil {
		return err
	}

	return utils.WriteFileAtomic(path, data, 0o644)
}

// Marshal encodes the ledger.
func Marshal(l *ledger.Ledger, format Format) ([]byte, error) {
	f := FromLedger(l)

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode JSON: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return nil, fmt.Errorf("failed to encode YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode YAML: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// FromLedger converts a ledger into its file shape.
func FromLedger(l *ledger.Ledger) *File {
	precision := l.Precision
	f := &File{
		Name:         l.Name,
		Precision:    &precision,
		Participants: make([]string, 0, len(l.Participants)),
		Bills:        make(map[string]map[string]RecordFile, len(l.Bills)),
	}

	for _, p := range l.Participants {
		f.Participants = append(f.Participants, string(p))
	}

	for id, b := range l.Bills {
		records := make(map[string]RecordFile, len(b.Records))
		for p, r := range b.Records {
			records[string(p)] = RecordFile{
				Payment: r.Payment.Format(precision),
				Share:   r.Share.String(),
			}
		}
		f.Bills[id] = records
	}

	return f
}
