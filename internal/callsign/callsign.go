// Package callsign holds the static operator table and spoken-callsign helpers.
// The table is embedded in the binary and parsed once; callers only read it.
package callsign

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"flight_replay/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed airlines.yaml
var embeddedTable []byte

// Entry is one operator in the static table.
type Entry struct {
	Callsign string `yaml:"callsign"`
	Name     string `yaml:"name"`
}

// Table maps ICAO operator codes to callsigns and letters to spelling words.
type Table struct {
	airlines map[string]Entry
	phonetic map[string]string
}

type tableFile struct {
	Airlines map[string]Entry  `yaml:"airlines"`
	Phonetic map[string]string `yaml:"phonetic"`
}

var (
	flightPrefix  = regexp.MustCompile(`(?i)^([A-Z]{2,3})\d+`)
	codeAndNumber = regexp.MustCompile(`^([A-Z]+)(\d+)$`)

	digitWords = [...]string{"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}

	loadDefault = sync.OnceValues(func() (*Table, error) {
		return Load(embeddedTable)
	})
)

// Load parses a YAML table with "airlines" and "phonetic" sections.
func Load(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse callsign table: %w", err)
	}

	t := &Table{
		airlines: make(map[string]Entry, len(f.Airlines)),
		phonetic: make(map[string]string, len(f.Phonetic)),
	}
	for code, e := range f.Airlines {
		t.airlines[strings.ToUpper(code)] = e
	}
	for letter, word := range f.Phonetic {
		t.phonetic[strings.ToUpper(letter)] = word
	}
	return t, nil
}

// Default returns the embedded table.
func Default() *Table {
	t, err := loadDefault()
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the entry for an ICAO operator code.
func (t *Table) Lookup(code string) (Entry, bool) {
	e, ok := t.airlines[strings.ToUpper(code)]
	return e, ok
}

// Codes returns every operator code in the table, sorted.
func (t *Table) Codes() []string {
	codes := make([]string, 0, len(t.airlines))
	for code := range t.airlines {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Spell returns the spelling word for a letter, or the letter itself.
func (t *Table) Spell(r rune) string {
	if w, ok := t.phonetic[string(r)]; ok {
		return w
	}
	return string(r)
}

// ICAOFromFlight extracts the operator prefix (two or three letters followed by
// digits) from a flight string, upper-cased. It returns "" when there is none.
func ICAOFromFlight(flight string) string {
	m := flightPrefix.FindStringSubmatch(strings.TrimSpace(flight))
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

// Pronounce renders a flight string the way a controller would say it.
//
//	UAL123 -> UNITED one two three
//	N12AB  -> November 1 2 Alpha Bravo
func (t *Table) Pronounce(flight string, airline *models.AirlineRef) string {
	trimmed := strings.TrimSpace(flight)
	if trimmed == "" {
		return "Unknown"
	}

	m := codeAndNumber.FindStringSubmatch(trimmed)
	// Known operators whose code starts with N (NKS, NJE...) are not tail numbers.
	if strings.HasPrefix(trimmed, "N") && (m == nil || !t.known(m[1])) {
		return "November " + t.spellTail(trimmed[1:])
	}

	if m == nil {
		return trimmed
	}

	code, numbers := m[1], m[2]
	words := make([]string, 0, len(numbers))
	for _, d := range numbers {
		words = append(words, digitWords[d-'0'])
	}
	spoken := strings.Join(words, " ")

	if e, ok := t.Lookup(code); ok && e.Callsign != "" {
		return e.Callsign + " " + spoken
	}
	if airline != nil && airline.Callsign != nil && *airline.Callsign != "" {
		return *airline.Callsign + " " + spoken
	}

	letters := make([]string, 0, len(code))
	for _, c := range code {
		letters = append(letters, t.Spell(c))
	}
	return strings.Join(letters, " ") + " " + spoken
}

func (t *Table) known(code string) bool {
	_, ok := t.Lookup(code)
	return ok
}

func (t *Table) spellTail(rest string) string {
	parts := make([]string, 0, len(rest))
	for _, c := range strings.ToUpper(rest) {
		switch {
		case c >= 'A' && c <= 'Z':
			parts = append(parts, t.Spell(c))
		case c >= '0' && c <= '9':
			parts = append(parts, string(c))
		}
	}
	return strings.Join(parts, " ")
}
