// Package ingest scans crane PLC log archives, extracts statistic tag lines,
// and loads them into the store as normalized metric samples.
package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/harborside/cranetrack/internal/model"
	"github.com/harborside/cranetrack/internal/tagdict"
)

// lineRe splits a raw log line into timestamp text, sequence counter, the
// bracketed tag descriptor, and the result payload.
var lineRe = regexp.MustCompile(`^(.*?): \((\d+)\): (TAG:\[[^\]]+\])\s*(.*)$`)

// timestampLayout is the PLC logger's timestamp format.
const timestampLayout = "2006-01-02_15.04.05.000000"

// ParserOptions configures the search-needle set and tag resolution.
type ParserOptions struct {
	// EquipmentPrefix with zero-padded numbers in [EquipmentStart,
	// EquipmentEnd] forms the equipment identifiers, e.g. RMG01..RMG12.
	EquipmentPrefix string
	EquipmentStart  int
	EquipmentEnd    int
	// StatisticType is the statistic-class token inside the descriptor.
	StatisticType string
	// TagIDs are the raw tag ids to search for.
	TagIDs []string
	// Dict resolves raw tag codes to metric names; nil means no mapping.
	Dict *tagdict.Dictionary
}

// Parser recognizes statistic tag lines for a fixed set of equipment and tag
// ids. A line is considered only when it contains one of the precomputed
// needle strings; everything else is skipped without cost.
type Parser struct {
	needles []needle
	equipRe *regexp.Regexp
	statTok string
	dict    *tagdict.Dictionary
}

type needle struct {
	text      string
	equipment string
}

// NewParser precomputes the needle set (equipment x tag ids).
func NewParser(opts ParserOptions) (*Parser, error) {
	if opts.EquipmentPrefix == "" {
		return nil, eris.New("ingest: equipment prefix is required")
	}
	if opts.EquipmentStart < 0 || opts.EquipmentEnd < opts.EquipmentStart {
		return nil, eris.Errorf("ingest: invalid equipment range %d..%d", opts.EquipmentStart, opts.EquipmentEnd)
	}
	if opts.StatisticType == "" {
		return nil, eris.New("ingest: statistic type is required")
	}
	if len(opts.TagIDs) == 0 {
		return nil, eris.New("ingest: no tag ids to search for")
	}

	dict := opts.Dict
	if dict == nil {
		dict = tagdict.Empty()
	}

	var needles []needle
	for n := opts.EquipmentStart; n <= opts.EquipmentEnd; n++ {
		eq := fmt.Sprintf("%s%02d", opts.EquipmentPrefix, n)
		for _, tagID := range opts.TagIDs {
			needles = append(needles, needle{
				text:      fmt.Sprintf("TAG:[%s/%s:CRANE.STATISTIC.%s.%s]", eq, eq, opts.StatisticType, tagID),
				equipment: eq,
			})
		}
	}

	equipRe, err := regexp.Compile(`TAG:\[(` + regexp.QuoteMeta(opts.EquipmentPrefix) + `\d{2})/`)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: compile equipment pattern")
	}

	return &Parser{
		needles: needles,
		equipRe: equipRe,
		statTok: ":CRANE.STATISTIC." + opts.StatisticType + ".",
		dict:    dict,
	}, nil
}

// ParseLine extracts a metric sample from a raw log line. It returns
// (nil, nil) when the line does not contain any tracked tag, and an error
// when a tracked line is malformed (bad grammar or timestamp).
func (p *Parser) ParseLine(line string) (*model.MetricSample, error) {
	matched := false
	for _, n := range p.needles {
		if strings.Contains(line, n.text) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, nil
	}

	groups := lineRe.FindStringSubmatch(line)
	if groups == nil {
		return nil, eris.Errorf("ingest: tag line does not match log grammar: %.80s", line)
	}

	ts, err := time.ParseInLocation(timestampLayout, groups[1], time.UTC)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: bad timestamp %q", groups[1])
	}

	descriptor, payload := groups[3], groups[4]

	equipment, detail, err := p.splitDescriptor(descriptor)
	if err != nil {
		return nil, err
	}

	sample := &model.MetricSample{
		EntityID:   equipment,
		MetricName: p.dict.Resolve(detail),
		Timestamp:  ts,
		RawValue:   strings.TrimSpace(payload),
		ValueNum:   parseNumeric(payload),
	}
	return sample, nil
}

// splitDescriptor pulls the equipment id and the raw tag detail out of a
// descriptor like TAG:[RMG07/RMG07:CRANE.STATISTIC.Perma.29747].
func (p *Parser) splitDescriptor(descriptor string) (string, string, error) {
	eq := p.equipRe.FindStringSubmatch(descriptor)
	if eq == nil {
		return "", "", eris.Errorf("ingest: no equipment id in descriptor %q", descriptor)
	}

	idx := strings.Index(descriptor, p.statTok)
	if idx < 0 {
		return "", "", eris.Errorf("ingest: no statistic token in descriptor %q", descriptor)
	}
	detail := descriptor[idx+len(p.statTok):]
	detail = strings.TrimSuffix(detail, "]")
	if detail == "" {
		return "", "", eris.Errorf("ingest: empty tag detail in descriptor %q", descriptor)
	}

	return eq[1], detail, nil
}

// parseNumeric interprets the first whitespace-separated token of the result
// payload as a float. Non-numeric payloads keep a NULL value column; the raw
// text is stored either way.
func parseNumeric(payload string) *float64 {
	fields := strings.Fields(payload)
	if len(fields) == 0 {
		return nil
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil
	}
	return &v
}
