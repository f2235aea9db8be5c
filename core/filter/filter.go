// Package filter compiles structured track filters into parameterized SQL
// fragments. Values are always bound as arguments, never interpolated.
package filter

import (
	"fmt"
	"strconv"
	"strings"

	"cuebase/core/camelot"
	"cuebase/logger"
	"cuebase/model"
)

// FieldType classifies a filterable field and decides its operator set.
type FieldType int

const (
	TypeText FieldType = iota
	TypeNumber
	TypeKey
)

type fieldSpec struct {
	Type   FieldType
	Column string
	// Multi-valued text fields (genre) are stored as JSON arrays and matched
	// per element via json_each.
	Multi bool
}

// BPM predicates and sorts always read the override first: a user-set tempo
// is authoritative over the derived one.
const bpmColumn = "COALESCE(t.bpm_override, t.bpm)"

var fields = map[string]fieldSpec{
	"title":    {Type: TypeText, Column: "t.title"},
	"artist":   {Type: TypeText, Column: "t.artist"},
	"album":    {Type: TypeText, Column: "t.album"},
	"label":    {Type: TypeText, Column: "t.label"},
	"genre":    {Type: TypeText, Column: "t.genres", Multi: true},
	"bpm":      {Type: TypeNumber, Column: bpmColumn},
	"loudness": {Type: TypeNumber, Column: "t.loudness"},
	"year":     {Type: TypeNumber, Column: "t.year"},
	"rating":   {Type: TypeNumber, Column: "t.rating"},
	"duration": {Type: TypeNumber, Column: "t.duration"},
	"key":      {Type: TypeKey, Column: "t.key_camelot"},
}

// Compile turns a filter list into WHERE conditions plus bound arguments.
// The conditions combine with AND; an empty filter list compiles to none.
// A filter that does not parse (unknown field, wrong operator for the type,
// malformed number) is dropped, not failed: one bad clause must not take the
// whole query down.
func Compile(filters []model.Filter) ([]string, []interface{}) {
	var conds []string
	var args []interface{}

	for _, f := range filters {
		cond, condArgs, err := compileOne(f)
		if err != nil {
			logger.Warn("Dropping invalid filter",
				logger.String("field", f.Field),
				logger.String("op", f.Op),
				logger.ErrorField(err))
			continue
		}
		conds = append(conds, cond)
		args = append(args, condArgs...)
	}

	return conds, args
}

func compileOne(f model.Filter) (string, []interface{}, error) {
	spec, ok := fields[f.Field]
	if !ok {
		return "", nil, fmt.Errorf("unknown filter field %q", f.Field)
	}

	switch spec.Type {
	case TypeText:
		return compileText(spec, f)
	case TypeNumber:
		return compileNumber(spec, f)
	case TypeKey:
		return compileKey(spec, f)
	}
	return "", nil, fmt.Errorf("unhandled field type for %q", f.Field)
}

func compileText(spec fieldSpec, f model.Filter) (string, []interface{}, error) {
	if spec.Multi {
		return compileGenre(spec, f)
	}

	switch f.Op {
	case model.OpIs:
		return fmt.Sprintf("LOWER(%s) = LOWER(?)", spec.Column), []interface{}{f.Value}, nil
	case model.OpIsNot:
		return fmt.Sprintf("LOWER(%s) <> LOWER(?)", spec.Column), []interface{}{f.Value}, nil
	case model.OpContains:
		return fmt.Sprintf("%s LIKE ? ESCAPE '\\'", spec.Column), []interface{}{likePattern(f.Value)}, nil
	}
	return "", nil, fmt.Errorf("operator %q not valid for text field", f.Op)
}

// compileGenre matches against list membership, not list identity: the genres
// column holds a JSON array of strings.
func compileGenre(spec fieldSpec, f model.Filter) (string, []interface{}, error) {
	member := fmt.Sprintf(
		"EXISTS (SELECT 1 FROM json_each(%s) WHERE LOWER(json_each.value) = LOWER(?))", spec.Column)

	switch f.Op {
	case model.OpIs:
		return member, []interface{}{f.Value}, nil
	case model.OpIsNot:
		return "NOT " + member, []interface{}{f.Value}, nil
	case model.OpContains:
		return fmt.Sprintf(
			"EXISTS (SELECT 1 FROM json_each(%s) WHERE json_each.value LIKE ? ESCAPE '\\')", spec.Column),
			[]interface{}{likePattern(f.Value)}, nil
	}
	return "", nil, fmt.Errorf("operator %q not valid for genre", f.Op)
}

func compileNumber(spec fieldSpec, f model.Filter) (string, []interface{}, error) {
	if f.Op == model.OpRange {
		from, err := strconv.ParseFloat(strings.TrimSpace(f.From), 64)
		if err != nil {
			return "", nil, fmt.Errorf("bad range lower bound %q: %w", f.From, err)
		}
		to, err := strconv.ParseFloat(strings.TrimSpace(f.To), 64)
		if err != nil {
			return "", nil, fmt.Errorf("bad range upper bound %q: %w", f.To, err)
		}
		return fmt.Sprintf("%s BETWEEN ? AND ?", spec.Column), []interface{}{from, to}, nil
	}

	val, err := strconv.ParseFloat(strings.TrimSpace(f.Value), 64)
	if err != nil {
		return "", nil, fmt.Errorf("bad numeric value %q: %w", f.Value, err)
	}

	var op string
	switch f.Op {
	case model.OpIs:
		op = "="
	case model.OpGt:
		op = ">"
	case model.OpLt:
		op = "<"
	case model.OpGte:
		op = ">="
	case model.OpLte:
		op = "<="
	default:
		return "", nil, fmt.Errorf("operator %q not valid for numeric field", f.Op)
	}
	return fmt.Sprintf("%s %s ?", spec.Column, op), []interface{}{val}, nil
}

func compileKey(spec fieldSpec, f model.Filter) (string, []interface{}, error) {
	key, err := camelot.Parse(f.Value)
	if err != nil {
		// Unparseable key strings degrade to a case-normalized literal match.
		return fmt.Sprintf("LOWER(%s) = LOWER(?)", spec.Column), []interface{}{f.Value}, nil
	}

	var targets []camelot.Key
	switch f.Op {
	case model.OpIs:
		targets = []camelot.Key{key}
	case model.OpModeSwitch:
		targets = []camelot.Key{key.ModeSwitch()}
	case model.OpAdjacent:
		adj := key.Adjacent()
		targets = adj[:]
	case model.OpMatches:
		targets = key.Matches()
	default:
		return "", nil, fmt.Errorf("operator %q not valid for key field", f.Op)
	}

	placeholders := make([]string, len(targets))
	args := make([]interface{}, len(targets))
	for i, k := range targets {
		placeholders[i] = "?"
		args[i] = k.String()
	}
	return fmt.Sprintf("%s IN (%s)", spec.Column, strings.Join(placeholders, ", ")), args, nil
}

// Search compiles the free-text substring match over title, artist and album.
func Search(q string) (string, []interface{}) {
	pattern := likePattern(q)
	return "(t.title LIKE ? ESCAPE '\\' OR t.artist LIKE ? ESCAPE '\\' OR t.album LIKE ? ESCAPE '\\')",
		[]interface{}{pattern, pattern, pattern}
}

// SortExpr maps an exposed sort field to its SQL expression. Returns false
// for unknown fields so callers can fall back to the default order.
func SortExpr(field string) (string, bool) {
	switch field {
	case "title", "artist", "album", "year", "rating", "duration", "created_at":
		return "t." + field, true
	case "bpm":
		return bpmColumn, true
	case "key":
		return "t.key_camelot", true
	case "loudness":
		return "t.loudness", true
	}
	return "", false
}

func likePattern(value string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
	return "%" + escaped + "%"
}
