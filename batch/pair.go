package batch

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Pair names two relations to compare and how to compare them.
type Pair struct {
	RelationA string `yaml:"source"`
	RelationB string `yaml:"target"`
	// Key is a comma separated list of key columns. Blank compares by row
	// hash.
	Key     string   `yaml:"key"`
	Columns []string `yaml:"columns"`
	// Tolerance overrides Config.DefaultTolerance when set.
	Tolerance *float64 `yaml:"tolerance"`
	// RelTolerance overrides Config.DefaultRelTolerance when set.
	RelTolerance    *float64 `yaml:"rel_tolerance"`
	CaseInsensitive bool     `yaml:"case_insensitive"`
}

func (p Pair) String() string {
	return p.RelationA + " <-> " + p.RelationB
}

// Load reads pairs from a mappings file: YAML when the extension is .yaml or
// .yml, CSV otherwise.
func Load(path string) ([]Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(f)
	}
	return LoadCSV(f)
}

type yamlFile struct {
	Comparisons []Pair `yaml:"comparisons"`
}

func LoadYAML(r io.Reader) ([]Pair, error) {
	var f yamlFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, errors.Wrap(err, "error parsing batch config")
	}
	for i, p := range f.Comparisons {
		if strings.TrimSpace(p.RelationA) == "" || strings.TrimSpace(p.RelationB) == "" {
			return nil, errors.Newf("comparison %d: source and target must be set", i+1)
		}
	}
	return f.Comparisons, nil
}

var csvHeaderAliases = map[string]string{
	"SOURCE":           "SOURCE",
	"SAS":              "SOURCE",
	"TARGET":           "TARGET",
	"SNOWFLAKE":        "TARGET",
	"PRIMARY_KEY":      "PRIMARY_KEY",
	"KEY":              "PRIMARY_KEY",
	"COLUMNS":          "COLUMNS",
	"TOLERANCE":        "TOLERANCE",
	"REL_TOLERANCE":    "REL_TOLERANCE",
	"CASE_INSENSITIVE": "CASE_INSENSITIVE",
}

// LoadCSV reads a mapping CSV with SOURCE and TARGET columns, and optional
// PRIMARY_KEY, COLUMNS, TOLERANCE, REL_TOLERANCE and CASE_INSENSITIVE
// columns. Header names are case-insensitive and SAS and SNOWFLAKE are
// accepted for SOURCE and TARGET. Rows with a blank source or target are skipped.
func LoadCSV(r io.Reader) ([]Pair, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New("mapping file is empty")
		}
		return nil, errors.Wrap(err, "error reading mapping header")
	}
	idx := make(map[string]int)
	for i, h := range header {
		if name, ok := csvHeaderAliases[strings.ToUpper(strings.TrimSpace(h))]; ok {
			idx[name] = i
		}
	}
	var missing []string
	for _, required := range []string{"SOURCE", "TARGET"} {
		if _, ok := idx[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Newf(
			"missing required columns: %s, found: %s",
			strings.Join(missing, ", "),
			strings.Join(header, ", "),
		)
	}

	var ret []Pair
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "error reading mappings")
		}
		line, _ := cr.FieldPos(0)
		get := func(name string) string {
			i, ok := idx[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		p := Pair{
			RelationA: get("SOURCE"),
			RelationB: get("TARGET"),
			Key:       get("PRIMARY_KEY"),
		}
		if p.RelationA == "" || p.RelationB == "" {
			continue
		}
		for _, c := range strings.Split(get("COLUMNS"), ",") {
			if c = strings.TrimSpace(c); c != "" {
				p.Columns = append(p.Columns, c)
			}
		}
		if t := get("TOLERANCE"); t != "" {
			f, err := strconv.ParseFloat(t, 64)
			if err != nil {
				return nil, errors.Newf("line %d: invalid tolerance %q", line, t)
			}
			p.Tolerance = &f
		}
		if t := get("REL_TOLERANCE"); t != "" {
			f, err := strconv.ParseFloat(t, 64)
			if err != nil {
				return nil, errors.Newf("line %d: invalid rel_tolerance %q", line, t)
			}
			p.RelTolerance = &f
		}
		if ci := get("CASE_INSENSITIVE"); ci != "" {
			b, err := strconv.ParseBool(ci)
			if err != nil {
				return nil, errors.Newf("line %d: invalid case_insensitive value %q", line, ci)
			}
			p.CaseInsensitive = b
		}
		ret = append(ret, p)
	}
	return ret, nil
}
