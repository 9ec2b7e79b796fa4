package main

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/viow-dev/viow-sdk/domain/entities"
)

type outputFormat string

const (
	formatTable outputFormat = "table"
	formatJSON  outputFormat = "json"
	formatYAML  outputFormat = "yaml"
)

func parseFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(s)); f {
	case formatTable, formatJSON, formatYAML:
		return f, nil
	case "":
		return formatTable, nil
	default:
		return "", fmt.Errorf("invalid format: %q (must be table, json or yaml)", s)
	}
}

type renderer struct {
	format outputFormat
	out    io.Writer
}

func newRenderer(c *cli.Context) (*renderer, error) {
	f, err := parseFormat(c.String("format"))
	if err != nil {
		return nil, cli.Exit(err.Error(), 2)
	}
	return &renderer{format: f, out: c.App.Writer}, nil
}

// Render writes data, a struct or a slice of structs.
func (r *renderer) Render(data any) error {
	switch r.format {
	case formatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case formatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	default:
		return r.table(data)
	}
}

// table prints one row per element with the json field names as headers.
func (r *renderer) table(data any) error {
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Slice {
		s := reflect.MakeSlice(reflect.SliceOf(v.Type()), 1, 1)
		s.Index(0).Set(v)
		v = s
	}

	tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	t := v.Type().Elem()
	headers := make([]string, t.NumField())
	for i := range headers {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		headers[i] = strings.ToUpper(name)
	}
	_, _ = fmt.Fprintln(tw, strings.Join(headers, "\t"))

	for i := 0; i < v.Len(); i++ {
		row := v.Index(i)
		cells := make([]string, row.NumField())
		for j := range cells {
			cells[j] = fmt.Sprint(row.Field(j).Interface())
		}
		_, _ = fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// writeDump prints one line per cycle: the cycle number followed by the
// value of each loaded signal.
func writeDump(w io.Writer, names []string, data *entities.WaveData) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CYCLE\t"+strings.Join(names, "\t"))
	for c := data.CycleStart(); c < data.CycleEnd(); c++ {
		cells := make([]string, 0, len(names)+1)
		cells = append(cells, fmt.Sprint(c))
		for k := range names {
			bits, err := data.Get(k, c)
			if err != nil {
				return err
			}
			cells = append(cells, formatValue(bits))
		}
		_, _ = fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}
