// Command inspect dumps the structure of a NetCDF granule as JSON: variable
// names, shapes, and the global attributes the date-resolution strategies
// look at. Useful when onboarding a new grid source.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/couchcryptid/ocean-data-aggregator/internal/adapter/netcdfraster"
)

type variableInfo struct {
	Name  string `json:"name"`
	Shape []int  `json:"shape"`
}

type fileInfo struct {
	Path       string            `json:"path"`
	Variables  []variableInfo    `json:"variables"`
	Attributes map[string]string `json:"attributes"`
}

var inspectedAttrs = []string{
	"time_coverage_start", "time_coverage_end",
	"start_time", "end_time",
	"date_created", "title", "platform", "instrument",
}

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s <granule.nc>\n", os.Args[0])
		os.Exit(2)
	}

	if err := inspect(flag.Arg(0)); err != nil {
		slog.Error("inspect failed", "error", err)
		os.Exit(1)
	}
}

func inspect(path string) error {
	r, err := netcdfraster.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	info := fileInfo{Path: path, Attributes: make(map[string]string)}
	for _, name := range r.Variables() {
		g, err := r.Grid(name)
		if err != nil {
			// Non-numeric variables are still listed, just without a shape.
			info.Variables = append(info.Variables, variableInfo{Name: name})
			continue
		}
		info.Variables = append(info.Variables, variableInfo{Name: name, Shape: g.Shape})
	}
	for _, attr := range inspectedAttrs {
		if v, ok := r.Attr(attr); ok {
			info.Attributes[attr] = v
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}
