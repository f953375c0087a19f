package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Daniromero1410/Sistema-Positiva/model"
)

func validateOutputFormat(output string) error {
	if output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable writes rows as aligned columns under an upper-cased header.
func printTable(w io.Writer, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	upper := make([]string, len(headers))
	for i, h := range headers {
		upper[i] = strings.ToUpper(h)
	}
	fmt.Fprintln(tw, strings.Join(upper, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// printDetail writes one key/value pair per line.
func printDetail(w io.Writer, pairs [][2]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, p := range pairs {
		fmt.Fprintf(tw, "%s:\t%s\n", p[0], p[1])
	}
	return tw.Flush()
}

func (a *app) print(w io.Writer, v any, table func(io.Writer) error) error {
	if a.output == "json" {
		return printJSON(w, v)
	}
	return table(w)
}

func progressPairs(p model.RunProgress) [][2]string {
	pairs := [][2]string{
		{"Ejecucion", fmt.Sprint(p.RunID)},
		{"Estado", string(p.State)},
		{"Progreso", fmt.Sprintf("%.1f%%", p.Percent)},
		{"Contratos", fmt.Sprintf("%d/%d", p.ContractsProcessed, p.TotalContracts)},
		{"Servicios", fmt.Sprint(p.ServicesExtracted)},
		{"Alertas", fmt.Sprint(p.AlertsGenerated)},
	}
	if p.CurrentContract != "" {
		pairs = append(pairs, [2]string{"Contrato actual", p.CurrentContract})
	}
	return pairs
}

// progressLine is the single-line form printed while watching.
func progressLine(p model.RunProgress) string {
	line := fmt.Sprintf("[%s] %5.1f%% %d/%d contratos", p.State, p.Percent, p.ContractsProcessed, p.TotalContracts)
	if p.CurrentContract != "" {
		line += " (" + p.CurrentContract + ")"
	}
	return line
}
