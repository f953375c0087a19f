package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/Daniromero1410/Sistema-Positiva/model"
	"github.com/Daniromero1410/Sistema-Positiva/service"
	"github.com/spf13/cobra"
)

func parseRunID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid run id %q", arg)
	}
	return id, nil
}

func openMaster(path string) (model.MasterFile, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.MasterFile{}, nil, fmt.Errorf("failed to open master file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return model.MasterFile{}, nil, fmt.Errorf("failed to stat master file: %w", err)
	}
	return model.MasterFile{Filename: filepath.Base(path), Content: f, Size: info.Size()}, f.Close, nil
}

// startFlags collects a ConsolidationConfig from flags shared by start and run.
type startFlags struct {
	modo            string
	ano             int
	contratos       []string
	guardarEnBD     bool
	exportarAlertas bool
}

func (f *startFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.modo, "modo", string(model.ModeFull), "Run mode (completo, por_ano, especifico)")
	cmd.Flags().IntVar(&f.ano, "ano", 0, "Contract year, required with --modo por_ano")
	cmd.Flags().StringSliceVar(&f.contratos, "contratos", nil, "Contract ids, required with --modo especifico")
	cmd.Flags().BoolVar(&f.guardarEnBD, "guardar-en-bd", true, "Store the consolidated services in the backend database")
	cmd.Flags().BoolVar(&f.exportarAlertas, "exportar-alertas", true, "Export the alerts spreadsheet")
}

func (f *startFlags) config() model.ConsolidationConfig {
	cfg := model.ConsolidationConfig{
		Modo:            model.Mode(f.modo),
		Contratos:       f.contratos,
		GuardarEnBD:     f.guardarEnBD,
		ExportarAlertas: f.exportarAlertas,
	}
	if f.ano != 0 {
		cfg.Ano = model.Year(f.ano)
	}
	return cfg
}

// watchFlags tunes the polling loop of watch and run.
type watchFlags struct {
	interval    time.Duration
	maxAttempts int
}

func (f *watchFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.interval, "interval", 2*time.Second, "Delay between progress polls")
	cmd.Flags().IntVar(&f.maxAttempts, "max-attempts", 0, "Give up after this many polls (0 = until the run ends)")
}

func newUploadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a master spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, closeFile, err := openMaster(args[0])
			if err != nil {
				return err
			}
			defer closeFile()

			if err := model.ValidateMasterFilename(file.Filename); err != nil {
				return err
			}

			upload, err := a.client.UploadMaster(cmd.Context(), file)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), upload, func(w io.Writer) error {
				years := make([]string, 0, len(upload.Resumen.PorAno))
				for y := range upload.Resumen.PorAno {
					years = append(years, y)
				}
				sort.Strings(years)
				pairs := [][2]string{
					{"Archivo", upload.Nombre},
					{"Tamano", upload.Tamano},
					{"Contratos", strconv.Itoa(upload.Resumen.TotalContratos)},
				}
				for _, y := range years {
					pairs = append(pairs, [2]string{"  " + y, strconv.Itoa(upload.Resumen.PorAno[y])})
				}
				return printDetail(w, pairs)
			})
		},
	}
}

func newStartCmd(a *app) *cobra.Command {
	var flags startFlags
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a run on the last uploaded master file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			handle, err := a.client.StartRun(cmd.Context(), flags.config())
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), handle, func(w io.Writer) error {
				return printDetail(w, [][2]string{
					{"Ejecucion", strconv.Itoa(handle.RunID)},
					{"Estado", handle.Status},
					{"Mensaje", handle.Message},
				})
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newProgressCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "progress ID",
		Short: "Show the progress of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			progress, err := a.client.PollProgress(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), progress, func(w io.Writer) error {
				return printDetail(w, progressPairs(*progress))
			})
		},
	}
}

func newCancelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Request cancellation of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			if err := a.client.CancelRun(cmd.Context(), id); err != nil {
				return err
			}
			result := map[string]any{"ejecucion_id": id, "message": "cancellation requested"}
			return a.print(cmd.OutOrStdout(), result, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Cancellation requested for run %d\n", id)
				return err
			})
		},
	}
}

func newResultsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "results ID",
		Short: "List the summary and output files of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			results, err := a.client.Results(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), results, func(w io.Writer) error {
				s := results.Resumen
				if err := printDetail(w, [][2]string{
					{"Ejecucion", strconv.Itoa(results.RunID)},
					{"Estado", string(results.State)},
					{"Duracion", results.Duracion},
					{"Contratos", fmt.Sprintf("%d (%d exitosos, %d fallidos)", s.TotalContratos, s.Exitosos, s.Fallidos)},
					{"Servicios", strconv.Itoa(s.TotalServicios)},
					{"Alertas", strconv.Itoa(s.TotalAlertas)},
				}); err != nil {
					return err
				}
				if len(results.Archivos) == 0 {
					return nil
				}
				fmt.Fprintln(w)
				rows := make([][]string, len(results.Archivos))
				for i, f := range results.Archivos {
					principal := ""
					if f.EsPrincipal {
						principal = "*"
					}
					rows[i] = []string{f.Nombre, f.Descripcion, f.Tamano, principal}
				}
				return printTable(w, []string{"nombre", "descripcion", "tamano", "principal"}, rows)
			})
		},
	}
}

// follow polls id until it ends and prints each change. A run ending in ERROR is an error.
func (a *app) follow(ctx context.Context, w io.Writer, id int, flags watchFlags) error {
	watcher := service.NewWatcher(a.client, flags.interval, flags.maxAttempts)

	var lastLine string
	final, err := watcher.Watch(ctx, id, func(p model.RunProgress) {
		if a.output == "json" {
			return
		}
		if line := progressLine(p); line != lastLine {
			fmt.Fprintln(w, line)
			lastLine = line
		}
	})
	if err != nil {
		return err
	}

	if a.output == "json" {
		if err := printJSON(w, final); err != nil {
			return err
		}
	}
	if final.State == model.StateFailed {
		return fmt.Errorf("run %d ended with state %s", id, final.State)
	}
	return nil
}

func newWatchCmd(a *app) *cobra.Command {
	var flags watchFlags
	cmd := &cobra.Command{
		Use:   "watch ID",
		Short: "Follow a run until it reaches a terminal state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			return a.follow(cmd.Context(), cmd.OutOrStdout(), id, flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func newRunCmd(a *app) *cobra.Command {
	var (
		start   startFlags
		watch   watchFlags
		key     string
		noWatch bool
	)
	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Upload a master file, start a run and follow it",
		Long: "Uploads FILE and starts a run as one tagged submission. Both requests carry the same " +
			"idempotency key, so repeating the command with --idempotency-key never starts a second run.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, closeFile, err := openMaster(args[0])
			if err != nil {
				return err
			}
			defer closeFile()

			sub, err := a.client.Submit(cmd.Context(), file, start.config(), service.SubmitOptions{
				IdempotencyKey: key,
				Retry:          a.retryPolicy(),
			})
			if err != nil {
				if sub != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Master uploaded but the run did not start; retry with --idempotency-key %s\n", sub.IdempotencyKey)
				}
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Run %d started (idempotency key %s)\n", sub.Handle.RunID, sub.IdempotencyKey)
			if noWatch {
				return a.print(cmd.OutOrStdout(), sub.Handle, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, sub.Handle.RunID)
					return err
				})
			}
			return a.follow(cmd.Context(), cmd.OutOrStdout(), sub.Handle.RunID, watch)
		},
	}
	start.register(cmd)
	watch.register(cmd)
	cmd.Flags().StringVar(&key, "idempotency-key", "", "Key tagging the upload and start requests (generated when empty)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Print the run id and exit without following it")
	return cmd
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := a.client.Health(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), status, func(w io.Writer) error {
				keys := make([]string, 0, len(status))
				for k := range status {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				pairs := [][2]string{{"Backend", a.apiURL}}
				for _, k := range keys {
					pairs = append(pairs, [2]string{k, fmt.Sprint(status[k])})
				}
				return printDetail(w, pairs)
			})
		},
	}
}
