package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"portalia/internal/service/convert"
	"portalia/internal/service/fallback"
)

func newConvertCmd() *cobra.Command {
	var p convert.Params

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Run a conversion through the workbook (same parameters as GET /convert)",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := convert.Normalize(p)
			if err != nil {
				return err
			}

			cfg := loadConfig()
			svc := newService(cfg, newLogger(cmd.ErrOrStderr()))

			res, err := svc.Convert(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("%s: %w", convert.Code(err), err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&p.DailyRate, "tjm", "", "daily rate")
	f.StringVar(&p.WorkedDays, "jours", "", "worked days per month")
	f.StringVar(&p.ContractType, "contract", "", "CDI or CDD")
	f.StringVar(&p.OperatingFee, "frais", "", "operating fee rate")
	f.StringVar(&p.MealVoucher, "ticket", "", "meal vouchers (true/false)")
	f.StringVar(&p.Insurance, "mutuelle", "", "health insurance (true/false)")
	f.StringVar(&p.CommuneCode, "commune", "", "commune code")
	f.StringVar(&p.NegotiatedValue, "negocie", "", "negotiated value written instead of the CDI marker")

	return cmd
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show how the template is resolved: sheets, tiers, macros, communes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			svc := newService(cfg, newLogger(cmd.ErrOrStderr()))

			ins, err := svc.Inspect(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "template\t%s\n", cfg.Workbook.TemplatePath)
			fmt.Fprintf(w, "sheets\t%v\n", ins.Sheets)
			fmt.Fprintf(w, "calculation\t%s\t(%s)\n", ins.Resolution.Calculation.Name, ins.Resolution.Calculation.Tier)
			fmt.Fprintf(w, "result\t%s\t(%s)\n", ins.Resolution.Result.Name, ins.Resolution.Result.Tier)
			if ins.MacrosError != "" {
				fmt.Fprintf(w, "macros\tunreadable: %s\n", ins.MacrosError)
			} else {
				fmt.Fprintf(w, "macros\t%v\n", ins.Macros)
			}
			if ins.CommuneError != "" {
				fmt.Fprintf(w, "communes\tunavailable: %s\n", ins.CommuneError)
			} else {
				fmt.Fprintf(w, "communes\t%d\n", ins.Communes)
			}
			return w.Flush()
		},
	}
}

func newFallbackCmd() *cobra.Command {
	var tjm, brut, net float64
	var jours int

	cmd := &cobra.Command{
		Use:   "fallback",
		Short: "Closed-form conversion from one of --tjm, --brut, --net",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			rates := ratesFromConfig(cfg)
			if cmd.Flags().Changed("jours") {
				rates.WorkedDays = jours
			}

			var in fallback.Input
			if cmd.Flags().Changed("tjm") {
				in.DailyRate = &tjm
			}
			if cmd.Flags().Changed("brut") {
				in.Gross = &brut
			}
			if cmd.Flags().Changed("net") {
				in.Net = &net
			}

			out, err := fallback.Compute(in, rates)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&tjm, "tjm", 0, "daily rate")
	f.Float64Var(&brut, "brut", 0, "gross monthly salary")
	f.Float64Var(&net, "net", 0, "net monthly salary")
	f.IntVar(&jours, "jours", 18, "worked days per month")
	cmd.MarkFlagsOneRequired("tjm", "brut", "net")

	return cmd
}
