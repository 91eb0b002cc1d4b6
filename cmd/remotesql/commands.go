package main

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/dan-strohschein/remotedb/client"
	"github.com/dan-strohschein/remotedb/query"
	"github.com/dan-strohschein/remotedb/result"
)

func newInfoCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the metadata the executor reports for the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, s.Close()) }()

			ci, err := s.client.ConfigurationInfo(s.ctx)
			if err != nil {
				return formatErr(s.client, err)
			}
			contextID, err := s.client.ContextID(s.ctx)
			if err != nil {
				return formatErr(s.client, err)
			}

			f := ci.Info.Flags
			data := pterm.TableData{
				{"Property", "Value"},
				{"Configuration", displayName(ci.Name)},
				{"Dialect", ci.Info.Dialect},
				{"Aliases", strings.Join(ci.Info.Configurations, ", ")},
				{"Context ID", contextID},
				{"Take", fmt.Sprint(f.IsTakeSupported)},
				{"Skip", fmt.Sprint(f.IsSkipSupported)},
				{"Take as parameter", fmt.Sprint(f.AcceptsTakeAsParameter)},
				{"Max IN list", fmt.Sprint(f.MaxInListValuesCount)},
			}
			return renderTable(cmd.OutOrStdout(), data)
		},
	}
}

func displayName(configuration string) string {
	if configuration == "" {
		return "(default)"
	}
	return configuration
}

func newRenderCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "render <plan.json>",
		Short: "Print the SQL a plan renders to, without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			stmt, err := readPlan(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, s.Close()) }()

			text, err := s.client.GetSQLText(s.ctx, s.client.SetQuery(query.NewContext(stmt)))
			if err != nil {
				return formatErr(s.client, err)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), text)
			return err
		},
	}
}

func newExecCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <plan.json>...",
		Short: "Run non-query plans; several plans are sent as one batch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			stmts := make([]*query.Statement, len(args))
			for i, path := range args {
				if stmts[i], err = readPlan(path, cmd.InOrStdin()); err != nil {
					return err
				}
			}
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, s.Close()) }()

			if len(stmts) == 1 {
				n, err := s.client.ExecuteNonQuery(s.ctx, s.client.SetQuery(query.NewContext(stmts[0])))
				if err != nil {
					return formatErr(s.client, err)
				}
				printSuccess(cmd.OutOrStdout(), fmt.Sprintf("%d row(s) affected", n))
				return nil
			}

			s.client.BeginBatch()
			for _, stmt := range stmts {
				if _, err := s.client.ExecuteNonQuery(s.ctx, s.client.SetQuery(query.NewContext(stmt))); err != nil {
					return formatErr(s.client, err)
				}
			}
			if err := s.client.CommitBatch(s.ctx); err != nil {
				return formatErr(s.client, err)
			}
			printSuccess(cmd.OutOrStdout(), fmt.Sprintf("batch of %d statement(s) executed", len(stmts)))
			return nil
		},
	}
}

func newScalarCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "scalar <plan.json>",
		Short: "Run a plan and print its single value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			stmt, err := readPlan(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, s.Close()) }()

			v, err := s.client.ExecuteScalar(s.ctx, s.client.SetQuery(query.NewContext(stmt)))
			if err != nil {
				return formatErr(s.client, err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), result.Converter{}.ToString(v))
			return err
		},
	}
}

func newQueryCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "query <plan.json>",
		Short: "Run a plan and print its rows as a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			stmt, err := readPlan(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, s.Close()) }()

			r, err := s.client.ExecuteReader(s.ctx, s.client.SetQuery(query.NewContext(stmt)))
			if err != nil {
				return formatErr(s.client, err)
			}
			defer func() { err = multierr.Append(err, r.Close()) }()

			data, err := readerTable(r)
			if err != nil {
				return err
			}
			if err := renderTable(cmd.OutOrStdout(), data); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), fmt.Sprintf("%d row(s)", len(data)-1))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "remotesql %s\n", client.Version)
			return err
		},
	}
}
