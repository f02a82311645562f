package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/periospot/implantgen/analysis"
	"github.com/periospot/implantgen/dataset"
	"github.com/periospot/implantgen/generator"
	"github.com/periospot/implantgen/internal/export"
	"github.com/periospot/implantgen/internal/sink"
	"github.com/periospot/implantgen/pkg/log"
)

// Report keys written by the analyze commands.
const (
	SuccessReportKey  = "implant_success_report.json"
	BoneLossReportKey = "implant_bone_loss_report.json"
)

func generateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate synthetic datasets as CSV",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "bone-loss",
		Short: "Generate the marginal bone loss regression dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.generateBoneLoss()
			if err != nil {
				return err
			}
			return a.publishTables(cmd, out.Seed, out.Tables)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "success",
		Short: "Generate the implant success classification dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.generateSuccess()
			if err != nil {
				return err
			}
			return a.publishTables(cmd, out.Seed, out.Tables)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "all",
		Short: "Generate both datasets in one batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			bone, err := a.generateBoneLoss()
			if err != nil {
				return err
			}
			success, err := a.generateSuccess()
			if err != nil {
				return err
			}
			tables := append(append([]*dataset.Table{}, bone.Tables...), success.Tables...)
			return a.publishTables(cmd, bone.Seed, tables)
		},
	})
	return cmd
}

func (a *app) publishTables(cmd *cobra.Command, seed int64, tables []*dataset.Table) error {
	objects := make([]sink.Object, 0, len(tables))
	for _, t := range tables {
		o, err := sink.CSVObject(t)
		if err != nil {
			return err
		}
		objects = append(objects, o)
	}
	return a.publish(cmd, seed, objects)
}

func analyzeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Fit the teaching models on freshly generated data and write JSON reports",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "success",
		Short: "Logistic regression report on the implant success dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.generateSuccess()
			if err != nil {
				return err
			}
			report, err := analysis.AnalyzeSuccess(
				out.Table(generator.SuccessTrainingTable),
				out.Table(generator.SuccessTable),
				a.cfg.Success.Analysis,
				a.logger,
			)
			if err != nil {
				return err
			}
			report.RunID = a.runID
			var buf bytes.Buffer
			if err := report.WriteJSON(&buf); err != nil {
				return err
			}
			return a.publish(cmd, out.Seed, []sink.Object{sink.JSONObject(SuccessReportKey, buf.Bytes())})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "bone-loss",
		Short: "Linear regression report on the bone loss dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.generateBoneLoss()
			if err != nil {
				return err
			}
			report, err := analysis.AnalyzeBoneLoss(out.Table(generator.BoneLossTable), a.cfg.BoneLoss.Analysis, a.logger)
			if err != nil {
				return err
			}
			report.RunID = a.runID
			var buf bytes.Buffer
			if err := report.WriteJSON(&buf); err != nil {
				return err
			}
			return a.publish(cmd, out.Seed, []sink.Object{sink.JSONObject(BoneLossReportKey, buf.Bytes())})
		},
	})
	return cmd
}

func exportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export generated datasets",
	}

	sqliteCmd := &cobra.Command{
		Use:   "sqlite",
		Short: "Generate both datasets and copy every table into a SQLite database",
		RunE: func(cmd *cobra.Command, args []string) error {
			bone, err := a.generateBoneLoss()
			if err != nil {
				return err
			}
			success, err := a.generateSuccess()
			if err != nil {
				return err
			}
			tables := append(append([]*dataset.Table{}, bone.Tables...), success.Tables...)
			path := a.cfg.Export.SQLitePath
			run := export.Run{ID: a.runID, Seed: bone.Seed}
			if err := export.SQLite(cmd.Context(), path, run, tables...); err != nil {
				return err
			}
			a.logger.Info("SQLite export written",
				log.PathKey, path,
				log.SamplesKey, len(tables),
			)
			for _, t := range tables {
				fmt.Fprintln(cmd.OutOrStdout(), t.Name())
			}
			return nil
		},
	}
	sqliteCmd.Flags().String("sqlite-path", "implantgen.db", "database file to write")
	bind(a.v, sqliteCmd.Flags().Lookup("sqlite-path"), "export.sqlite_path")

	cmd.AddCommand(sqliteCmd)
	return cmd
}
