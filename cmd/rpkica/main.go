// Command rpkica builds an RPKI publication point tree from a scenario
// file: one Trust Anchor, one subordinate CA, and the ROA/Ghostbusters
// signed objects the scenario describes, published to a filesystem
// tree plus a Trust Anchor Locator (spec.md, end to end).
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rpkica/internal/clock"
	"rpkica/internal/config"
	"rpkica/internal/keysource"
	"rpkica/internal/publish"
	"rpkica/internal/rpkica"
	"rpkica/internal/rpkierr"
	"rpkica/internal/rpkilog"
	"rpkica/internal/sigobj"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:           "rpkica",
	Short:         "Synthesize RPKI publication point trees for test and research use",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(buildCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOutput, _ := rootCmd.PersistentFlags().GetBool("log-json")
	rpkilog.Init(rpkilog.Config{
		Level:      rpkilog.Level(level),
		JSONOutput: jsonOutput,
	})
}

var buildCmd = &cobra.Command{
	Use:   "build SCENARIO",
	Short: "Build and publish a CA/ROA/Ghostbusters tree from a scenario YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuild(args[0])
	},
}

func runBuild(scenarioPath string) error {
	scenario, err := config.Load(scenarioPath)
	if err != nil {
		return err
	}

	warn := rpkierr.NewWarnings()
	clk := clock.System{}
	keys := keysource.System{}

	taResources, err := scenario.TAResources()
	if err != nil {
		return rpkierr.Wrap(rpkierr.KindInput, scenarioPath, err)
	}
	ta, err := rpkica.NewTA(rpkica.Params{
		CommonName: "TA",
		Resources:  taResources,
		CertDays:   scenario.CertDays,
		CRLDays:    scenario.CRLDays,
		MFTDays:    scenario.MFTDays,
	}, scenario.BaseURI, clk, keys, warn)
	if err != nil {
		return err
	}
	rpkilog.WithCA(ta.CommonName).Info().Msg("trust anchor self-issued")

	caResources, err := scenario.CAResources()
	if err != nil {
		return rpkierr.Wrap(rpkierr.KindInput, scenarioPath, err)
	}
	ca, err := ta.IssueSubordinateCA(rpkica.Params{
		CommonName: "CA",
		Resources:  caResources,
		CertDays:   scenario.CertDays,
		CRLDays:    scenario.CRLDays,
		MFTDays:    scenario.MFTDays,
	})
	if err != nil {
		return err
	}
	rpkilog.WithCA(ca.CommonName).Info().Msg("subordinate CA issued")

	if len(scenario.ROANetworks) > 0 {
		roa, err := scenario.ROAContent()
		if err != nil {
			return rpkierr.Wrap(rpkierr.KindInput, scenarioPath, err)
		}
		obj, err := sigobj.Assemble(ca, roa, "route", keys)
		if err != nil {
			return err
		}
		ca.AddObject(obj)
		rpkilog.WithObject(obj.FileName).Info().Msg("ROA assembled")
	}

	if scenario.GBRFullName != "" {
		gbr := scenario.GhostbustersRecord()
		obj, err := sigobj.Assemble(ca, gbr, "contact", keys)
		if err != nil {
			return err
		}
		ca.AddObject(obj)
		rpkilog.WithObject(obj.FileName).Info().Msg("Ghostbusters Record assembled")
	}

	plan := publish.Plan{
		TA:         ta,
		BaseURI:    scenario.BaseURI,
		OutputRoot: scenario.OutputRoot,
		TALDir:     scenario.TALDir,
	}
	if err := plan.Stage(); err != nil {
		return err
	}

	for _, w := range warn.Drain() {
		rpkilog.Logger.Warn().Msg(w)
	}
	fmt.Printf("Published %s to %s\n", ta.CommonName, scenario.OutputRoot)
	fmt.Printf("TAL written to %s\n", scenario.TALDir)
	return nil
}

// exitCode maps an error to the teacher's exit-code convention: 0
// success, 1 operational error, 2 usage error. A rpkierr.Error with
// KindInput reflects a bad scenario field, the library's equivalent of
// a usage error; everything else is operational.
func exitCode(err error) int {
	var rerr *rpkierr.Error
	if errors.As(err, &rerr) && rerr.Kind == rpkierr.KindInput {
		return 2
	}
	return 1
}
