package cmd

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"inspector/internal/config"
)

const maskedValue = "********"

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Prints the settings the serve command would run with, followed by the
values parsed from the Consul agent configuration. Tokens are masked.`,
		Args: cobra.NoArgs,
		RunE: runConfig,
	}
	addConfigFlags(cmd.Flags())
	return cmd
}

func runConfig(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	out := cmd.OutOrStdout()

	t := newTable()
	t.SetOutputMirror(out)
	t.SetTitle("Inspector")
	for _, row := range settingsRows(settings) {
		t.AppendRow(table.Row{text.FgHiCyan.Sprint(row[0]), row[1]})
	}
	t.Render()

	if len(settings.ConsulValues) == 0 {
		fmt.Fprintf(out, "%s\n", text.FgYellow.Sprint("No Consul agent configuration found"))
		return nil
	}

	t = newTable()
	t.SetOutputMirror(out)
	t.SetTitle("Consul agent")
	for _, key := range settings.ConsulValues.Keys() {
		t.AppendRow(table.Row{text.FgHiCyan.Sprint(key), mask(key, settings.ConsulValues[key])})
	}
	t.Render()
	return nil
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{text.FgHiCyan.Sprint("KEY"), text.FgHiCyan.Sprint("VALUE")})
	return t
}

func settingsRows(s config.Config) [][2]string {
	return [][2]string{
		{config.KeyLogDebug, fmt.Sprint(s.Log.Debug)},
		{config.KeyLogFormat, s.Log.Format},
		{config.KeyDockerRuntime, s.Docker.Runtime},
		{config.KeyDockerSocket, s.Docker.Socket},
		{config.KeyDockerExpectedLabels, strings.Join(s.Docker.ExpectedLabels, ",")},
		{config.KeyServiceNameLabel, s.Labels.ServiceName},
		{config.KeyTaskARNLabel, s.Labels.TaskARN},
		{config.KeyHealthLabel, s.Labels.Health},
		{config.KeyTagsLabel, s.Labels.Tags},
		{config.KeyConsulConfigPath, s.Consul.ConfigPath},
		{config.KeyConsulAddress, s.Consul.Address},
		{config.KeyConsulToken, mask(config.KeyConsulToken, s.Consul.Token)},
		{config.KeyConsulAdvertiseAddress, s.Consul.AdvertiseAddress},
		{config.KeyECSRelativeURI, s.ECS.CredentialsRelativeURI},
		{config.KeyECSCredentialsLifetime, s.ECS.CredentialsLifetime.String()},
		{config.KeyManagedInstanceFilePath, s.ManagedInstance.FilePath},
		{"managed_instance.id", s.ManagedInstance.ID},
		{config.KeyMetricsAddress, s.Metrics.Address},
	}
}

// mask hides the values of token keys.
func mask(key, value string) string {
	if value == "" {
		return ""
	}
	if strings.Contains(strings.ToLower(key), "token") {
		return maskedValue
	}
	return value
}
