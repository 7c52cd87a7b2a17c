package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	config "gitlab.com/plantai/plantai.server/src/production/PAI.Config"
	"gitlab.com/plantai/plantai.server/src/production/PAI.Monitor/monitor"
)

func main() {
	cfg, err := config.LoadMonitorConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	fetcher := monitor.NewFetcher(cfg.ApiServiceURL, cfg.Timeout)
	p := tea.NewProgram(monitor.New(fetcher, cfg.Interval, cfg.Timeout), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
