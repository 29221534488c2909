package config

import "github.com/gschex1112/songflow/pkg/types"

// Defaults mirror the station page layout the pipeline was built against.
const (
	DefaultURL            = "https://www.971theriver.com/lsp/"
	DefaultTimeSelector   = "time"
	DefaultTitleSelector  = "div.lsp-item-title"
	DefaultArtistSelector = "div.lsp-item-artist"
	DefaultSentinel       = "UPICKSTART"
	DefaultBaseName       = "songlist"
	DefaultTimeoutSeconds = 30
)

// ApplyDefaults fills unset optional fields with their defaults.
func ApplyDefaults(cfg *types.ProjectConfig) {
	if cfg.Source.URL == "" {
		cfg.Source.URL = DefaultURL
	}
	if cfg.Source.TimeoutSeconds <= 0 {
		cfg.Source.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if cfg.Source.TimeSelector == "" {
		cfg.Source.TimeSelector = DefaultTimeSelector
	}
	if cfg.Source.TitleSelector == "" {
		cfg.Source.TitleSelector = DefaultTitleSelector
	}
	if cfg.Source.ArtistSelector == "" {
		cfg.Source.ArtistSelector = DefaultArtistSelector
	}
	if cfg.Source.Sentinel == "" {
		cfg.Source.Sentinel = DefaultSentinel
	}
	if cfg.Landing.BaseName == "" {
		cfg.Landing.BaseName = DefaultBaseName
	}
	if cfg.Warehouse.BridgeTable == "" {
		cfg.Warehouse.BridgeTable = "landing_songlist"
	}
	if cfg.Warehouse.StagingTable == "" {
		cfg.Warehouse.StagingTable = "staging_songlist"
	}
	if cfg.Warehouse.DatamartTable == "" {
		cfg.Warehouse.DatamartTable = "datamart_songs"
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BackoffSeconds <= 0 {
		cfg.Retry.BackoffSeconds = 5
	}
	if cfg.Retry.BackoffMultiplier <= 0 {
		cfg.Retry.BackoffMultiplier = 2.0
	}
	if cfg.Retry.AttemptTimeoutSeconds <= 0 {
		cfg.Retry.AttemptTimeoutSeconds = 120
	}
	if len(cfg.Alerts) == 0 {
		cfg.Alerts = []types.AlertConfig{{Type: types.SinkConsole}}
	}
}
