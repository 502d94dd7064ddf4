package config

import (
	"os"

	"github.com/Veraticus/quotesmith/internal/sheets"
)

// applySheetsEnvFallbacks fills Google Sheets settings from GOOGLE_SHEETS_*
// variables when the config file and QUOTESMITH_ variables leave them empty.
func applySheetsEnvFallbacks(c *SheetsConfig) {
	if c.ServiceAccountPath == "" {
		if v := os.Getenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"); v != "" {
			c.ServiceAccountPath = v
		}
	}
	if c.ClientID == "" {
		c.ClientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
	}
	if c.ClientSecret == "" {
		c.ClientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
	}
	if c.RefreshToken == "" {
		c.RefreshToken = os.Getenv("GOOGLE_SHEETS_REFRESH_TOKEN")
	}
	if c.SpreadsheetID == "" {
		c.SpreadsheetID = os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID")
	}
	if v := os.Getenv("GOOGLE_SHEETS_SPREADSHEET_NAME"); v != "" && (c.SpreadsheetName == "" || c.SpreadsheetName == "Quote Runs") {
		c.SpreadsheetName = v
	}
}

// SheetsWriterConfig converts the export settings into the writer's config
// and validates it.
func (c *Config) SheetsWriterConfig() (sheets.Config, error) {
	wc := sheets.DefaultConfig()
	wc.ServiceAccountPath = c.Sheets.ServiceAccountPath
	wc.ClientID = c.Sheets.ClientID
	wc.ClientSecret = c.Sheets.ClientSecret
	wc.RefreshToken = c.Sheets.RefreshToken
	wc.SpreadsheetID = c.Sheets.SpreadsheetID
	if c.Sheets.SpreadsheetName != "" {
		wc.SpreadsheetName = c.Sheets.SpreadsheetName
	}
	if c.Sheets.TimeZone != "" {
		wc.TimeZone = c.Sheets.TimeZone
	}

	if err := wc.Validate(); err != nil {
		return sheets.Config{}, err
	}
	return wc, nil
}
