package backend

import (
	"errors"
	"fmt"

	"kvitt/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	cfg := Config{
		SessionBackend: BackendType(appConfig.SessionBackend),
		LedgerBackend:  BackendType(appConfig.LedgerBackend),

		SQLiteDBPath: appConfig.SQLiteDBPath,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		GoogleSheetName:     appConfig.GoogleSheetName,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	var errs []error
	if !c.SessionBackend.IsValidSession() {
		errs = append(errs, fmt.Errorf("invalid session backend: %s", c.SessionBackend))
	}
	if !c.LedgerBackend.IsValidLedger() {
		errs = append(errs, fmt.Errorf("invalid ledger backend: %s", c.LedgerBackend))
	}
	if c.SessionBackend == SQLiteBackend && c.SQLiteDBPath == "" {
		errs = append(errs, errors.New("SQLite database path is required for sqlite backend"))
	}
	if c.LedgerBackend == SheetsBackend && c.GoogleSpreadsheetID == "" {
		errs = append(errs, errors.New("Google Spreadsheet ID is required for sheets backend"))
	}
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		errs = append(errs, errors.New("AMQP exchange and queue are required when AMQP URL is set"))
	}
	return errors.Join(errs...)
}
