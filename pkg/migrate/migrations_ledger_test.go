package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zimmerhq/zimmer-admin-api/pkg/migrate"
)

func TestTokenAdjustmentsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_token_adjustments.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no token adjustments migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS token_adjustments",
		"CHECK (delta_tokens <> 0)",
		"CHECK (balance_after >= 0)",
		"CREATE UNIQUE INDEX ux_token_adjustments_idempotency_key ON token_adjustments(idempotency_key)",
		"FOREIGN KEY (user_automation_id) REFERENCES user_automations(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS token_adjustments",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}
