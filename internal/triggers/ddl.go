package triggers

import (
	"fmt"
	"strings"

	"github.com/desertthunder/gmsync/internal/models"
)

// Prefix namespaces every trigger the registry installs.
const Prefix = "gmsync_"

// TriggerName returns the database object name for a trigger definition.
func TriggerName(name string) string {
	return Prefix + sanitizeIdentifier(name)
}

// TriggerDDL returns the CREATE TRIGGER statement for def.
//
// The trigger appends (def.Name, def.IDText) to the change log after every matching statement.
// IDText is copied into the body verbatim.
func TriggerDDL(def models.TriggerDef) string {
	return fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s AFTER %s ON %s
BEGIN
    INSERT INTO %s(trigger_name, local_id) VALUES (%s, %s);
END`, TriggerName(def.Name), def.When.SQL(), quoteIdentifier(def.Table), models.ChangeLogTable, quoteLiteral(def.Name), def.IDText)
}

// DropTriggerDDL returns the DROP TRIGGER statement for def.
func DropTriggerDDL(def models.TriggerDef) string {
	return "DROP TRIGGER IF EXISTS " + TriggerName(def.Name)
}

func sanitizeIdentifier(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
