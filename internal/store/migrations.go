package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS hidden_notifications (
	user_id          TEXT NOT NULL,
	notification_key TEXT NOT NULL,
	hidden_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, notification_key)
);

CREATE INDEX IF NOT EXISTS idx_hidden_user ON hidden_notifications(user_id);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS unread_counts (
	user_id   TEXT PRIMARY KEY,
	count     INTEGER NOT NULL,
	polled_at DATETIME NOT NULL
);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
