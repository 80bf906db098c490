package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// Monetary amounts are stored as TEXT in canonical decimal form; REAL would
// reintroduce the binary-float drift the allocator exists to avoid.
const schema = `
CREATE TABLE IF NOT EXISTS splits (
    id TEXT PRIMARY KEY,
    ledger_expense_id TEXT NOT NULL UNIQUE,
    group_id TEXT NOT NULL,
    group_name TEXT NOT NULL,
    description TEXT NOT NULL,
    total TEXT NOT NULL,
    paid_by TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS split_items (
    id TEXT PRIMARY KEY,
    split_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    price TEXT NOT NULL,
    members TEXT NOT NULL,
    FOREIGN KEY (split_id) REFERENCES splits(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS member_splits (
    split_id TEXT NOT NULL,
    member TEXT NOT NULL,
    amount TEXT NOT NULL,
    PRIMARY KEY (split_id, member),
    FOREIGN KEY (split_id) REFERENCES splits(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_splits_group_id ON splits(group_id);
CREATE INDEX IF NOT EXISTS idx_split_items_split_id ON split_items(split_id);
CREATE INDEX IF NOT EXISTS idx_member_splits_split_id ON member_splits(split_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
