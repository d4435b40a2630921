package storage

import "fmt"

// Table names of the relational artifact. Only TagsTable survives a
// successful rebuild; the other two exist while a swap is in progress.
const (
	TagsTable    = "tags"
	StagingTable = "tags_new"
	RetiredTable = "tags_old"
)

// Dialect holds the statements for the tags table in one SQL flavour.
type Dialect struct {
	Driver Driver
	// TransactionalDDL is false when CREATE and DROP commit implicitly, as
	// on MySQL. Such dialects rebuild through StagingTable and Swap.
	TransactionalDDL bool
	// Swap promotes StagingTable to TagsTable and moves the previous table
	// to RetiredTable.
	Swap []string

	columns     string
	values      string
	SelectTags  string
	CountTags   string
	TableExists string
}

var dialects = map[Driver]Dialect{
	DriverSQLite: {
		Driver:           DriverSQLite,
		TransactionalDDL: true,
		columns: `(
			code TEXT NOT NULL PRIMARY KEY UNIQUE,
			has_param INTEGER NOT NULL,
			description TEXT NULL
		)`,
		values: `(?, ?, ?)`,
		// rowid follows insertion order, which is table order.
		SelectTags:  `SELECT code, has_param, description FROM tags ORDER BY rowid`,
		CountTags:   `SELECT COUNT(*) FROM tags`,
		TableExists: `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`,
	},
	DriverMySQL: {
		Driver: DriverMySQL,
		// RENAME TABLE moves both tables in one atomic step.
		Swap: []string{`RENAME TABLE tags TO tags_old, tags_new TO tags`},
		columns: `(
			code VARCHAR(3) NOT NULL PRIMARY KEY UNIQUE,
			has_param INTEGER NOT NULL,
			description TEXT NULL
		) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin`,
		values:      `(?, ?, ?)`,
		SelectTags:  `SELECT code, has_param, description FROM tags ORDER BY code`,
		CountTags:   `SELECT COUNT(*) FROM tags`,
		TableExists: `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?`,
	},
	DriverPostgres: {
		Driver:           DriverPostgres,
		TransactionalDDL: true,
		columns: `(
			code VARCHAR(3) NOT NULL PRIMARY KEY UNIQUE,
			has_param INTEGER NOT NULL,
			description TEXT NULL
		)`,
		values:      `($1, $2, $3)`,
		SelectTags:  `SELECT code, has_param, description FROM tags ORDER BY code`,
		CountTags:   `SELECT COUNT(*) FROM tags`,
		TableExists: `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1`,
	},
}

// DialectFor returns the dialect of driver.
func DialectFor(driver Driver) (Dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return Dialect{}, fmt.Errorf("unsupported driver: %s", driver)
	}
	return d, nil
}

// CreateTable returns the CREATE statement for a tags-shaped table.
func (d Dialect) CreateTable(name string) string {
	return "CREATE TABLE " + name + " " + d.columns
}

// CreateTableIfMissing is CreateTable that tolerates an existing table.
func (d Dialect) CreateTableIfMissing(name string) string {
	return "CREATE TABLE IF NOT EXISTS " + name + " " + d.columns
}

// DropTable returns the DROP statement for name.
func (d Dialect) DropTable(name string) string {
	return "DROP TABLE IF EXISTS " + name
}

// InsertRow returns the parameterized insert of one tag into name.
func (d Dialect) InsertRow(name string) string {
	return "INSERT INTO " + name + " (code, has_param, description) VALUES " + d.values
}

// Ordered reports whether SelectTags returns rows in insertion order.
// Server dialects have no stable insertion order and sort by code.
func (d Dialect) Ordered() bool {
	return d.Driver == DriverSQLite
}
