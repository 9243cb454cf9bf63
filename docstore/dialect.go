package docstore

import "fmt"

// dialect holds the SQL that differs between backends. Every statement uses
// the same argument order on both.
type dialect struct {
	name   string
	schema string

	insert    string // collection, id, data
	list      string // collection
	get       string // collection, id
	update    string // patch, collection, id
	delete    string // collection, id
	findCreds string // collection, username, password
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id TEXT NOT NULL,
    data TEXT NOT NULL,
    PRIMARY KEY (collection, id)
);`,
	insert: `INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)`,
	list:   `SELECT id, data FROM documents WHERE collection = ?`,
	get:    `SELECT id, data FROM documents WHERE collection = ? AND id = ?`,
	// json_patch is an RFC 7396 merge: keys in the patch replace keys in
	// the stored document, everything else is kept.
	update:    `UPDATE documents SET data = json_patch(data, ?) WHERE collection = ? AND id = ?`,
	delete:    `DELETE FROM documents WHERE collection = ? AND id = ?`,
	findCreds: `SELECT id, data FROM documents WHERE collection = ? AND json_extract(data, '$.username') = ? AND json_extract(data, '$.password') = ? LIMIT 1`,
}

var postgresDialect = dialect{
	name: "postgres",
	schema: `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id TEXT NOT NULL,
    data JSONB NOT NULL,
    PRIMARY KEY (collection, id)
);`,
	insert:    `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)`,
	list:      `SELECT id, data FROM documents WHERE collection = $1`,
	get:       `SELECT id, data FROM documents WHERE collection = $1 AND id = $2`,
	update:    `UPDATE documents SET data = data || $1::jsonb WHERE collection = $2 AND id = $3`,
	delete:    `DELETE FROM documents WHERE collection = $1 AND id = $2`,
	findCreds: `SELECT id, data FROM documents WHERE collection = $1 AND data->>'username' = $2 AND data->>'password' = $3 LIMIT 1`,
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return sqliteDialect, nil
	case "postgres", "pgx":
		return postgresDialect, nil
	}
	return dialect{}, fmt.Errorf("docstore: unsupported driver %q", driver)
}
