package catalog

var insertSource = "INSERT INTO sources (name, uri, created_at, updated_at) VALUES (?, ?, ?, ?);"

var insertSchema = "INSERT INTO schemata (name, source_id, created_at, updated_at) VALUES (?, ?, ?, ?);"

var insertTable = "INSERT INTO tables (name, schema_id, created_at, updated_at) VALUES (?, ?, ?, ?);"

var insertColumn = "INSERT INTO columns (name, data_type, sort_order, table_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?);"

var upsertDefaultSchema = `INSERT INTO default_schema (source_id, schema_id, created_at, updated_at) VALUES (?, ?, ?, ?)
	ON CONFLICT (source_id) DO UPDATE SET schema_id = excluded.schema_id, updated_at = excluded.updated_at;`

var selectSources = "SELECT so.id, so.name, so.uri, so.created_at, so.updated_at FROM sources so"

var selectSchemata = `SELECT sc.id, sc.name, sc.created_at, sc.updated_at,
	so.id, so.name, so.uri, so.created_at, so.updated_at
	FROM schemata sc
	JOIN sources so ON sc.source_id = so.id`

var selectTables = `SELECT t.id, t.name, t.created_at, t.updated_at,
	sc.id, sc.name, sc.created_at, sc.updated_at,
	so.id, so.name, so.uri, so.created_at, so.updated_at
	FROM tables t
	JOIN schemata sc ON t.schema_id = sc.id
	JOIN sources so ON sc.source_id = so.id`

var selectColumns = `SELECT c.id, c.name, c.data_type, c.sort_order, c.created_at, c.updated_at,
	t.id, t.name, t.created_at, t.updated_at,
	sc.id, sc.name, sc.created_at, sc.updated_at,
	so.id, so.name, so.uri, so.created_at, so.updated_at
	FROM columns c
	JOIN tables t ON c.table_id = t.id
	JOIN schemata sc ON t.schema_id = sc.id
	JOIN sources so ON sc.source_id = so.id`

var selectDefaultSchema = `SELECT d.created_at, d.updated_at,
	sc.id, sc.name, sc.created_at, sc.updated_at,
	so.id, so.name, so.uri, so.created_at, so.updated_at
	FROM default_schema d
	JOIN schemata sc ON d.schema_id = sc.id
	JOIN sources so ON d.source_id = so.id
	WHERE d.source_id = ?;`

var orderSources = " ORDER BY so.name"

var orderSchemata = " ORDER BY so.name, sc.name"

var orderTables = " ORDER BY so.name, sc.name, t.name"

var orderColumns = " ORDER BY so.name, sc.name, t.name, c.sort_order"

var deleteSourceColumns = `DELETE FROM columns WHERE table_id IN (
	SELECT t.id FROM tables t JOIN schemata sc ON t.schema_id = sc.id WHERE sc.source_id = ?
);`

var deleteSourceTables = "DELETE FROM tables WHERE schema_id IN (SELECT id FROM schemata WHERE source_id = ?);"

var deleteSourceDefaultSchema = "DELETE FROM default_schema WHERE source_id = ?;"

var deleteSourceSchemata = "DELETE FROM schemata WHERE source_id = ?;"

var deleteSource = "DELETE FROM sources WHERE id = ?;"
